// Package output provides utilities for formatting and displaying forecast results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iwvelando/tireintel/internal/forecast"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(name string, records []forecast.MonthlyRecord) {
	writePretty(os.Stdout, name, records)
}

// PrettyString returns the PrettyFormat table as a string.
func PrettyString(name string, records []forecast.MonthlyRecord) string {
	var b strings.Builder
	writePretty(&b, name, records)
	return b.String()
}

func writePretty(w io.Writer, name string, records []forecast.MonthlyRecord) {
	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintf(w, "--- Results for preset %s ---\n", name)
	_, _ = fmt.Fprintf(w, "Date    | Segment    | Market Size | Avg Price | Reference\n")
	_, _ = fmt.Fprintf(w, "____    | __________ | ___________ | _________ | _________\n")
	for _, record := range records {
		reference := ""
		if record.ReferenceValue != nil {
			reference = p.Sprintf("%.1f", *record.ReferenceValue)
		}
		_, _ = p.Fprintf(w, "%s | %-10s | $%.2fB | $%.2f | %s\n",
			record.Month(), record.Segment, record.MarketSize, record.AvgPrice, reference)
	}
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(records []forecast.MonthlyRecord) {
	fmt.Print(CsvString(records))
}

// CsvString returns the CSV representation of records.
func CsvString(records []forecast.MonthlyRecord) string {
	var b strings.Builder
	b.WriteString(`"date","segment","market size (B)","avg price","reference"`)
	b.WriteString("\n")
	for _, record := range records {
		reference := ""
		if record.ReferenceValue != nil {
			reference = fmt.Sprintf("%.2f", *record.ReferenceValue)
		}
		fmt.Fprintf(&b, `"%s","%s","%.4f","%.2f","%s"`, record.Month(), record.Segment, record.MarketSize, record.AvgPrice, reference)
		b.WriteString("\n")
	}
	return b.String()
}

// JSONFormat outputs records as an indented JSON array.
func JSONFormat(records []forecast.MonthlyRecord) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []forecast.MonthlyRecord{}
	}
	return enc.Encode(records)
}
