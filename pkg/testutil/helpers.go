// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/tireintel/internal/forecast"
)

// FindRecord finds the record for a YYYY-MM month in the records slice.
// Returns a pointer to the record if found, nil otherwise.
func FindRecord(records []forecast.MonthlyRecord, month string) *forecast.MonthlyRecord {
	for i := range records {
		if records[i].Month() == month {
			return &records[i]
		}
	}
	return nil
}
