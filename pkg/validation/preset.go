package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/tireintel/pkg/constants"
)

// PresetInfo carries the preset fields that are checked for warnings.
type PresetInfo struct {
	Name                  string
	Seasonality           []float64
	ForecastHorizonMonths int
	AnnualGrowthRate      float64
	MonthlyGrowthRate     float64
	PriceIndexSeries      string
	NewsQuery             string
}

// ValidateSeasonality warns when a weight table is usable but suspicious. Hard
// errors (wrong length, non-positive weights) are left to the generator.
func ValidateSeasonality(presetName string, weights []float64) []string {
	var warnings []string
	if len(weights) != constants.MonthsPerYear {
		return warnings
	}

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	mean := sum / constants.MonthsPerYear
	if math.Abs(mean-1) > constants.SeasonalityWarnDeviation {
		warnings = append(warnings, fmt.Sprintf("Preset '%s' seasonality averages %.2f; weights are usually centered on 1",
			presetName, mean))
	}
	return warnings
}

// ValidatePresets returns warnings for duplicate names, empty names and
// growth rates that look like percentages rather than fractions.
func ValidatePresets(presets []PresetInfo) []string {
	var warnings []string
	seen := make(map[string]bool, len(presets))

	for _, preset := range presets {
		name := strings.TrimSpace(preset.Name)
		if name == "" {
			warnings = append(warnings, "Preset with empty name will be unreachable by name")
			continue
		}
		if seen[name] {
			warnings = append(warnings, fmt.Sprintf("Preset '%s' is defined more than once; the last definition wins", name))
		}
		seen[name] = true

		warnings = append(warnings, ValidateSeasonality(name, preset.Seasonality)...)

		if preset.AnnualGrowthRate > 1 || preset.MonthlyGrowthRate > 1 {
			warnings = append(warnings, fmt.Sprintf("Preset '%s' growth rates above 1 are read as fractions (1 = 100%%)", name))
		}
		if preset.ForecastHorizonMonths == 0 {
			warnings = append(warnings, fmt.Sprintf("Preset '%s' has no forecast horizon; output is purely historical", name))
		}
		if preset.NewsQuery != "" && strings.TrimSpace(preset.NewsQuery) == "" {
			warnings = append(warnings, fmt.Sprintf("Preset '%s' news query is blank", name))
		}
	}

	return warnings
}
