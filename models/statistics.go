package models

// periods per year for each sampling frequency
const (
	Daily     = 252
	Weekly    = 52
	Monthly   = 12
	Quarterly = 4
	Yearly    = 1
)

const (
	DefaultSimulations   = 1_000
	DefaultHistogramBins = 50
)

var frequencyUnits = map[int]string{
	Daily:     "days",
	Weekly:    "weeks",
	Monthly:   "months",
	Quarterly: "quarters",
	Yearly:    "years",
}

// ConvertFrequencyToString names the step unit, "steps" for a calendar we do not know
func ConvertFrequencyToString(periodsPerYear int) string {
	if unit, ok := frequencyUnits[periodsPerYear]; ok {
		return unit
	}
	return "steps"
}
