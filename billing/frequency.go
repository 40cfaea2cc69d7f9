package billing

import (
	"errors"
	"strings"
)

// Billing frequencies as stored in member_billing.frequency.
const (
	FrequencyMonthly    = "mensual"
	FrequencyQuarterly  = "trimestral"
	FrequencySemiannual = "semestral"
	FrequencyAnnual     = "anual"
)

var ErrInvalidFrequency = errors.New("billing: invalid frequency")

// periodIntervals maps each stored frequency to the coverage one payment buys.
var periodIntervals = []struct {
	Frequency string
	Interval  string
}{
	{FrequencyMonthly, "1 month"},
	{FrequencyQuarterly, "3 months"},
	{FrequencySemiannual, "6 months"},
	{FrequencyAnnual, "1 year"},
}

var frequencyAliases = map[string]string{
	"mensual":    FrequencyMonthly,
	"monthly":    FrequencyMonthly,
	"trimestral": FrequencyQuarterly,
	"quarterly":  FrequencyQuarterly,
	"semestral":  FrequencySemiannual,
	"semiannual": FrequencySemiannual,
	"anual":      FrequencyAnnual,
	"annual":     FrequencyAnnual,
}

// NormalizeFrequency maps client input ("Anual", "annual", " MENSUAL ") to the
// stored vocabulary. Empty input is monthly.
func NormalizeFrequency(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FrequencyMonthly, nil
	}
	if f, ok := frequencyAliases[s]; ok {
		return f, nil
	}
	return "", ErrInvalidFrequency
}

// periodCase renders the SQL CASE that turns a frequency column into its
// coverage interval.
func periodCase(column string) string {
	var b strings.Builder
	b.WriteString("CASE " + column)
	for _, p := range periodIntervals {
		b.WriteString(" WHEN '" + p.Frequency + "' THEN INTERVAL '" + p.Interval + "'")
	}
	b.WriteString(" ELSE INTERVAL '1 month' END")
	return b.String()
}
