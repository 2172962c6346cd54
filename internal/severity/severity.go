// Package severity classifies offline duration into the badge levels shown
// by the dashboards.
package severity

// Level is a severity badge.
type Level string

const (
	Low      Level = "LOW"
	Medium   Level = "MEDIUM"
	Critical Level = "CRITICAL"
)

// Badge thresholds in hours.
const (
	MediumFromHours   = 24
	CriticalOverHours = 48
)

// FromHours returns the badge for an offline duration: under 24h is low,
// 24h up to and including 48h is medium, anything longer is critical.
func FromHours(hours int) Level {
	switch {
	case hours < MediumFromHours:
		return Low
	case hours <= CriticalOverHours:
		return Medium
	default:
		return Critical
	}
}

// Label returns the Portuguese label used in exports and the terminal UI.
func (l Level) Label() string {
	switch l {
	case Critical:
		return "Crítico"
	case Medium:
		return "Atenção"
	default:
		return "Recente"
	}
}
