package model

// Severity grades anomalies and alerts. Recommendations reuse the same scale
// as their priority.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// AtLeast reports whether s is ranked at or above other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 { return &v }
