package module

// Severity grades a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Finding is one observation a module reports about the instance. Modules only
// report what they saw; deciding what to do about it is left to the reader.
type Finding struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Subject  string   `json:"subject" yaml:"subject"`
	Message  string   `json:"message" yaml:"message"`
}

// Findings is the payload of modules that report observations.
type Findings []Finding

// Count returns the number of findings with severity s.
func (f Findings) Count(s Severity) int {
	n := 0
	for _, finding := range f {
		if finding.Severity == s {
			n++
		}
	}
	return n
}

// Worst returns the highest severity present, or "" for no findings.
func (f Findings) Worst() Severity {
	var worst Severity
	rank := map[Severity]int{SeverityInfo: 1, SeverityWarning: 2, SeverityCritical: 3}
	for _, finding := range f {
		if rank[finding.Severity] > rank[worst] {
			worst = finding.Severity
		}
	}
	return worst
}
