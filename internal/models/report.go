package models

// StatusCompleted is the only status a Report is ever returned with.
const StatusCompleted = "completed"

// Report is the envelope returned for every successful analysis.
type Report struct {
	Analysis  string `json:"analysis"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// CoverageReport summarizes which global regulation passages have a phrase-level
// counterpart in the internal corpus. ComplianceRate is a fraction in [0, 1].
type CoverageReport struct {
	MissingRegulations     []string `json:"missing_regulations"`
	TotalInternalPolicies  int      `json:"total_internal_policies"`
	TotalGlobalRegulations int      `json:"total_global_regulations"`
	ComplianceRate         float64  `json:"compliance_rate"`
}
