// Package report provides output formatters for flaglens audit and
// scan results in JSON and human-readable text formats.
package report

import (
	"encoding/json"
	"io"

	"github.com/unbound-force/flaglens/internal/audit"
)

// JSONReport is the top-level JSON output structure for audits.
type JSONReport struct {
	Version  string          `json:"version"`
	Findings []audit.Finding `json:"findings"`
	Summary  audit.Summary   `json:"summary"`
}

// WriteJSON writes an audit report as formatted JSON to the writer.
func WriteJSON(w io.Writer, r *audit.Report) error {
	findings := r.Findings
	if findings == nil {
		findings = []audit.Finding{}
	}
	out := JSONReport{
		Version:  "0.1.0",
		Findings: findings,
		Summary:  r.Summary,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
