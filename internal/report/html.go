package report

import (
	"fmt"
	"io"

	"github.com/unbound-force/flaglens/internal/audit"
)

// WriteHTML writes an audit report as a self-contained HTML page.
//
// Planned features:
//   - Findings table with sortable columns
//   - Per-flag reference lists with source links
//   - Self-contained single-file HTML (embedded CSS/JS)
//
// This is not yet implemented. Use text or json format instead.
func WriteHTML(_ io.Writer, _ *audit.Report) error {
	return fmt.Errorf("HTML report format is not yet implemented")
}
