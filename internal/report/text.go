package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/flaglens/internal/audit"
	"github.com/unbound-force/flaglens/internal/manifest"
)

// WriteAuditText writes an audit report as human-readable styled text
// to the writer. Output uses lipgloss for color and formatting when
// the output is a TTY; degrades gracefully for pipes and CI.
func WriteAuditText(w io.Writer, r *audit.Report) error {
	s := DefaultStyles()

	fmt.Fprintln(w, s.Header.Render("=== Flag Audit ==="))
	fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf(
		"    %d flag(s) in code, %d in configuration",
		r.Summary.FlagsInCode, r.Summary.FlagsInConfig)))

	if len(r.Findings) == 0 {
		fmt.Fprintf(w, "\n%s\n", s.Pass.Render("PASS: code and configuration agree"))
		return nil
	}

	fmt.Fprintln(w)

	// Findings table.
	// Budget: 80 cols total. Borders take ~4, padding 6 across 3
	// columns. Available: 70. FLAG=28, KIND=14, WHERE=28.
	const maxWhere = 28
	rows := make([][]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		where := firstReference(f)
		if len(where) > maxWhere {
			where = "..." + where[len(where)-maxWhere+3:]
		}
		rows = append(rows, []string{f.Key, string(f.Kind), where})
	}

	t := table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return s.KindStyle(rows[row][1])
			}
			return s.TableCell
		}).
		Headers("FLAG", "KIND", "WHERE").
		Rows(rows...)

	fmt.Fprintln(w, t)

	// Kind summary.
	var parts []string
	if r.Summary.Missing > 0 {
		parts = append(parts, s.Missing.Render(fmt.Sprintf("missing: %d", r.Summary.Missing)))
	}
	if r.Summary.Unused > 0 {
		parts = append(parts, s.Unused.Render(fmt.Sprintf("unused: %d", r.Summary.Unused)))
	}
	if r.Summary.Mismatched > 0 {
		parts = append(parts, s.Mismatch.Render(fmt.Sprintf("type-mismatch: %d", r.Summary.Mismatched)))
	}
	fmt.Fprintf(w, "    Summary: %s\n", strings.Join(parts, ", "))

	return nil
}

func firstReference(f audit.Finding) string {
	if len(f.References) == 0 {
		return ""
	}
	ref := f.References[0]
	where := fmt.Sprintf("%s:%d", ref.File, ref.Line)
	if len(f.References) > 1 {
		where += fmt.Sprintf(" (+%d)", len(f.References)-1)
	}
	return where
}

// WriteScanText writes a scan manifest as a styled flag inventory.
func WriteScanText(w io.Writer, m manifest.Manifest) error {
	s := DefaultStyles()

	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", m.Project)))
	fmt.Fprintln(w, s.SubHeader.Render(fmt.Sprintf("    %d flag(s) discovered", len(m.Flags))))

	if len(m.Flags) == 0 {
		fmt.Fprintln(w, s.Muted.Render("    No flag references found."))
		return nil
	}

	fmt.Fprintln(w)

	const maxDefault = 20
	rows := make([][]string, 0, len(m.Flags))
	for _, f := range m.Flags {
		def := f.DefaultVal
		if len(def) > maxDefault {
			def = def[:maxDefault-3] + "..."
		}
		rows = append(rows, []string{
			f.Key,
			string(f.Type),
			def,
			fmt.Sprintf("%d", len(f.References)),
		})
	}

	t := table.New().
		Width(76).
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			return s.TableCell
		}).
		Headers("FLAG", "TYPE", "DEFAULT", "REFS").
		Rows(rows...)

	fmt.Fprintln(w, t)
	return nil
}
