package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unbound-force/flaglens/internal/audit"
	"github.com/unbound-force/flaglens/internal/flagconf"
	"github.com/unbound-force/flaglens/internal/manifest"
	"github.com/unbound-force/flaglens/internal/report"
	"github.com/unbound-force/flaglens/internal/scan"
)

// auditParams holds the parsed flags for the audit command.
type auditParams struct {
	codePath     string
	manifestPath string
	configPath   string
	format       string
	opts         audit.Options
	interactive  bool
	stdout       io.Writer
	stderr       io.Writer
}

// runAudit is the extracted, testable body of the audit command.
func runAudit(ctx context.Context, p auditParams) error {
	if p.format != "text" && p.format != "json" && p.format != "html" {
		return fmt.Errorf("invalid format %q: must be 'text', 'json', or 'html'", p.format)
	}
	if p.format == "html" {
		return fmt.Errorf("HTML report format is not yet implemented")
	}

	m, err := loadOrScanManifest(ctx, p)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(p.configPath)
	if err != nil {
		return err
	}
	fs, err := flagconf.Parse(data, flagconf.DetectFormat(p.configPath, data))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", p.configPath, err)
	}

	logger.Info("auditing", "flagsInCode", len(m.Flags), "flagsInConfig", len(fs))
	rpt := audit.Run(m, fs)

	if p.interactive {
		return runInteractiveAudit(rpt)
	}

	if p.format == "json" {
		if err := report.WriteJSON(p.stdout, rpt); err != nil {
			return err
		}
	} else {
		if err := report.WriteAuditText(p.stdout, rpt); err != nil {
			return err
		}
	}

	printAuditCISummary(p.stderr, rpt, p.opts)

	return rpt.CheckThresholds(p.opts)
}

// loadOrScanManifest reads the manifest file when given one, or scans
// the code path otherwise.
func loadOrScanManifest(ctx context.Context, p auditParams) (manifest.Manifest, error) {
	if p.manifestPath != "" {
		logger.Info("loading manifest", "path", p.manifestPath)
		return manifest.Load(p.manifestPath)
	}
	if p.codePath == "" {
		return manifest.Manifest{}, fmt.Errorf("audit needs a code path or --manifest")
	}

	logger.Info("scanning sources", "root", p.codePath)
	result, err := scan.New(scan.Options{}).Scan(ctx, p.codePath)
	if err != nil {
		return manifest.Manifest{}, err
	}
	return manifest.New("default", "flaglens", version, result.Flags), nil
}

// printAuditCISummary prints a one-line CI summary to stderr when
// threshold flags are set.
func printAuditCISummary(w io.Writer, rpt *audit.Report, opts audit.Options) {
	if opts.MaxMissing < 0 && opts.MaxUnused < 0 && opts.AllowMismatch {
		return
	}

	var parts []string
	if opts.MaxMissing >= 0 {
		status := "PASS"
		if rpt.Summary.Missing > opts.MaxMissing {
			status = "FAIL"
		}
		parts = append(parts, fmt.Sprintf("missing: %d/%d (%s)",
			rpt.Summary.Missing, opts.MaxMissing, status))
	}
	if opts.MaxUnused >= 0 {
		status := "PASS"
		if rpt.Summary.Unused > opts.MaxUnused {
			status = "FAIL"
		}
		parts = append(parts, fmt.Sprintf("unused: %d/%d (%s)",
			rpt.Summary.Unused, opts.MaxUnused, status))
	}
	if !opts.AllowMismatch {
		status := "PASS"
		if rpt.Summary.Mismatched > 0 {
			status = "FAIL"
		}
		parts = append(parts, fmt.Sprintf("type-mismatch: %d (%s)",
			rpt.Summary.Mismatched, status))
	}
	fmt.Fprintln(w, strings.Join(parts, " | "))
}

func newAuditCmd() *cobra.Command {
	var (
		manifestPath   string
		configPath     string
		projectConfig  string
		format         string
		maxMissing     int
		maxUnused      int
		failOnMismatch bool
		interactive    bool
	)

	cmd := &cobra.Command{
		Use:   "audit [path]",
		Short: "Cross-check flag references against configuration",
		Long: `Audit a codebase (or a previously generated scan manifest) against
a flag configuration file. Reports flags the code references but
the configuration lacks, configured flags nothing references, and
flags whose accessor type disagrees with the configured variations.

With --max-missing or --max-unused the audit exits non-zero when
the counts exceed the limits, for use as a CI gate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codePath := ""
			if len(args) == 1 {
				codePath = args[0]
			}
			cfg, err := loadConfig(projectConfig, maxMissing, maxUnused)
			if err != nil {
				return err
			}
			if configPath == "" {
				configPath = cfg.FlagFile
			}
			return runAudit(cmd.Context(), auditParams{
				codePath:     codePath,
				manifestPath: manifestPath,
				configPath:   configPath,
				format:       format,
				opts: audit.Options{
					MaxMissing:    cfg.Audit.MaxMissing,
					MaxUnused:     cfg.Audit.MaxUnused,
					AllowMismatch: !(failOnMismatch || cfg.Audit.FailOnMismatch),
				},
				interactive: interactive,
				stdout:      os.Stdout,
				stderr:      os.Stderr,
			})
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "",
		"scan manifest to audit instead of scanning [path]")
	cmd.Flags().StringVarP(&configPath, "config", "c", "",
		"flag configuration file (default from .flaglens.yaml, else flags.yaml)")
	cmd.Flags().StringVar(&projectConfig, "project-config", "",
		"project configuration file (default .flaglens.yaml if present)")
	cmd.Flags().StringVar(&format, "format", "text",
		"output format: text, json, or html")
	cmd.Flags().IntVar(&maxMissing, "max-missing", -1,
		"fail if more flags are missing from the configuration (-1 = no limit)")
	cmd.Flags().IntVar(&maxUnused, "max-unused", -1,
		"fail if more configured flags are unreferenced (-1 = no limit)")
	cmd.Flags().BoolVar(&failOnMismatch, "fail-on-mismatch", false,
		"fail when any flag's code type disagrees with its configuration")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing findings")

	return cmd
}
