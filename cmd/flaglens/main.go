package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/unbound-force/flaglens/internal/config"
	"github.com/unbound-force/flaglens/internal/evaluate"
	"github.com/unbound-force/flaglens/internal/flagconf"
	"github.com/unbound-force/flaglens/internal/goscan"
	"github.com/unbound-force/flaglens/internal/manifest"
	"github.com/unbound-force/flaglens/internal/report"
	"github.com/unbound-force/flaglens/internal/scan"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "flaglens",
		Short: "flaglens keeps feature flags and code in sync",
		Long: `Flaglens scans codebases for feature flag references, audits them
against flag configuration files, evaluates flags locally or over
HTTP, and watches configuration sources for changes.`,
		Version: version,
	}

	root.AddCommand(newScanCmd())
	root.AddCommand(newAuditCmd())
	root.AddCommand(newLintCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newSchemaCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// scanParams holds the parsed flags for the scan command.
type scanParams struct {
	root     string
	project  string
	format   string
	out      string
	excludes []string
	goMode   bool
	stdout   io.Writer
}

// runScan is the extracted, testable body of the scan command.
func runScan(ctx context.Context, p scanParams) error {
	if p.format != "text" && p.format != "yaml" && p.format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text', 'yaml', or 'json'", p.format)
	}

	var (
		flags []scan.Discovered
		err   error
	)
	if p.goMode {
		logger.Info("scanning Go packages", "root", p.root)
		var result *goscan.Result
		result, err = goscan.Scan(p.root)
		if err == nil {
			flags = result.Discovered()
		}
	} else {
		logger.Info("scanning sources", "root", p.root)
		var result *scan.Result
		result, err = scan.New(scan.Options{Excludes: p.excludes}).Scan(ctx, p.root)
		if err == nil {
			flags = result.Flags
			logger.Info("scan complete", "files", result.FilesScanned, "flags", len(flags))
		}
	}
	if err != nil {
		return err
	}

	m := manifest.New(p.project, "flaglens", version, flags)

	if p.format == "text" {
		return report.WriteScanText(p.stdout, m)
	}

	data, err := m.Encode(flagconf.Format(p.format))
	if err != nil {
		return err
	}
	if p.out != "" {
		return os.WriteFile(p.out, data, 0o644)
	}
	_, err = p.stdout.Write(data)
	return err
}

func newScanCmd() *cobra.Command {
	var (
		project  string
		format   string
		out      string
		excludes []string
		goMode   bool
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Find feature flag references in a codebase",
		Long: `Scan a directory tree for feature flag accessor calls and emit a
manifest of every flag key found, with its inferred type, inline
default, and source references.

By default the scanner matches accessor patterns across languages
(Go, JavaScript, TypeScript, Python, C#, Ruby, Java). With --go it
parses Go packages instead, which also attributes cyclomatic
complexity to each referencing function.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("")
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("project") {
				project = cfg.Scan.Project
			}
			if len(excludes) == 0 {
				excludes = cfg.Scan.Excludes
			}
			return runScan(cmd.Context(), scanParams{
				root:     args[0],
				project:  project,
				format:   format,
				out:      out,
				excludes: excludes,
				goMode:   goMode,
				stdout:   os.Stdout,
			})
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "default",
		"project name recorded in the manifest")
	cmd.Flags().StringVar(&format, "format", "text",
		"output format: text, yaml, or json")
	cmd.Flags().StringVarP(&out, "out", "o", "",
		"write the manifest to a file instead of stdout")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil,
		"directory names to skip (default: node_modules, vendor, .git, dist, build)")
	cmd.Flags().BoolVar(&goMode, "go", false,
		"parse Go packages instead of pattern matching")

	return cmd
}

// lintParams holds the parsed flags for the lint command.
type lintParams struct {
	path   string
	stdout io.Writer
}

// runLint is the extracted, testable body of the lint command.
func runLint(p lintParams) error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}

	format := flagconf.DetectFormat(p.path, data)
	fs, err := flagconf.Parse(data, format)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", p.path, err)
	}

	if err := flagconf.ValidateSchema(data, format); err != nil {
		fmt.Fprintf(p.stdout, "%s: schema: %v\n", p.path, err)
		return fmt.Errorf("%s does not match the flag configuration schema", p.path)
	}

	problems := flagconf.ValidateSet(fs)
	if len(problems) == 0 {
		fmt.Fprintf(p.stdout, "%s: %d flag(s), no problems\n", p.path, len(fs))
		return nil
	}

	keys := make([]string, 0, len(problems))
	for key := range problems {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	count := 0
	for _, key := range keys {
		for _, msg := range problems[key] {
			fmt.Fprintf(p.stdout, "%s: %s: %s\n", p.path, key, msg)
			count++
		}
	}
	return fmt.Errorf("%d problem(s) in %d flag(s)", count, len(problems))
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <flag-file>",
		Short: "Validate a flag configuration file",
		Long: `Parse a flag configuration file (YAML or JSON) and check every
flag: variations present and consistently typed, default rule
present and referencing real variations, percentages summing to
100, and rollout dates well-formed and ordered. The document is
also validated against the flag configuration JSON Schema
(flaglens schema --kind=flags).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(lintParams{path: args[0], stdout: os.Stdout})
		},
	}
}

// evalParams holds the parsed flags for the eval command.
type evalParams struct {
	key          string
	configPath   string
	targetingKey string
	attrs        []string
	stdout       io.Writer
}

// runEval is the extracted, testable body of the eval command.
func runEval(p evalParams) error {
	data, err := os.ReadFile(p.configPath)
	if err != nil {
		return err
	}
	fs, err := flagconf.Parse(data, flagconf.DetectFormat(p.configPath, data))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", p.configPath, err)
	}

	evalCtx := evaluate.NewContext(p.targetingKey)
	for _, attr := range p.attrs {
		k, v, err := parseAttr(attr)
		if err != nil {
			return err
		}
		evalCtx = evalCtx.WithAttribute(k, v)
	}

	client := evaluate.New(fs)
	value, detail := client.RawValueDetails(p.key, evalCtx)

	out := map[string]any{
		"key":    p.key,
		"value":  value,
		"reason": detail.Reason,
	}
	if detail.Variant != "" {
		out["variant"] = detail.Variant
	}
	if detail.ErrorCode != "" {
		out["errorCode"] = detail.ErrorCode
	}

	enc := json.NewEncoder(p.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return detail.Err
}

// parseAttr splits a key=value attribute. Values are decoded as JSON
// when possible so booleans and numbers keep their types; anything
// else stays a string.
func parseAttr(attr string) (string, any, error) {
	k, raw, ok := strings.Cut(attr, "=")
	if !ok || k == "" {
		return "", nil, fmt.Errorf("invalid attribute %q: want key=value", attr)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return k, raw, nil
	}
	return k, v, nil
}

func newEvalCmd() *cobra.Command {
	var (
		configPath   string
		targetingKey string
		attrs        []string
	)

	cmd := &cobra.Command{
		Use:   "eval <flag-key>",
		Short: "Evaluate a flag against a configuration file",
		Long: `Evaluate one flag locally: load the configuration file, build an
evaluation context from --targeting-key and --attr pairs, and print
the resolved value with its variant and reason as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("config") {
				cfg, err := config.Load("")
				if err != nil {
					return err
				}
				configPath = cfg.FlagFile
			}
			return runEval(evalParams{
				key:          args[0],
				configPath:   configPath,
				targetingKey: targetingKey,
				attrs:        attrs,
				stdout:       os.Stdout,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "flags.yaml",
		"flag configuration file")
	cmd.Flags().StringVarP(&targetingKey, "targeting-key", "t", "",
		"targeting key identifying the evaluation subject")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil,
		"context attribute as key=value (repeatable; values parsed as JSON)")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print a JSON Schema used by flaglens",
		Long: `Print a JSON Schema (Draft 2020-12). --kind=flags documents the
flag configuration file format; --kind=audit documents the output
of flaglens audit --format=json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "flags":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), flagconf.Schema)
				return err
			case "audit":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
				return err
			default:
				return fmt.Errorf("invalid kind %q: must be 'flags' or 'audit'", kind)
			}
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "flags",
		"which schema to print: flags or audit")

	return cmd
}
