// Package scaffold embeds a starter flag configuration and writes it
// to a target project directory.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

//go:embed assets/flags.yaml
var assets embed.FS

// DefaultFileName is the flag file written by Run.
const DefaultFileName = "flags.yaml"

// Options configures the scaffold operation.
type Options struct {
	// TargetDir is the directory to scaffold into.
	// Defaults to the current working directory.
	TargetDir string

	// FileName overrides the output file name. A .json extension
	// writes the starter flags as JSON instead of YAML.
	FileName string

	// Force overwrites an existing flag file when true.
	// When false, an existing file is left alone.
	Force bool

	// Stdout is the writer for summary output.
	// Defaults to os.Stdout.
	Stdout io.Writer
}

// Result reports what the scaffold operation did.
type Result struct {
	// Path is the flag file path relative to TargetDir.
	Path string

	// Created is true when the file was written, false when an
	// existing file was kept.
	Created bool
}

// StarterFlags returns the embedded starter configuration, parsed.
func StarterFlags() (flagconf.FlagSet, error) {
	data, err := assets.ReadFile("assets/flags.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded starter flags: %w", err)
	}
	return flagconf.Parse(data, flagconf.FormatYAML)
}

// Run writes the starter flag file into the target directory.
//
// If the file already exists and opts.Force is false, nothing is
// written. Run returns a Result saying what happened.
func Run(opts Options) (*Result, error) {
	if opts.TargetDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		opts.TargetDir = cwd
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	outPath := filepath.Join(opts.TargetDir, opts.FileName)

	if _, err := os.Stat(outPath); err == nil && !opts.Force {
		fmt.Fprintf(opts.Stdout, "%s already exists (use --force to overwrite).\n", opts.FileName)
		return &Result{Path: opts.FileName}, nil
	}

	content, err := render(opts.FileName)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.TargetDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", opts.TargetDir, err)
	}
	if err := os.WriteFile(outPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("creating %s: %w", opts.FileName, err)
	}

	fmt.Fprintf(opts.Stdout, "created: %s\n", opts.FileName)
	fmt.Fprintln(opts.Stdout, "Run 'flaglens lint' to validate it, or 'flaglens serve' to evaluate flags over HTTP.")

	return &Result{Path: opts.FileName, Created: true}, nil
}

// render returns the starter flags in the format matching the output
// file extension.
func render(fileName string) ([]byte, error) {
	data, err := assets.ReadFile("assets/flags.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded starter flags: %w", err)
	}

	if flagconf.DetectFormat(fileName, data) != flagconf.FormatJSON {
		return data, nil
	}

	fs, err := flagconf.Parse(data, flagconf.FormatYAML)
	if err != nil {
		return nil, err
	}
	return fs.Encode(flagconf.FormatJSON)
}
