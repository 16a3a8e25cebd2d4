// Package goscan discovers feature flag evaluation call sites in Go
// source via the AST instead of regex matching: it survives
// multi-line calls, skips comments and string contents, and can read
// the default value passed at each call site.
package goscan

import (
	"fmt"
	"go/token"

	"golang.org/x/tools/go/packages"
)

// loadMode is the minimum flag set for syntax-level call matching.
// Type information is deliberately not requested: scanned
// repositories often cannot be type-checked (missing deps, wrong Go
// version) and flag discovery must still work there.
const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax

// loadResult holds loaded packages with their shared file set.
type loadResult struct {
	pkgs []*packages.Package
	fset *token.FileSet

	// warnings collects per-package load problems that did not
	// prevent syntax from being produced.
	warnings []string
}

// load parses every Go package under dir. Packages with load errors
// are kept as long as they produced syntax trees; their errors are
// reported as warnings so a broken corner of a repo does not hide
// flags in the rest of it.
func load(dir string) (*loadResult, error) {
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode:  loadMode,
		Dir:   dir,
		Fset:  fset,
		Tests: false,
	}

	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("loading Go packages under %q: %w", dir, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no Go packages found under %q", dir)
	}

	res := &loadResult{fset: fset}

	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			res.warnings = append(res.warnings, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
		if len(pkg.Syntax) == 0 {
			continue
		}
		res.pkgs = append(res.pkgs, pkg)
	}
	if len(res.pkgs) == 0 {
		return nil, fmt.Errorf("no parseable Go packages under %q", dir)
	}

	return res, nil
}
