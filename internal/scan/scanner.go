package scan

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/unbound-force/flaglens/internal/flagconf"
)

// DefaultExcludes are directory and file name globs skipped during
// scanning unless overridden.
var DefaultExcludes = []string{"node_modules", "vendor", ".git", "dist", "build"}

// Reference is one call site where a flag key was found.
type Reference struct {
	// File is the path relative to the scan root, slash-separated.
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
}

// Discovered is a flag key found in source, with every reference to
// it. Type is taken from the first call site matched; conflicting
// sites are surfaced via audit type-mismatch checks, not here.
type Discovered struct {
	Key        string             `json:"key" yaml:"key"`
	Type       flagconf.ValueType `json:"type" yaml:"type"`
	DefaultVal string             `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	References []Reference        `json:"references" yaml:"references"`
}

// Result holds the outcome of a scan.
type Result struct {
	Flags        []Discovered
	FilesScanned int
}

// Options configures a Scanner.
type Options struct {
	// Excludes are name globs (files and directories) to skip.
	// Nil means DefaultExcludes.
	Excludes []string

	// Timeout bounds the whole scan. Zero means no timeout.
	Timeout time.Duration
}

// Scanner walks a source tree matching flag evaluation call sites.
type Scanner struct {
	patterns []Pattern
	excludes []string
	timeout  time.Duration
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	excludes := opts.Excludes
	if excludes == nil {
		excludes = DefaultExcludes
	}
	return &Scanner{
		patterns: patterns(),
		excludes: excludes,
		timeout:  opts.Timeout,
	}
}

// Scan walks root and returns every discovered flag, sorted by key.
// Hidden directories are skipped, as are entries matching the
// exclude globs. Unreadable files are skipped rather than aborting
// the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	seen := make(map[string]*Discovered)
	res := &Result{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("scan of %s interrupted: %w", root, ctxErr)
		}
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") && name != "." && path != root {
				return filepath.SkipDir
			}
			if s.excluded(name) {
				return filepath.SkipDir
			}
			return nil
		}

		if !scannableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if s.excluded(d.Name()) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if err := s.scanFile(path, rel, seen); err != nil {
			// Unreadable file: skip, keep scanning.
			return nil //nolint:nilerr
		}
		res.FilesScanned++
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Flags = make([]Discovered, 0, len(seen))
	for _, d := range seen {
		res.Flags = append(res.Flags, *d)
	}
	sort.Slice(res.Flags, func(i, j int) bool {
		return res.Flags[i].Key < res.Flags[j].Key
	})
	return res, nil
}

// excluded checks a name against the exclude globs.
func (s *Scanner) excluded(name string) bool {
	for _, pattern := range s.excludes {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// scanFile matches every pattern against each line of the file.
func (s *Scanner) scanFile(path, rel string, seen map[string]*Discovered) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	// Minified JS bundles can exceed the default 64K line limit.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		for _, p := range s.patterns {
			for _, m := range p.Regex.FindAllStringSubmatch(text, -1) {
				if len(m) < 2 {
					continue
				}
				key := m[1]
				d, ok := seen[key]
				if !ok {
					d = &Discovered{Key: key, Type: p.Type}
					seen[key] = d
				}
				d.References = append(d.References, Reference{File: rel, Line: line})
			}
		}
	}
	return sc.Err()
}
