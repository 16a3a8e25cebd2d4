package goscan

import (
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/fzipp/gocyclo"
	"golang.org/x/tools/go/packages"

	"github.com/unbound-force/flaglens/internal/flagconf"
	"github.com/unbound-force/flaglens/internal/scan"
)

// callShape describes one SDK call form: which argument carries the
// flag key and which carries the caller's default value.
type callShape struct {
	typ        flagconf.ValueType
	keyIndex   int
	defaultIdx int
}

// callShapes maps method/function names to their call shape.
//
// OpenFeature Go SDK: client.BooleanValue(ctx, key, default, evalCtx).
// ffclient: ffclient.BoolVariation(key, user, default).
var callShapes = map[string]callShape{
	"BooleanValue": {flagconf.TypeBoolean, 1, 2},
	"StringValue":  {flagconf.TypeString, 1, 2},
	"FloatValue":   {flagconf.TypeNumber, 1, 2},
	"IntValue":     {flagconf.TypeNumber, 1, 2},
	"ObjectValue":  {flagconf.TypeObject, 1, 2},

	"BooleanValueDetails": {flagconf.TypeBoolean, 1, 2},
	"StringValueDetails":  {flagconf.TypeString, 1, 2},
	"FloatValueDetails":   {flagconf.TypeNumber, 1, 2},
	"IntValueDetails":     {flagconf.TypeNumber, 1, 2},
	"ObjectValueDetails":  {flagconf.TypeObject, 1, 2},

	"BoolVariation":      {flagconf.TypeBoolean, 0, 2},
	"StringVariation":    {flagconf.TypeString, 0, 2},
	"IntVariation":       {flagconf.TypeNumber, 0, 2},
	"Float64Variation":   {flagconf.TypeNumber, 0, 2},
	"JSONVariation":      {flagconf.TypeObject, 0, 2},
	"JSONArrayVariation": {flagconf.TypeObject, 0, 2},
}

// Use is one flag evaluation call site in Go source.
type Use struct {
	Key  string             `json:"key"`
	Type flagconf.ValueType `json:"type"`

	// Default is the source text of the default-value argument,
	// empty when the argument is absent or not renderable.
	Default string `json:"default,omitempty"`

	// File is relative to the scan root; Line is 1-based.
	File string `json:"file"`
	Line int    `json:"line"`

	// Function is the enclosing function or method name.
	Function string `json:"function"`

	// Complexity is the cyclomatic complexity of the enclosing
	// function. High-complexity functions referencing flags are the
	// first candidates for flag cleanup.
	Complexity int `json:"complexity"`
}

// Result is the outcome of an AST scan.
type Result struct {
	Uses     []Use
	Warnings []string
}

// Scan parses every Go package under root and returns each flag
// evaluation call site found, sorted by file and line.
func Scan(root string) (*Result, error) {
	lr, err := load(root)
	if err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	complexity := complexityIndex(lr.pkgs)

	res := &Result{Warnings: lr.warnings}
	seenFiles := make(map[string]bool)

	for _, pkg := range lr.pkgs {
		for _, file := range pkg.Syntax {
			filename := lr.fset.Position(file.Pos()).Filename
			// Overlapping patterns (x and x_test) can yield the same
			// file twice.
			if seenFiles[filename] {
				continue
			}
			seenFiles[filename] = true
			res.Uses = append(res.Uses, scanFile(lr.fset, file, absRoot, complexity)...)
		}
	}

	sort.Slice(res.Uses, func(i, j int) bool {
		if res.Uses[i].File != res.Uses[j].File {
			return res.Uses[i].File < res.Uses[j].File
		}
		return res.Uses[i].Line < res.Uses[j].Line
	})
	return res, nil
}

// scanFile walks each function declaration looking for flag calls.
func scanFile(fset *token.FileSet, file *ast.File, absRoot string, complexity map[string]int) []Use {
	var uses []Use

	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}

		fnPos := fset.Position(fn.Pos())
		fnComplexity := complexity[posKey(fnPos)]

		ast.Inspect(fn.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			use, ok := matchCall(fset, call)
			if !ok {
				return true
			}

			rel, err := filepath.Rel(absRoot, use.File)
			if err == nil {
				use.File = filepath.ToSlash(rel)
			}
			use.Function = funcName(fn)
			use.Complexity = fnComplexity
			uses = append(uses, use)
			return true
		})
	}

	return uses
}

// matchCall checks whether a call expression is a flag evaluation
// and extracts its key and default literal.
func matchCall(fset *token.FileSet, call *ast.CallExpr) (Use, bool) {
	var name string
	switch fun := call.Fun.(type) {
	case *ast.SelectorExpr:
		name = fun.Sel.Name
	case *ast.Ident:
		name = fun.Name
	default:
		return Use{}, false
	}

	shape, ok := callShapes[name]
	if !ok {
		return Use{}, false
	}
	if len(call.Args) <= shape.keyIndex {
		return Use{}, false
	}

	lit, ok := call.Args[shape.keyIndex].(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		// Key built at runtime; the scanner only reports literal keys.
		return Use{}, false
	}
	key, err := strconv.Unquote(lit.Value)
	if err != nil {
		return Use{}, false
	}

	pos := fset.Position(call.Pos())
	use := Use{
		Key:  key,
		Type: shape.typ,
		File: pos.Filename,
		Line: pos.Line,
	}
	if len(call.Args) > shape.defaultIdx {
		use.Default = types.ExprString(call.Args[shape.defaultIdx])
	}
	return use, true
}

// funcName renders a function or method name the way gocyclo does,
// so debt lookups line up.
func funcName(fn *ast.FuncDecl) string {
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		return "(" + types.ExprString(fn.Recv.List[0].Type) + ")." + fn.Name.Name
	}
	return fn.Name.Name
}

// testFileRe excludes test files from complexity accounting.
var testFileRe = regexp.MustCompile(`_test\.go$`)

// complexityIndex computes cyclomatic complexity for every function
// in the loaded packages, keyed by declaration position.
func complexityIndex(pkgs []*packages.Package) map[string]int {
	var files []string
	seen := make(map[string]bool)
	for _, pkg := range pkgs {
		for _, f := range pkg.GoFiles {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	index := make(map[string]int)
	for _, stat := range gocyclo.Analyze(files, testFileRe) {
		index[posKey(stat.Pos)] = stat.Complexity
	}
	return index
}

// posKey builds the complexity lookup key for a position.
func posKey(pos token.Position) string {
	return pos.Filename + ":" + strconv.Itoa(pos.Line)
}

// Discovered aggregates the uses by key into the shared discovery
// shape used by manifests and audits. Type comes from the first use;
// the default literal is kept only when every use agrees on it.
func (r *Result) Discovered() []scan.Discovered {
	byKey := make(map[string]*scan.Discovered)
	defaults := make(map[string]string)
	conflicting := make(map[string]bool)
	var order []string

	for _, u := range r.Uses {
		d, ok := byKey[u.Key]
		if !ok {
			d = &scan.Discovered{Key: u.Key, Type: u.Type}
			byKey[u.Key] = d
			defaults[u.Key] = u.Default
			order = append(order, u.Key)
		}
		if defaults[u.Key] != u.Default {
			conflicting[u.Key] = true
		}
		d.References = append(d.References, scan.Reference{File: u.File, Line: u.Line})
	}

	sort.Strings(order)
	out := make([]scan.Discovered, 0, len(order))
	for _, key := range order {
		d := *byKey[key]
		if !conflicting[key] {
			d.DefaultVal = defaults[key]
		}
		out = append(out, d)
	}
	return out
}
