// Package analyzer finds the functions of a Go module that its unit tests
// exercise, so they can be traced while the tests run.
package analyzer

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"sctrace/internal/elfsym"
	"sctrace/internal/executor"
	"sctrace/internal/report"
)

// BuildFunc compiles the tests of the package in pkgDir, relative to the
// module root, into the binary at output.
type BuildFunc func(ctx context.Context, root, pkgDir, output string) error

// Options configures an analysis.
type Options struct {
	// Root is the module directory holding go.mod.
	Root string
	// Exclude skips every path containing one of these strings.
	Exclude []string
	// BinaryDir receives the compiled test binaries.
	BinaryDir string
	// Build defaults to GoTestBuild.
	Build BuildFunc
}

// Analyzer walks a module, builds each package's test binary and keeps the
// module functions its tests call.
type Analyzer struct {
	opts   Options
	logger *zap.Logger
}

// New returns an Analyzer for opts.
func New(opts Options, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Build == nil {
		opts.Build = GoTestBuild(logger)
	}
	return &Analyzer{opts: opts, logger: logger}
}

// GoTestBuild builds test binaries with optimizations and inlining
// disabled, so every tested function keeps its own symbol.
func GoTestBuild(logger *zap.Logger) BuildFunc {
	return func(ctx context.Context, root, pkgDir, output string) error {
		argv := []string{"go", "test", "-gcflags=-N -l", "-c", pkgDir, "-o", output}
		return executor.Run(ctx, argv, executor.Options{Dir: root, ShowErrors: true}, logger)
	}
}

// Run analyzes every package of the module that has tests.
func (a *Analyzer) Run(ctx context.Context) (*Analysis, error) {
	modulePath, err := ModulePath(filepath.Join(a.opts.Root, "go.mod"))
	if err != nil {
		return nil, err
	}

	binDir, err := filepath.Abs(a.opts.BinaryDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", binDir, err)
	}

	analysis := &Analysis{Module: modulePath}
	err = filepath.WalkDir(a.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.opts.Root, path)
		if err != nil {
			return err
		}
		if rel != "." && a.skip(rel, d.Name(), binDir, path) {
			return filepath.SkipDir
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		bin, err := a.analyzePackage(ctx, modulePath, rel)
		if err != nil {
			return err
		}
		if bin != nil {
			analysis.Binaries = append(analysis.Binaries, *bin)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

func (a *Analyzer) skip(rel, name, binDir, path string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" {
		return true
	}
	if abs, err := filepath.Abs(path); err == nil && abs == binDir {
		return true
	}
	if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
		return true
	}
	for _, ex := range a.opts.Exclude {
		if ex != "" && strings.Contains(rel, strings.TrimSuffix(ex, "/")) {
			return true
		}
	}
	return false
}

func (a *Analyzer) analyzePackage(ctx context.Context, modulePath, rel string) (*TestBinary, error) {
	dir := filepath.Join(a.opts.Root, rel)
	testFiles, err := filepath.Glob(filepath.Join(dir, "*_test.go"))
	if err != nil {
		return nil, err
	}
	if len(testFiles) == 0 {
		return nil, nil
	}

	called, err := CalledFunctions(testFiles)
	if err != nil {
		return nil, err
	}
	for _, file := range testFiles {
		names, err := TestedFunctions(file)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			called[name] = true
		}
	}

	pkgDir := "."
	if rel != "." {
		pkgDir = "./" + filepath.ToSlash(rel)
	}
	output := filepath.Join(a.opts.BinaryDir, binaryName(modulePath, rel))
	output, err = filepath.Abs(output)
	if err != nil {
		return nil, err
	}

	a.logger.Info("building test binary", zap.String("package", pkgDir), zap.String("output", output))
	if err := a.opts.Build(ctx, a.opts.Root, pkgDir, output); err != nil {
		return nil, fmt.Errorf("build tests of %s: %w", pkgDir, err)
	}

	symbols, err := elfsym.FunctionSymbols(output, modulePath)
	if err != nil {
		return nil, fmt.Errorf("read symbols of %s: %w", output, err)
	}

	bin := &TestBinary{Package: pkgDir, Path: output}
	seen := make(map[string]bool)
	for _, sym := range symbols {
		if seen[sym] || !called[FunctionName(sym)] {
			continue
		}
		seen[sym] = true
		bin.Symbols = append(bin.Symbols, sym)
	}
	if len(bin.Symbols) == 0 {
		a.logger.Debug("no tested functions", zap.String("package", pkgDir))
		return nil, nil
	}
	sort.Strings(bin.Symbols)
	return bin, nil
}

func binaryName(modulePath, rel string) string {
	name := modulePath
	if rel != "." {
		name += "/" + filepath.ToSlash(rel)
	}
	return report.FileName(name) + ".test"
}

// ModulePath reads the module path declared in the go.mod file at path.
func ModulePath(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mod := modfile.ModulePath(data)
	if mod == "" {
		return "", fmt.Errorf("%s: no module directive", path)
	}
	return mod, nil
}

// FunctionName strips the package path and receiver from a symbol.
func FunctionName(symbol string) string {
	if i := strings.LastIndexByte(symbol, '.'); i >= 0 {
		return symbol[i+1:]
	}
	return symbol
}

// CalledFunctions returns the names of the functions and methods called
// anywhere in files.
func CalledFunctions(files []string) (map[string]bool, error) {
	fset := token.NewFileSet()
	called := make(map[string]bool)

	for _, file := range files {
		f, err := parser.ParseFile(fset, file, nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		ast.Inspect(f, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			if name := calleeName(call.Fun); name != "" {
				called[name] = true
			}
			return true
		})
	}
	return called, nil
}

func calleeName(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	case *ast.IndexExpr:
		return calleeName(f.X)
	case *ast.IndexListExpr:
		return calleeName(f.X)
	case *ast.ParenExpr:
		return calleeName(f.X)
	}
	return ""
}

// TestedFunctions lists the functions named by the tests of a file.
// TestParse, Test_Parse and TestParse_empty all name Parse.
func TestedFunctions(path string) ([]string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	var names []string
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		name, ok := strings.CutPrefix(fn.Name.Name, "Test")
		if !ok {
			continue
		}
		name = strings.TrimPrefix(name, "_")
		if name == "" || name == "Main" {
			continue
		}
		if i := strings.IndexByte(name, '_'); i > 0 {
			name = name[:i]
		}
		names = append(names, name)
	}
	return names, nil
}
