package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Terminal UI and command-line libraries stay inside internal/cli.
var cliOnlyImports = []string{
	"github.com/charmbracelet/",
	"github.com/spf13/cobra",
}

var allowed = map[string]map[string]bool{
	"cli": {
		"batch":     true,
		"config":    true,
		"history":   true,
		"host":      true,
		"logging":   true,
		"model":     true,
		"profile":   true,
		"report":    true,
		"workspace": true,
	},
	"workspace": {
		"config":   true,
		"history":  true,
		"host":     true,
		"model":    true,
		"profile":  true,
		"runstore": true,
	},
	"batch": {
		"export":    true,
		"host":      true,
		"model":     true,
		"naming":    true,
		"reconcile": true,
		"runstore":  true,
	},
	"export": {
		"host":      true,
		"model":     true,
		"naming":    true,
		"reconcile": true,
	},
	"naming": {
		"host":  true,
		"model": true,
	},
	"profile": {
		"model":    true,
		"runstore": true,
	},
	"history":   {"model": true},
	"host":      {"model": true},
	"reconcile": {"model": true},
	"report":    {"model": true},
	"runstore":  {"model": true},
	"config":    {},
	"logging":   {},
	"model":     {},
}

func main() {
	violations := []string{}

	err := filepath.WalkDir("internal", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		srcPkg := sourcePackage(path)
		if srcPkg == "" {
			return nil
		}
		allowMap, ok := allowed[srcPkg]
		if !ok {
			violations = append(violations, fmt.Sprintf("%s: unknown source package %q", path, srcPkg))
			return nil
		}

		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}

		for _, imp := range file.Imports {
			impPath := strings.Trim(imp.Path.Value, "\"")
			if srcPkg != "cli" && cliOnly(impPath) {
				violations = append(violations, fmt.Sprintf("%s: %s imports %s outside internal/cli", path, srcPkg, impPath))
				continue
			}
			tgtPkg, ok := targetPackage(impPath)
			if !ok || tgtPkg == srcPkg {
				continue
			}
			if !allowMap[tgtPkg] {
				violations = append(violations, fmt.Sprintf("%s: %s -> %s is forbidden", path, srcPkg, tgtPkg))
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "boundary walk failed: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "architecture boundary violations detected:")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "- %s\n", v)
		}
		os.Exit(1)
	}

	fmt.Println("architecture boundary check: OK")
}

func cliOnly(importPath string) bool {
	for _, prefix := range cliOnlyImports {
		if strings.HasPrefix(importPath, prefix) {
			return true
		}
	}
	return false
}

func sourcePackage(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) < 2 || parts[0] != "internal" {
		return ""
	}
	return parts[1]
}

func targetPackage(importPath string) (string, bool) {
	const prefix = "sheetbatch/internal/"
	if !strings.HasPrefix(importPath, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(importPath, prefix)
	if rest == "" {
		return "", false
	}
	parts := strings.Split(rest, "/")
	return parts[0], true
}
