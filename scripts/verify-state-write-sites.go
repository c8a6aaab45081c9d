// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// Packages allowed to assign player state record fields. Everything else
// must go through the orchestrator's serialized queue.
var allowedWriters = []string{
	"internal/player/lifecycle",
	"internal/player/core",
}

func main() {
	pattern := "./..."
	if len(os.Args) > 1 {
		pattern = os.Args[1]
	}

	violations, err := Analyze(pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "❌ state writes outside the serialized queue:")
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v)
		}
		os.Exit(1)
	}
}

// Analyze reports every assignment to a field of model.SessionContext or
// model.PlayerState made outside the lifecycle and core packages. Test
// files are skipped.
func Analyze(pattern string) ([]string, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo,
		Dir:  ".",
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var violations []string
	for _, pkg := range pkgs {
		if allowedWriter(pkg.PkgPath) {
			continue
		}
		for _, file := range pkg.Syntax {
			filename := pkg.Fset.Position(file.Pos()).Filename
			if strings.HasSuffix(filename, "_test.go") {
				continue
			}

			ast.Inspect(file, func(n ast.Node) bool {
				switch node := n.(type) {
				case *ast.AssignStmt:
					for _, lhs := range node.Lhs {
						if field, ok := stateField(lhs, pkg.TypesInfo); ok {
							violations = append(violations, formatViolation(pkg.Fset, lhs.Pos(), fmt.Sprintf("write to %s outside the serialized queue", field)))
						}
					}
				case *ast.IncDecStmt:
					if field, ok := stateField(node.X, pkg.TypesInfo); ok {
						violations = append(violations, formatViolation(pkg.Fset, node.X.Pos(), fmt.Sprintf("write to %s outside the serialized queue", field)))
					}
				}
				return true
			})
		}
	}
	sort.Strings(violations)
	return violations, nil
}

func allowedWriter(pkgPath string) bool {
	for _, suffix := range allowedWriters {
		if strings.HasSuffix(pkgPath, suffix) {
			return true
		}
	}
	return false
}

// stateField resolves expr to a field selection on one of the player
// state record types and returns its qualified name.
func stateField(expr ast.Expr, info *types.Info) (string, bool) {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return "", false
	}
	selection, ok := info.Selections[sel]
	if !ok || selection.Kind() != types.FieldVal {
		return "", false
	}

	recv := selection.Recv()
	if ptr, ok := recv.(*types.Pointer); ok {
		recv = ptr.Elem()
	}
	named, ok := recv.(*types.Named)
	if !ok {
		return "", false
	}
	obj := named.Obj()
	if obj.Pkg() == nil || !strings.HasSuffix(obj.Pkg().Path(), "internal/player/model") {
		return "", false
	}
	if obj.Name() != "SessionContext" && obj.Name() != "PlayerState" {
		return "", false
	}
	return obj.Name() + "." + sel.Sel.Name, true
}

func formatViolation(fset *token.FileSet, pos token.Pos, msg string) string {
	p := fset.Position(pos)
	filename := p.Filename
	if rel, err := filepath.Rel(".", filename); err == nil {
		filename = rel
	}
	return fmt.Sprintf("%s:%d: %s", filename, p.Line, msg)
}
