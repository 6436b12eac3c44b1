// Package nosqlformat defines an analyzer that reports SQL queries built at
// run time and passed to the database/sql query methods.
package nosqlformat

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports queries produced by fmt.Sprintf or by concatenation with
// non-constant operands. Query arguments must go through placeholders.
var Analyzer = &analysis.Analyzer{
	Name:     "nosqlformat",
	Doc:      "prohibits building SQL queries with fmt.Sprintf or string concatenation",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// queryMethods maps the checked method names to the index of their query argument.
var queryMethods = map[string]int{
	"Exec":            0,
	"Query":           0,
	"QueryRow":        0,
	"Prepare":         0,
	"ExecContext":     1,
	"QueryContext":    1,
	"QueryRowContext": 1,
	"PrepareContext":  1,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{(*ast.CallExpr)(nil)}
	inspect.Preorder(nodeFilter, func(n ast.Node) {
		call := n.(*ast.CallExpr)

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return
		}
		queryIndex, ok := queryMethods[sel.Sel.Name]
		if !ok || len(call.Args) <= queryIndex || !isSQLMethod(pass, sel) {
			return
		}

		query := call.Args[queryIndex]
		switch {
		case isSprintf(pass, query):
			pass.Reportf(query.Pos(), "SQL query built with fmt.Sprintf, use placeholders")
		case isDynamicConcat(pass, query):
			pass.Reportf(query.Pos(), "SQL query built by string concatenation, use placeholders")
		}
	})

	return nil, nil
}

// isSQLMethod reports whether sel refers to a method declared in database/sql.
func isSQLMethod(pass *analysis.Pass, sel *ast.SelectorExpr) bool {
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}

	return fn.Pkg().Path() == "database/sql"
}

func isSprintf(pass *analysis.Pass, expr ast.Expr) bool {
	call, ok := astutil.Unparen(expr).(*ast.CallExpr)
	if !ok {
		return false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}

	return fn.Pkg().Path() == "fmt" && fn.Name() == "Sprintf"
}

func isDynamicConcat(pass *analysis.Pass, expr ast.Expr) bool {
	binary, ok := astutil.Unparen(expr).(*ast.BinaryExpr)
	if !ok {
		return false
	}

	// Concatenated constants are folded by the compiler.
	return pass.TypesInfo.Types[binary].Value == nil
}
