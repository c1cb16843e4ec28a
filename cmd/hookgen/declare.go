package main

import (
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// declaration carries everything the templates need to emit one hook.
type declaration struct {
	Package string
	Name    string
	Type    string
	Target  string
	Module  string
	Symbol  string
	Imports []string
	Guard   bool
}

var (
	declareArgs    declaration
	declareNoGuard bool
	declareOut     string
)

var declareCmd = &cobra.Command{
	Use:   "declare",
	Short: "Generate one static hook declaration",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		declareArgs.Guard = !declareNoGuard
		if declareArgs.Target == "" && declareArgs.Symbol == "" {
			log.Fatalf("Error: one of --target or --symbol is required.")
		}

		src, err := generate(declareArgs)
		if err != nil {
			log.Fatalf("Error generating declaration: %v", err)
		}

		if declareOut == "" || declareOut == "-" {
			fmt.Print(string(src))
			return
		}
		if err := os.WriteFile(declareOut, src, 0644); err != nil {
			log.Fatalf("Error writing %s: %v", declareOut, err)
		}
		fmt.Printf("Hook '%s' declared in %s\n", declareArgs.Name, declareOut)
	},
}

func init() {
	declareCmd.Flags().StringVar(&declareArgs.Package, "package", "", "package name for the generated file")
	declareCmd.Flags().StringVar(&declareArgs.Name, "name", "", "name of the hook variable")
	declareCmd.Flags().StringVar(&declareArgs.Type, "type", "", "function type of the target, e.g. 'func(int) int'")
	declareCmd.Flags().StringVar(&declareArgs.Target, "target", "", "expression naming the target function")
	declareCmd.Flags().StringVar(&declareArgs.Module, "module", "", "module for symbol targets; empty means the running executable")
	declareCmd.Flags().StringVar(&declareArgs.Symbol, "symbol", "", "symbol name to resolve instead of a target expression")
	declareCmd.Flags().StringArrayVar(&declareArgs.Imports, "import", nil, "extra import the target type needs; repeatable")
	declareCmd.Flags().BoolVar(&declareNoGuard, "no-guard", false, "omit the panic containment boundary from the thunk")
	declareCmd.Flags().StringVar(&declareOut, "out", "", "output file; defaults to stdout")

	declareCmd.MarkFlagRequired("package")
	declareCmd.MarkFlagRequired("name")
	declareCmd.MarkFlagRequired("type")

	rootCmd.AddCommand(declareCmd)
}

// generate renders a declaration and formats it, which also rejects any
// flag combination that does not produce valid Go.
func generate(d declaration) ([]byte, error) {
	sig, err := parseSignature(d.Type)
	if err != nil {
		return nil, err
	}

	params, callArgs, err := thunkParams(sig)
	if err != nil {
		return nil, err
	}
	results, err := thunkResults(sig)
	if err != nil {
		return nil, err
	}

	ret := ""
	if results != "" {
		ret = "return "
	}

	guard := ""
	if d.Guard {
		guard = fmt.Sprintf("defer detour.ContainPanic(%q)\n\t", d.Name)
	}

	imports := ""
	for _, imp := range d.Imports {
		imports += fmt.Sprintf("\t%q\n", imp)
	}

	template := declareTemplate
	if d.Symbol != "" {
		template = symbolTemplate
	}

	content := template
	for placeholder, value := range map[string]string{
		"{{package}}": d.Package,
		"{{name}}":    d.Name,
		"{{type}}":    d.Type,
		"{{target}}":  d.Target,
		"{{module}}":  d.Module,
		"{{symbol}}":  d.Symbol,
		"{{imports}}": imports,
		"{{params}}":  params,
		"{{results}}": results,
		"{{ret}}":     ret,
		"{{guard}}":   guard,
		"{{args}}":    callArgs,
	} {
		content = strings.ReplaceAll(content, placeholder, value)
	}

	return format.Source([]byte(content))
}

func parseSignature(typ string) (*ast.FuncType, error) {
	expr, err := parser.ParseExpr(typ)
	if err != nil {
		return nil, fmt.Errorf("invalid function type %q: %w", typ, err)
	}
	ft, ok := expr.(*ast.FuncType)
	if !ok {
		return nil, fmt.Errorf("%q is not a function type", typ)
	}
	return ft, nil
}

// thunkParams renders the thunk's parameter list and the matching call
// arguments, naming every parameter a0, a1 and so on.
func thunkParams(ft *ast.FuncType) (params, callArgs string, err error) {
	if ft.Params == nil {
		return "", "", nil
	}

	var decl, call []string
	n := 0
	for _, field := range ft.Params.List {
		typ, err := renderType(field.Type)
		if err != nil {
			return "", "", err
		}

		count := len(field.Names)
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			name := fmt.Sprintf("a%d", n)
			n++

			decl = append(decl, name+" "+typ)
			if _, variadic := field.Type.(*ast.Ellipsis); variadic {
				call = append(call, name+"...")
			} else {
				call = append(call, name)
			}
		}
	}
	return strings.Join(decl, ", "), strings.Join(call, ", "), nil
}

func thunkResults(ft *ast.FuncType) (string, error) {
	if ft.Results == nil || len(ft.Results.List) == 0 {
		return "", nil
	}

	var types []string
	for _, field := range ft.Results.List {
		typ, err := renderType(field.Type)
		if err != nil {
			return "", err
		}

		count := len(field.Names)
		if count == 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			types = append(types, typ)
		}
	}

	if len(types) == 1 {
		return types[0], nil
	}
	return "(" + strings.Join(types, ", ") + ")", nil
}

func renderType(e ast.Expr) (string, error) {
	var buf strings.Builder
	if err := printer.Fprint(&buf, token.NewFileSet(), e); err != nil {
		return "", err
	}
	return buf.String(), nil
}
