// repo_write_audit reports service and pipeline methods that issue more than
// one repo write outside a gorm transaction.
//
//	go run ./scripts -strict
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type repoField struct {
	Name     string `json:"name"`
	RepoType string `json:"repo_type"`
}

type methodStats struct {
	StructName        string   `json:"struct_name"`
	Method            string   `json:"method"`
	File              string   `json:"file"`
	Line              int      `json:"line"`
	RepoWriteCalls    int      `json:"repo_write_calls"`
	WritesInTx        int      `json:"writes_in_tx"`
	RepoFieldsWritten []string `json:"repo_fields_written"`
}

type auditReport struct {
	Packages           []string      `json:"packages"`
	RepoWriteCallsites int           `json:"repo_write_callsites"`
	UnscopedMethods    []methodStats `json:"unscoped_multi_write_methods"`
	Methods            []methodStats `json:"methods"`
}

var repoWriteMethods = map[string]bool{
	"Create":                   true,
	"UpdateFields":             true,
	"UpdateFieldsForJob":       true,
	"UpdateFieldsUnlessStatus": true,
	"AppendContentForJob":      true,
	"ResetForRegeneration":     true,
	"DeleteForOwner":           true,
	"CancelRunnableForEntity":  true,
	"Heartbeat":                true,
}

func main() {
	root := flag.String("root", ".", "repository root")
	strict := flag.Bool("strict", false, "exit non-zero when unscoped multi-write methods exist")
	flag.Parse()

	dirs := []string{
		filepath.Join("internal", "services"),
		filepath.Join("internal", "jobs", "pipeline", "course_build"),
	}

	fset := token.NewFileSet()
	var methods []methodStats
	for _, dir := range dirs {
		files, err := parseDir(fset, filepath.Join(*root, dir))
		if err != nil {
			exitf("parse %s: %v", dir, err)
		}
		fieldsByStruct := map[string]map[string]repoField{}
		for _, f := range files {
			collectRepoFields(f, fieldsByStruct)
		}
		for path, f := range files {
			rel, err := filepath.Rel(*root, path)
			if err != nil {
				rel = path
			}
			collectMethodStats(fset, f, rel, fieldsByStruct, &methods)
		}
	}

	report := buildReport(dirs, methods)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if *strict && len(report.UnscopedMethods) > 0 {
		os.Exit(1)
	}
}

func parseDir(fset *token.FileSet, dir string) (map[string]*ast.File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := map[string]*ast.File{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		path := filepath.Join(dir, name)
		f, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			return nil, err
		}
		out[path] = f
	}
	return out, nil
}

func collectRepoFields(file *ast.File, out map[string]map[string]repoField) {
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok || st.Fields == nil {
				continue
			}
			fields := map[string]repoField{}
			for _, field := range st.Fields.List {
				if len(field.Names) == 0 {
					continue
				}
				sel, ok := field.Type.(*ast.SelectorExpr)
				if !ok {
					continue
				}
				pkgIdent, ok := sel.X.(*ast.Ident)
				if !ok || pkgIdent.Name != "repos" || !strings.HasSuffix(sel.Sel.Name, "Repo") {
					continue
				}
				name := field.Names[0].Name
				fields[name] = repoField{Name: name, RepoType: sel.Sel.Name}
			}
			if len(fields) > 0 {
				out[ts.Name.Name] = fields
			}
		}
	}
}

func collectMethodStats(
	fset *token.FileSet,
	file *ast.File,
	relFile string,
	fieldsByStruct map[string]map[string]repoField,
	out *[]methodStats,
) {
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || fd.Body == nil || len(fd.Recv.List) == 0 {
			continue
		}
		recvName, recvType := recvInfo(fd.Recv.List[0])
		fields, ok := fieldsByStruct[recvType]
		if recvName == "" || !ok {
			continue
		}

		stats := methodStats{
			StructName: recvType,
			Method:     fd.Name.Name,
			File:       filepath.ToSlash(relFile),
			Line:       fset.Position(fd.Pos()).Line,
		}
		written := map[string]bool{}
		walkWrites(fd.Body, false, func(field string, inTx bool) {
			if _, ok := fields[field]; !ok {
				return
			}
			stats.RepoWriteCalls++
			if inTx {
				stats.WritesInTx++
			}
			written[field] = true
		}, recvName)
		stats.RepoFieldsWritten = sortedKeys(written)
		*out = append(*out, stats)
	}
}

// walkWrites visits recv.field.Method(...) calls. Function literals passed to
// a Transaction call count as transaction scope.
func walkWrites(n ast.Node, inTx bool, visit func(field string, inTx bool), recvName string) {
	ast.Inspect(n, func(node ast.Node) bool {
		call, ok := node.(*ast.CallExpr)
		if !ok {
			return true
		}
		fnSel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if fnSel.Sel.Name == "Transaction" {
			for _, arg := range call.Args {
				if lit, ok := arg.(*ast.FuncLit); ok {
					walkWrites(lit.Body, true, visit, recvName)
				}
			}
			return false
		}
		rcvSel, ok := fnSel.X.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		base, ok := rcvSel.X.(*ast.Ident)
		if !ok || base.Name != recvName || !repoWriteMethods[fnSel.Sel.Name] {
			return true
		}
		visit(rcvSel.Sel.Name, inTx)
		return true
	})
}

func buildReport(dirs []string, methods []methodStats) auditReport {
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].File == methods[j].File {
			return methods[i].Line < methods[j].Line
		}
		return methods[i].File < methods[j].File
	})
	report := auditReport{Packages: dirs, Methods: methods}
	for _, m := range methods {
		report.RepoWriteCallsites += m.RepoWriteCalls
		if m.RepoWriteCalls >= 2 && m.WritesInTx < m.RepoWriteCalls {
			report.UnscopedMethods = append(report.UnscopedMethods, m)
		}
	}
	return report
}

func recvInfo(field *ast.Field) (string, string) {
	if field == nil || len(field.Names) == 0 {
		return "", ""
	}
	recvName := field.Names[0].Name
	switch t := field.Type.(type) {
	case *ast.StarExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return recvName, id.Name
		}
	case *ast.Ident:
		return recvName, t.Name
	}
	return "", ""
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
