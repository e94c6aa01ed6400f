// Package emit synthesizes the generated controller source from a
// classified plan.
//
// The emitter is mechanical: every name and capacity was decided during
// classification, so this package only renders the template, re-attaches the
// definition file's unrelated declarations, and formats the result.
package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/artpar/ctlgen/core/classify"
	"github.com/artpar/ctlgen/core/naming"
)

// RuntimeImport is the import path of the runtime support package generated
// code depends on.
const RuntimeImport = "github.com/artpar/ctlgen/actor"

// Generator renders generated controller files.
type Generator struct {
	runtimeImport string
}

// NewGenerator creates a generator with the default runtime import path.
func NewGenerator() *Generator {
	return &Generator{runtimeImport: RuntimeImport}
}

// SetRuntimeImport overrides the runtime import path, for vendored layouts.
func (g *Generator) SetRuntimeImport(path string) {
	g.runtimeImport = path
}

// OutputPath derives the generated file's path from the definition file's:
// power.ctl.go becomes power_ctl.go alongside it.
func OutputPath(input string) string {
	dir, base := filepath.Split(input)
	base = strings.TrimSuffix(base, ".go")
	base = strings.TrimSuffix(base, ".ctl")
	return filepath.Join(dir, base+"_ctl.go")
}

// Generate renders the full generated file for a classified plan. The
// sourceFile name is recorded in the file header. Output is gofmt-formatted;
// if formatting fails the unformatted source is returned alongside the error
// so the defect can be inspected.
func (g *Generator) Generate(p *classify.Plan, sourceFile string) ([]byte, error) {
	tmpl, err := template.New("controller").Parse(controllerTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, g.buildFileData(p, sourceFile)); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("format generated code: %w", err)
	}

	return formatted, nil
}

// fileData is the template's root context.
type fileData struct {
	SourceFile  string
	Package     string
	Imports     []string
	Others      []string
	Name        string
	Client      string
	Constructor string
	CtorParams  string

	Fields    []fieldData
	Published []fieldData
	Accessors []accessorData
	Ops       []opData
	Signals   []signalData
	Arms      []armData

	RequestDepth   int
	SignalDepth    int
	MaxSubscribers int
}

type fieldData struct {
	classify.Field
}

type accessorData struct {
	classify.Accessor
	IsGetter bool
}

type opData struct {
	classify.Operation

	// HasResp is false for operations with no results and no error; their
	// reply channel carries struct{}.
	HasResp   bool
	ReplyType string

	ClientParams  string // "ctx context.Context, v int"
	ClientResults string // "(int, error)" or "error"
	ReqFields     string // "v: v, " literal assignments
	RespFields    []nameType
	HandlerCall   string // "resp.r0, resp.err = m.Op(ctx, req.v)"
	RecvCase      string // the reply-received case of the client select
	CancelReturn  string // the ctx-cancelled return statement(s)
}

type signalData struct {
	classify.Signal
	EmitParams   string
	EventLiteral string
	EventFields  []nameType
}

type armData struct {
	ChanField     string
	RequestType   string
	HandlerMethod string
}

type nameType struct {
	Name string
	Type string
}

func (g *Generator) buildFileData(p *classify.Plan, sourceFile string) fileData {
	data := fileData{
		SourceFile:     sourceFile,
		Package:        p.Package,
		Imports:        mergeImports(p.Imports, g.runtimeImport),
		Others:         p.Others,
		Name:           p.Name,
		Client:         p.ClientType,
		Constructor:    p.Constructor,
		RequestDepth:   classify.RequestDepth,
		SignalDepth:    classify.SignalDepth,
		MaxSubscribers: classify.MaxSubscribers,
	}

	var ctorParams []string
	for _, f := range p.Fields {
		fd := fieldData{Field: f}
		data.Fields = append(data.Fields, fd)
		if f.Publish {
			data.Published = append(data.Published, fd)
		}
		ctorParams = append(ctorParams, f.Name+" "+f.Type)
	}
	data.CtorParams = strings.Join(ctorParams, ", ")

	// Dispatch arm order: field accessors first in field declaration order,
	// then operations in declaration order.
	for _, a := range p.Accessors {
		data.Accessors = append(data.Accessors, accessorData{Accessor: a, IsGetter: a.Kind == classify.Getter})
		data.Arms = append(data.Arms, armData{ChanField: a.ChanField, RequestType: a.RequestType, HandlerMethod: a.HandlerMethod})
	}
	for _, op := range p.Proxied {
		data.Ops = append(data.Ops, buildOpData(op))
		data.Arms = append(data.Arms, armData{ChanField: op.ChanField, RequestType: op.RequestType, HandlerMethod: op.HandlerMethod})
	}

	for _, s := range p.Signals {
		data.Signals = append(data.Signals, buildSignalData(s))
	}

	return data
}

func buildOpData(op classify.Operation) opData {
	d := opData{
		Operation: op,
		HasResp:   len(op.Results) > 0 || op.ReturnsErr,
	}

	if d.HasResp {
		d.ReplyType = op.ResponseType
	} else {
		d.ReplyType = "struct{}"
	}

	params := []string{"ctx context.Context"}
	var reqFields []string
	var args []string
	for _, param := range op.Params {
		params = append(params, param.Name+" "+param.Type)
		reqFields = append(reqFields, param.Name+": "+param.Name+",")
		args = append(args, "req."+param.Name)
	}
	d.ClientParams = strings.Join(params, ", ")
	d.ReqFields = strings.Join(reqFields, " ")

	var results []string
	var okVals []string
	var cancelVals []string
	for i, r := range op.Results {
		name := fmt.Sprintf("r%d", i)
		results = append(results, r)
		d.RespFields = append(d.RespFields, nameType{Name: name, Type: r})
		okVals = append(okVals, "resp."+name)
		cancelVals = append(cancelVals, "resp."+name)
	}
	if op.ReturnsErr {
		d.RespFields = append(d.RespFields, nameType{Name: "err", Type: "error"})
		okVals = append(okVals, "resp.err")
	} else if d.HasResp {
		okVals = append(okVals, "nil")
	}
	results = append(results, "error")
	cancelVals = append(cancelVals, "ctx.Err()")

	if len(results) == 1 {
		d.ClientResults = "error"
	} else {
		d.ClientResults = "(" + strings.Join(results, ", ") + ")"
	}

	call := "m." + op.Name + "(ctx" + prefixJoin(args) + ")"
	if d.HasResp {
		var targets []string
		for _, f := range d.RespFields {
			targets = append(targets, "resp."+f.Name)
		}
		d.HandlerCall = strings.Join(targets, ", ") + " = " + call
		d.RecvCase = "case resp := <-req.reply:\n\t\treturn " + strings.Join(okVals, ", ")
	} else {
		d.HandlerCall = call
		d.RecvCase = "case <-req.reply:\n\t\treturn nil"
	}

	if len(op.Results) > 0 {
		d.CancelReturn = "var resp " + op.ResponseType + "\n\t\treturn " + strings.Join(cancelVals, ", ")
	} else {
		d.CancelReturn = "return ctx.Err()"
	}

	return d
}

func buildSignalData(s classify.Signal) signalData {
	d := signalData{Signal: s}

	params := []string{"ctx context.Context"}
	var literal []string
	for _, param := range s.Params {
		field := naming.Pascal(param.Name)
		params = append(params, param.Name+" "+param.Type)
		d.EventFields = append(d.EventFields, nameType{Name: field, Type: param.Type})
		literal = append(literal, field+": "+param.Name)
	}
	d.EmitParams = strings.Join(params, ", ")
	d.EventLiteral = s.EventType + "{" + strings.Join(literal, ", ") + "}"

	return d
}

// mergeImports combines the definition file's imports with the ones the
// generated wiring needs, deduplicated by import path.
func mergeImports(orig []string, runtimeImport string) []string {
	needed := []string{`"context"`, `"` + runtimeImport + `"`}

	seen := make(map[string]bool)
	var merged []string
	add := func(imp string) {
		path := imp
		if i := strings.IndexByte(imp, '"'); i >= 0 {
			path = imp[i:]
		}
		if seen[path] {
			return
		}
		seen[path] = true
		merged = append(merged, imp)
	}

	for _, imp := range orig {
		add(imp)
	}
	for _, imp := range needed {
		add(imp)
	}
	return merged
}

func prefixJoin(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return ", " + strings.Join(args, ", ")
}
