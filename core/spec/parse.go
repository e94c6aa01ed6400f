package spec

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"
)

// ParseFile parses and validates a controller definition file.
func ParseFile(path string) (*Controller, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(path, src)
}

// Parse parses and validates a definition file from source bytes. The
// filename is used for error positions only.
func Parse(filename string, src []byte) (*Controller, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	p := &fileParser{fset: fset, src: src}
	return p.parse(file)
}

type fileParser struct {
	fset *token.FileSet
	src  []byte
}

// text returns the source text between two positions.
func (p *fileParser) text(start, end token.Pos) string {
	return string(p.src[p.fset.Position(start).Offset:p.fset.Position(end).Offset])
}

// declText returns the source text of a declaration including its doc comment.
func (p *fileParser) declText(doc *ast.CommentGroup, decl ast.Decl) string {
	start := decl.Pos()
	if doc != nil {
		start = doc.Pos()
	}
	return p.text(start, decl.End())
}

func (p *fileParser) parse(file *ast.File) (*Controller, error) {
	c := &Controller{Package: file.Name.Name}

	structDecl, structSpec, structType, err := p.findController(file)
	if err != nil {
		return nil, err
	}
	c.Name = structSpec.Name.Name

	if err := p.parseFields(c, structType); err != nil {
		return nil, err
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d == structDecl {
				continue
			}
			if d.Tok == token.IMPORT {
				for _, s := range d.Specs {
					imp := s.(*ast.ImportSpec)
					c.Imports = append(c.Imports, p.text(imp.Pos(), imp.End()))
				}
				continue
			}
			c.Others = append(c.Others, p.declText(d.Doc, d))
			for _, s := range d.Specs {
				switch sp := s.(type) {
				case *ast.TypeSpec:
					c.OtherNames = append(c.OtherNames, sp.Name.Name)
				case *ast.ValueSpec:
					for _, n := range sp.Names {
						if n.Name != "_" {
							c.OtherNames = append(c.OtherNames, n.Name)
						}
					}
				}
			}
		case *ast.FuncDecl:
			if d.Recv == nil {
				c.Others = append(c.Others, p.declText(d.Doc, d))
				if d.Name.Name != "_" && d.Name.Name != "init" {
					c.OtherNames = append(c.OtherNames, d.Name.Name)
				}
				continue
			}
			op, err := p.parseOperation(c.Name, d)
			if err != nil {
				return nil, err
			}
			c.Operations = append(c.Operations, op)
		}
	}

	return c, nil
}

// findController locates the single //ctl:controller struct.
func (p *fileParser) findController(file *ast.File) (*ast.GenDecl, *ast.TypeSpec, *ast.StructType, error) {
	var (
		decl *ast.GenDecl
		ts   *ast.TypeSpec
		st   *ast.StructType
	)

	for _, d := range file.Decls {
		gd, ok := d.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, s := range gd.Specs {
			spec := s.(*ast.TypeSpec)
			doc := spec.Doc
			if doc == nil {
				doc = gd.Doc
			}
			dirs, err := p.directives(doc)
			if err != nil {
				return nil, nil, nil, err
			}
			if !dirs.has("controller") {
				continue
			}

			marked, ok := spec.Type.(*ast.StructType)
			if !ok {
				return nil, nil, nil, shapeErrorf(p.fset, spec.Pos(),
					"//ctl:controller must mark a struct type, %s is not a struct", spec.Name.Name)
			}
			if ts != nil {
				return nil, nil, nil, shapeErrorf(p.fset, spec.Pos(),
					"definition must contain exactly one controller struct: %s and %s are both marked", ts.Name.Name, spec.Name.Name)
			}
			if len(gd.Specs) > 1 {
				return nil, nil, nil, shapeErrorf(p.fset, spec.Pos(),
					"controller struct %s must be declared in its own type block", spec.Name.Name)
			}
			decl, ts, st = gd, spec, marked
		}
	}

	if ts == nil {
		return nil, nil, nil, shapeErrorf(p.fset, file.Package,
			"definition must contain exactly one //ctl:controller struct")
	}
	return decl, ts, st, nil
}

// parseFields walks the state holder's fields in declaration order.
func (p *fileParser) parseFields(c *Controller, st *ast.StructType) error {
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			return shapeErrorf(p.fset, field.Pos(),
				"controller struct %s must not contain embedded fields", c.Name)
		}

		dirs, err := p.directives(field.Doc)
		if err != nil {
			return err
		}

		f := Field{Type: p.text(field.Type.Pos(), field.Type.End())}
		for _, d := range dirs {
			switch d.name {
			case "publish":
				f.Publish = true
			case "getter":
				f.Getter = d.value // resolved per-name below
				if f.Getter == "" {
					f.Getter = "-"
				}
			case "setter":
				f.Setter = d.value
				if f.Setter == "" {
					f.Setter = "-"
				}
			default:
				return shapeErrorf(p.fset, d.pos,
					"unknown field directive //ctl:%s: expected publish, getter, or setter", d.name)
			}
		}

		if f.Publish || f.Getter != "" || f.Setter != "" {
			if err := p.checkValueType(field.Type, "field"); err != nil {
				return err
			}
		}

		for _, name := range field.Names {
			nf := f
			nf.Name = name.Name
			if nf.Getter == "-" {
				nf.Getter = name.Name
			}
			if nf.Setter == "-" {
				nf.Setter = "set_" + name.Name
			}
			c.Fields = append(c.Fields, nf)
		}
	}

	return nil
}

// parseOperation validates one method of the operation set.
func (p *fileParser) parseOperation(ctrlName string, d *ast.FuncDecl) (Operation, error) {
	recv, err := p.receiverType(d)
	if err != nil {
		return Operation{}, err
	}
	if recv != ctrlName {
		return Operation{}, shapeErrorf(p.fset, d.Pos(),
			"operation %s is declared for type %q but the controller struct is named %q", d.Name.Name, recv, ctrlName)
	}

	dirs, err := p.directives(d.Doc)
	if err != nil {
		return Operation{}, err
	}
	op := Operation{Name: d.Name.Name}
	for _, dir := range dirs {
		if dir.name != "signal" {
			return Operation{}, shapeErrorf(p.fset, dir.pos,
				"unknown operation directive //ctl:%s: expected signal", dir.name)
		}
		op.Signal = true
	}

	params := d.Type.Params.List
	if len(params) == 0 || !isContextType(params[0].Type) {
		return Operation{}, shapeErrorf(p.fset, d.Pos(),
			"operation %s must be asynchronous: its first parameter must be a context.Context", op.Name)
	}
	for i, param := range params {
		if i == 0 && len(param.Names) <= 1 {
			continue
		}
		if len(param.Names) == 0 {
			return Operation{}, shapeErrorf(p.fset, param.Pos(),
				"operation %s: parameters must be named", op.Name)
		}
		if err := p.checkValueType(param.Type, "parameter"); err != nil {
			return Operation{}, err
		}
		typ := p.text(param.Type.Pos(), param.Type.End())
		names := param.Names
		if i == 0 {
			names = names[1:] // skip the context
		}
		for _, n := range names {
			op.Params = append(op.Params, Param{Name: n.Name, Type: typ})
		}
	}

	if d.Type.Results != nil {
		var types []string
		for _, r := range d.Type.Results.List {
			typ := p.text(r.Type.Pos(), r.Type.End())
			n := len(r.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				types = append(types, typ)
			}
		}
		if last := len(types) - 1; last >= 0 && types[last] == "error" {
			op.ReturnsErr = true
			types = types[:last]
		}
		for _, typ := range types {
			if typ == "error" {
				return Operation{}, shapeErrorf(p.fset, d.Pos(),
					"operation %s: error must be the final result", op.Name)
			}
		}
		for _, r := range d.Type.Results.List {
			if p.text(r.Type.Pos(), r.Type.End()) == "error" {
				continue
			}
			if err := p.checkValueType(r.Type, "result"); err != nil {
				return Operation{}, err
			}
		}
		op.Results = types
	}

	if op.Signal {
		if d.Body != nil {
			return Operation{}, shapeErrorf(p.fset, d.Pos(),
				"signal %s must not be implemented: the generator synthesizes its body", op.Name)
		}
		if len(op.Results) > 0 || op.ReturnsErr {
			return Operation{}, shapeErrorf(p.fset, d.Pos(),
				"signal %s must not declare results", op.Name)
		}
	} else {
		if d.Body == nil {
			return Operation{}, shapeErrorf(p.fset, d.Pos(),
				"operation %s has no body; only //ctl:signal operations may omit one", op.Name)
		}
		op.Source = p.declText(d.Doc, d)
	}

	return op, nil
}

// receiverType extracts the receiver's base type name, requiring a pointer
// receiver so the operation can mutate state.
func (p *fileParser) receiverType(d *ast.FuncDecl) (string, error) {
	recv := d.Recv.List[0]
	star, ok := recv.Type.(*ast.StarExpr)
	if !ok {
		return "", shapeErrorf(p.fset, recv.Pos(),
			"operation %s must use a pointer receiver", d.Name.Name)
	}
	switch t := star.X.(type) {
	case *ast.Ident:
		return t.Name, nil
	case *ast.IndexExpr, *ast.IndexListExpr:
		return "", shapeErrorf(p.fset, recv.Pos(),
			"operation %s: generic controller types are not supported", d.Name.Name)
	default:
		return "", shapeErrorf(p.fset, recv.Pos(),
			"operation %s has an unsupported receiver type", d.Name.Name)
	}
}

// checkValueType rejects reference types, which cannot cross a channel
// boundary as an owned value.
func (p *fileParser) checkValueType(expr ast.Expr, what string) *ShapeError {
	switch t := expr.(type) {
	case *ast.Ident:
		if t.Name == "error" {
			return shapeErrorf(p.fset, expr.Pos(),
				"%s type error is an interface; error is permitted only as an operation's final result", what)
		}
		return nil
	case *ast.SelectorExpr:
		return nil
	case *ast.ArrayType:
		if t.Len == nil {
			return shapeErrorf(p.fset, expr.Pos(),
				"%s type %s is a reference type; only duplicable value types may cross a channel", what, p.text(expr.Pos(), expr.End()))
		}
		return p.checkValueType(t.Elt, what)
	default:
		return shapeErrorf(p.fset, expr.Pos(),
			"%s type %s is a reference type; only duplicable value types may cross a channel", what, p.text(expr.Pos(), expr.End()))
	}
}

// isContextType reports whether the expression is context.Context.
func isContextType(expr ast.Expr) bool {
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "context" && sel.Sel.Name == "Context"
}

// directive is a single parsed //ctl: marker.
type directive struct {
	name  string
	value string
	pos   token.Pos
}

type directiveList []directive

func (l directiveList) has(name string) bool {
	for _, d := range l {
		if d.name == name {
			return true
		}
	}
	return false
}

// directives extracts //ctl: markers from a comment group.
func (p *fileParser) directives(doc *ast.CommentGroup) (directiveList, error) {
	if doc == nil {
		return nil, nil
	}

	var dirs directiveList
	for _, comment := range doc.List {
		rest, ok := strings.CutPrefix(comment.Text, "//ctl:")
		if !ok {
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimSpace(rest), "=")
		if name == "" {
			return nil, shapeErrorf(p.fset, comment.Pos(), "empty //ctl: directive")
		}
		if hasValue && !isValidIdentifier(value) {
			return nil, shapeErrorf(p.fset, comment.Pos(),
				"directive //ctl:%s: value %q is not a valid identifier", name, value)
		}
		dirs = append(dirs, directive{name: name, value: value, pos: comment.Pos()})
	}
	return dirs, nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
