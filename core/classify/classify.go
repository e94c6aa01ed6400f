// Package classify attaches a channel-endpoint plan to every field and
// operation of a validated controller specification.
//
// Classification is where every generated identifier is decided: channel
// field names, request/response type names, client method names, and event
// record names. The emitter downstream is purely mechanical.
package classify

import (
	"fmt"

	"github.com/artpar/ctlgen/core/naming"
	"github.com/artpar/ctlgen/core/spec"
)

// Fixed channel capacities of the generated actor.
const (
	// RequestDepth is the capacity of every request channel. A full channel
	// suspends the caller (backpressure); it never drops.
	RequestDepth = 8

	// SignalDepth is the per-subscriber queue depth of a signal broadcast.
	// A lagging subscriber loses its oldest unread item.
	SignalDepth = 8

	// MaxSubscribers bounds the concurrent observers of any broadcast.
	MaxSubscribers = 16
)

// Plan is the fully classified controller, ready for emission.
type Plan struct {
	// Name is the state-holder type name.
	Name string

	// Package is the output package name.
	Package string

	// ClientType is the client facade type name.
	ClientType string

	// Constructor is the generated constructor name.
	Constructor string

	// Fields are all state fields in declaration order, with publish plans
	// attached.
	Fields []Field

	// Accessors are the getter/setter dispatch arms, in field declaration
	// order with a field's getter ahead of its setter.
	Accessors []Accessor

	// Proxied are the author-implemented operations in declaration order,
	// which is also their dispatch priority.
	Proxied []Operation

	// Signals are the generator-synthesized broadcast operations.
	Signals []Signal

	// Imports and Others carry the definition file's unrelated source,
	// re-attached untouched by the emitter. OtherNames are the package-level
	// identifiers Others declare.
	Imports    []string
	Others     []string
	OtherNames []string
}

// Field is a state field with its broadcast plan.
type Field struct {
	// Name and Type as declared.
	Name string
	Type string

	// Publish marks the field for latest-value broadcast.
	Publish bool

	// CellField is the controller field holding the broadcast cell.
	CellField string

	// SetterMethod is the controller-internal setter that mutates the field
	// and pushes the new value, e.g. SetState. Present only when Publish.
	SetterMethod string

	// SubscribeMethod is the client subscription method, e.g.
	// ReceiveStateChanged. Present only when Publish.
	SubscribeMethod string
}

// AccessorKind distinguishes getter and setter dispatch arms.
type AccessorKind int

const (
	Getter AccessorKind = iota
	Setter
)

// Accessor is a field read or write routed through the dispatch loop like a
// proxied operation, so access is serialized with everything else.
type Accessor struct {
	// FieldName and FieldType identify the accessed field.
	FieldName string
	FieldType string

	// Kind is Getter or Setter.
	Kind AccessorKind

	// ClientMethod is the facade method name, e.g. GetState or SetVoltageMV.
	ClientMethod string

	// ChanField is the controller's request channel field.
	ChanField string

	// RequestType is the unexported request struct name.
	RequestType string

	// HandlerMethod is the controller's dispatch handler.
	HandlerMethod string

	// Publish is set on setters of published fields: the handler mutates and
	// broadcasts as one dispatch step.
	Publish bool

	// SetterMethod is the internal publishing setter the handler calls when
	// Publish is set.
	SetterMethod string
}

// Operation is a proxied operation with its request/response plan.
type Operation struct {
	// Name is the author's method name, which is also the facade method name.
	Name string

	// Params are the parameters after the context.
	Params []spec.Param

	// Results are the result types, excluding a trailing error.
	Results []string

	// ReturnsErr is true when the operation's last result is error.
	ReturnsErr bool

	// ChanField is the controller's request channel field.
	ChanField string

	// RequestType and ResponseType are the unexported plumbing structs.
	RequestType  string
	ResponseType string

	// HandlerMethod is the controller's dispatch handler.
	HandlerMethod string

	// Source is the author's method, re-emitted verbatim.
	Source string
}

// Signal is a broadcast operation with its topic plan.
type Signal struct {
	// Name is the synthesized emitter method name on the controller.
	Name string

	// Params are the broadcast arguments.
	Params []spec.Param

	// TopicField is the controller field holding the broadcast topic.
	TopicField string

	// EventType is the argument-bundle record carried on the stream.
	EventType string

	// SubscribeMethod is the client subscription method.
	SubscribeMethod string
}

// Classify builds the endpoint plan for a parsed controller.
func Classify(c *spec.Controller) (*Plan, error) {
	p := &Plan{
		Name:        c.Name,
		Package:     c.Package,
		ClientType:  c.Name + "Client",
		Constructor: "New" + c.Name,
		Imports:     c.Imports,
		Others:      c.Others,
		OtherNames:  c.OtherNames,
	}

	for _, f := range c.Fields {
		p.Fields = append(p.Fields, classifyField(c.Name, f))
		p.Accessors = append(p.Accessors, classifyAccessors(c.Name, f)...)
	}

	for _, op := range c.Operations {
		if op.Signal {
			p.Signals = append(p.Signals, classifySignal(c.Name, op))
			continue
		}
		p.Proxied = append(p.Proxied, classifyOperation(c.Name, op))
	}

	if err := checkCollisions(p); err != nil {
		return nil, err
	}
	return p, nil
}

func classifyField(ctrl string, f spec.Field) Field {
	cf := Field{
		Name:    f.Name,
		Type:    f.Type,
		Publish: f.Publish,
	}
	if f.Publish {
		cf.CellField = naming.Camel(f.Name) + "Cell"
		cf.SetterMethod = naming.Pascal("set_" + f.Name)
		cf.SubscribeMethod = "Receive" + naming.Pascal(f.Name) + "Changed"
	}
	return cf
}

// classifyAccessors plans the dispatch arms for a field, getter first.
func classifyAccessors(ctrl string, f spec.Field) []Accessor {
	var arms []Accessor

	if f.Getter != "" {
		method := naming.Pascal(f.Getter)
		arms = append(arms, Accessor{
			FieldName:     f.Name,
			FieldType:     f.Type,
			Kind:          Getter,
			ClientMethod:  method,
			ChanField:     naming.Camel(f.Getter) + "Reqs",
			RequestType:   naming.Camel(ctrl) + method + "Request",
			HandlerMethod: "handle" + method,
		})
	}

	if f.Setter != "" {
		method := naming.Pascal(f.Setter)
		arm := Accessor{
			FieldName:     f.Name,
			FieldType:     f.Type,
			Kind:          Setter,
			ClientMethod:  method,
			ChanField:     naming.Camel(f.Setter) + "Reqs",
			RequestType:   naming.Camel(ctrl) + method + "Request",
			HandlerMethod: "handle" + method,
			Publish:       f.Publish,
		}
		if f.Publish {
			arm.SetterMethod = naming.Pascal("set_" + f.Name)
		}
		arms = append(arms, arm)
	}

	return arms
}

func classifyOperation(ctrl string, op spec.Operation) Operation {
	return Operation{
		Name:          op.Name,
		Params:        op.Params,
		Results:       op.Results,
		ReturnsErr:    op.ReturnsErr,
		ChanField:     naming.Camel(op.Name) + "Reqs",
		RequestType:   naming.Camel(ctrl) + naming.Pascal(op.Name) + "Request",
		ResponseType:  naming.Camel(ctrl) + naming.Pascal(op.Name) + "Response",
		HandlerMethod: "handle" + naming.Pascal(op.Name),
		Source:        op.Source,
	}
}

func classifySignal(ctrl string, op spec.Operation) Signal {
	pascal := naming.Pascal(op.Name)
	return Signal{
		Name:            op.Name,
		Params:          op.Params,
		TopicField:      naming.Camel(op.Name) + "Topic",
		EventType:       ctrl + pascal + "Event",
		SubscribeMethod: "Receive" + pascal,
	}
}

// checkCollisions rejects plans where a synthesized name collides, either
// with another synthesized name or with an author declaration. The names are
// derived, so a collision is an input defect the author has to resolve, and
// it must surface here rather than as a compile error in the output.
func checkCollisions(p *Plan) error {
	claim := func(ns map[string]string, name, owner, kind string) error {
		if prev, ok := ns[name]; ok {
			return fmt.Errorf("classify %s: %s and %s collide on %s %s", p.Name, prev, owner, kind, name)
		}
		ns[name] = owner
		return nil
	}

	// Facade methods live on the client type.
	facade := map[string]string{}
	claimFacade := func(name, owner string) error {
		return claim(facade, name, owner, "client method")
	}

	// Fields and methods of the controller share one namespace, so the
	// generated loop machinery is claimed alongside the author's fields and
	// operations.
	members := map[string]string{
		"Run":       "the dispatch loop",
		"Client":    "the facade constructor",
		"terminate": "the teardown method",
		"running":   "the run guard field",
	}
	claimMember := func(name, owner string) error {
		return claim(members, name, owner, "controller member")
	}

	// Synthesized package-level types and functions sit next to the
	// retained declarations.
	pkgLevel := map[string]string{
		p.Name:        "the controller struct",
		p.ClientType:  "the client type",
		p.Constructor: "the constructor",
	}
	claimPkg := func(name, owner string) error {
		return claim(pkgLevel, name, owner, "package-level name")
	}

	for _, f := range p.Fields {
		if err := claimMember(f.Name, "field "+f.Name); err != nil {
			return err
		}
		if !f.Publish {
			continue
		}
		for _, derived := range []struct{ name, what string }{
			{f.CellField, "broadcast cell of field " + f.Name},
			{f.SetterMethod, "internal setter of field " + f.Name},
		} {
			if err := claimMember(derived.name, derived.what); err != nil {
				return err
			}
		}
		if err := claimFacade(f.SubscribeMethod, "published field "+f.Name); err != nil {
			return err
		}
	}

	for _, a := range p.Accessors {
		if err := claimFacade(a.ClientMethod, "field "+a.FieldName); err != nil {
			return err
		}
		if err := claimMember(a.ChanField, "request channel of field "+a.FieldName); err != nil {
			return err
		}
		if err := claimMember(a.HandlerMethod, "handler of field "+a.FieldName); err != nil {
			return err
		}
		if err := claimPkg(a.RequestType, "request type of field "+a.FieldName); err != nil {
			return err
		}
	}

	for _, op := range p.Proxied {
		if err := claimMember(op.Name, "operation "+op.Name); err != nil {
			return err
		}
		if err := claimFacade(op.Name, "operation "+op.Name); err != nil {
			return err
		}
		if err := claimMember(op.ChanField, "request channel of operation "+op.Name); err != nil {
			return err
		}
		if err := claimMember(op.HandlerMethod, "handler of operation "+op.Name); err != nil {
			return err
		}
		if err := claimPkg(op.RequestType, "request type of operation "+op.Name); err != nil {
			return err
		}
		if len(op.Results) > 0 || op.ReturnsErr {
			if err := claimPkg(op.ResponseType, "response type of operation "+op.Name); err != nil {
				return err
			}
		}
		for _, param := range op.Params {
			if param.Name == "reply" {
				return fmt.Errorf("classify %s: operation %s: parameter name %q is reserved", p.Name, op.Name, param.Name)
			}
		}
	}

	for _, s := range p.Signals {
		if err := claimMember(s.Name, "signal "+s.Name); err != nil {
			return err
		}
		if err := claimMember(s.TopicField, "broadcast topic of signal "+s.Name); err != nil {
			return err
		}
		if err := claimFacade(s.SubscribeMethod, "signal "+s.Name); err != nil {
			return err
		}
		if err := claimPkg(s.EventType, "event type of signal "+s.Name); err != nil {
			return err
		}
	}

	for _, name := range p.OtherNames {
		if err := claimPkg(name, "declaration "+name); err != nil {
			return err
		}
	}

	return nil
}
