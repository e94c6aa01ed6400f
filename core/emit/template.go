package emit

// controllerTemplate renders the complete generated file. Formatting is left
// loose; go/format normalizes the output.
const controllerTemplate = `// Code generated by ctlgen. DO NOT EDIT.
//
// Source: {{.SourceFile}}

package {{.Package}}

import (
{{- range .Imports}}
	{{.}}
{{- end}}
)

{{range .Others}}
{{.}}
{{end}}

// {{.Name}} owns its state exclusively. External callers reach it through
// {{.Client}}; the dispatch loop in Run services one request to completion
// at a time, so operation bodies touch state without locking.
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}}
{{- end}}
{{range .Published}}
	{{.CellField}} *actor.Cell[{{.Type}}]
{{- end}}
{{- range .Signals}}
	{{.TopicField}} *actor.Topic[{{.EventType}}]
{{- end}}
{{range .Arms}}
	{{.ChanField}} chan {{.RequestType}}
{{- end}}

	running actor.RunGuard
}

// {{.Constructor}} creates the controller and its channel set. Parameters
// follow field declaration order. Published fields seed their broadcast, so
// a subscriber's first poll returns the initial value without waiting for a
// change.
func {{.Constructor}}({{.CtorParams}}) *{{.Name}} {
	return &{{.Name}}{
{{- range .Fields}}
		{{.Name}}: {{.Name}},
{{- end}}
{{- range .Published}}
		{{.CellField}}: actor.NewCell[{{.Type}}]({{.Name}}),
{{- end}}
{{- range .Signals}}
		{{.TopicField}}: actor.NewTopic[{{.EventType}}]({{$.SignalDepth}}),
{{- end}}
{{- range .Arms}}
		{{.ChanField}}: make(chan {{.RequestType}}, {{$.RequestDepth}}),
{{- end}}
	}
}
{{range .Published}}
// {{.SetterMethod}} stores a new value and broadcasts it. The write and the
// broadcast are one step from the dispatch loop's point of view; no other
// request can interleave.
func (m *{{$.Name}}) {{.SetterMethod}}(value {{.Type}}) {
	m.{{.Name}} = value
	m.{{.CellField}}.Set(value)
}
{{end}}
{{- range .Signals}}
// {{.Name}} broadcasts to every {{.SubscribeMethod}} subscriber. Only the
// controller may emit it. A subscriber whose queue is full loses its oldest
// unread event; other subscribers are unaffected.
func (m *{{$.Name}}) {{.Name}}({{.EmitParams}}) {
	m.{{.TopicField}}.Publish({{.EventLiteral}})
}
{{end}}
{{- range .Ops}}
{{.Source}}
{{end}}
{{- range .Accessors}}
func (m *{{$.Name}}) {{.HandlerMethod}}(_ context.Context, req {{.RequestType}}) {
{{- if .IsGetter}}
	req.reply <- m.{{.FieldName}}
{{- else if .Publish}}
	m.{{.SetterMethod}}(req.value)
	req.reply <- struct{}{}
{{- else}}
	m.{{.FieldName}} = req.value
	req.reply <- struct{}{}
{{- end}}
}
{{end}}
{{- range .Ops}}
func (m *{{$.Name}}) {{.HandlerMethod}}(ctx context.Context, req {{.RequestType}}) {
{{- if .HasResp}}
	var resp {{.ResponseType}}
	{{.HandlerCall}}
	req.reply <- resp
{{- else}}
	{{.HandlerCall}}
	req.reply <- struct{}{}
{{- end}}
}
{{end}}
// Run services requests until ctx is cancelled, handling exactly one
// request to completion per iteration. Requests that are ready at the same
// moment are serviced in declaration order. At most one loop may run per
// controller; a second concurrent Run fails with actor.ErrControllerRunning.
// On return every subscriber stream is terminated.
func (m *{{.Name}}) Run(ctx context.Context) error {
	if err := m.running.Acquire(); err != nil {
		return err
	}
	defer m.running.Release()
	defer m.terminate()

	for {
{{- range .Arms}}
		select {
		case req := <-m.{{.ChanField}}:
			m.{{.HandlerMethod}}(ctx, req)
			continue
		default:
		}
{{- end}}

		select {
		case <-ctx.Done():
			return ctx.Err()
{{- range .Arms}}
		case req := <-m.{{.ChanField}}:
			m.{{.HandlerMethod}}(ctx, req)
{{- end}}
		}
	}
}

// terminate ends every subscriber stream.
func (m *{{.Name}}) terminate() {
{{- range .Published}}
	m.{{.CellField}}.Close()
{{- end}}
{{- range .Signals}}
	m.{{.TopicField}}.Close()
{{- end}}
}

// {{.Client}} is the facade through which external callers invoke
// operations and subscribe to notifications. Any number of clients may
// attach to one controller; every call is serialized through the dispatch
// loop.
type {{.Client}} struct {
	m *{{.Name}}
}

// Client attaches a facade to the controller's channel set.
func (m *{{.Name}}) Client() *{{.Client}} {
	return &{{.Client}}{m: m}
}
{{range .Accessors}}
{{- if .IsGetter}}
// {{.ClientMethod}} reads the {{.FieldName}} field through the dispatch
// loop, serialized with every other operation.
func (c *{{$.Client}}) {{.ClientMethod}}(ctx context.Context) ({{.FieldType}}, error) {
	req := {{.RequestType}}{reply: make(chan {{.FieldType}}, 1)}
	select {
	case c.m.{{.ChanField}} <- req:
	case <-ctx.Done():
		var zero {{.FieldType}}
		return zero, ctx.Err()
	}
	select {
	case v := <-req.reply:
		return v, nil
	case <-ctx.Done():
		var zero {{.FieldType}}
		return zero, ctx.Err()
	}
}
{{- else}}
// {{.ClientMethod}} writes the {{.FieldName}} field through the dispatch
// loop{{if .Publish}} and broadcasts the new value{{end}}.
func (c *{{$.Client}}) {{.ClientMethod}}(ctx context.Context, value {{.FieldType}}) error {
	req := {{.RequestType}}{value: value, reply: make(chan struct{}, 1)}
	select {
	case c.m.{{.ChanField}} <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
{{- end}}
{{end}}
{{- range .Ops}}
// {{.Name}} invokes the operation on the controller and waits for its
// response. A full request channel suspends the caller; requests are never
// dropped.
func (c *{{$.Client}}) {{.Name}}({{.ClientParams}}) {{.ClientResults}} {
	req := {{.RequestType}}{ {{.ReqFields}} reply: make(chan {{.ReplyType}}, 1)}
	select {
	case c.m.{{.ChanField}} <- req:
	case <-ctx.Done():
		{{.CancelReturn}}
	}
	select {
	{{.RecvCase}}
	case <-ctx.Done():
		{{.CancelReturn}}
	}
}
{{end}}
{{- range .Published}}
// {{.SubscribeMethod}} subscribes to {{.Name}} changes: a latest-value
// stream that yields the current value first and silently coalesces
// intermediate updates. At most {{$.MaxSubscribers}} concurrent subscribers.
func (c *{{$.Client}}) {{.SubscribeMethod}}() (*actor.CellSub[{{.Type}}], error) {
	return c.m.{{.CellField}}.Subscribe()
}
{{end}}
{{- range .Signals}}
// {{.SubscribeMethod}} subscribes to the {{.Name}} signal: an ordered
// stream of argument bundles, terminated when the controller terminates.
func (c *{{$.Client}}) {{.SubscribeMethod}}() (*actor.TopicSub[{{.EventType}}], error) {
	return c.m.{{.TopicField}}.Subscribe()
}
{{end}}
{{- range .Signals}}
// {{.EventType}} is the argument bundle delivered to {{.SubscribeMethod}}
// subscribers.
type {{.EventType}} struct {
{{- range .EventFields}}
	{{.Name}} {{.Type}}
{{- end}}
}
{{end}}
{{- range .Accessors}}
type {{.RequestType}} struct {
{{- if .IsGetter}}
	reply chan {{.FieldType}}
{{- else}}
	value {{.FieldType}}
	reply chan struct{}
{{- end}}
}
{{end}}
{{- range .Ops}}
type {{.RequestType}} struct {
{{- range .Params}}
	{{.Name}} {{.Type}}
{{- end}}
	reply chan {{.ReplyType}}
}
{{if .HasResp}}
type {{.ResponseType}} struct {
{{- range .RespFields}}
	{{.Name}} {{.Type}}
{{- end}}
}
{{end}}
{{- end}}
`
