package classify

import (
	"strings"
	"testing"

	"github.com/artpar/ctlgen/core/spec"
)

func testController() *spec.Controller {
	return &spec.Controller{
		Name:    "PowerManager",
		Package: "power",
		Fields: []spec.Field{
			{Name: "state", Type: "State", Publish: true, Getter: "get_state"},
			{Name: "voltageMV", Type: "int", Getter: "voltageMV", Setter: "set_voltageMV"},
			{Name: "retries", Type: "int"},
		},
		Operations: []spec.Operation{
			{Name: "PowerError", Signal: true, Params: []spec.Param{{Name: "desc", Type: "string"}}},
			{Name: "EnablePower", ReturnsErr: true, Source: "func (m *PowerManager) EnablePower(ctx context.Context) error { return nil }"},
			{Name: "ReadVoltage", Results: []string{"int"}, ReturnsErr: true, Source: "func (m *PowerManager) ReadVoltage(ctx context.Context) (int, error) { return 0, nil }"},
		},
	}
}

func TestClassify_Fields(t *testing.T) {
	p, err := Classify(testController())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if p.ClientType != "PowerManagerClient" {
		t.Errorf("expected client type PowerManagerClient, got %q", p.ClientType)
	}
	if p.Constructor != "NewPowerManager" {
		t.Errorf("expected constructor NewPowerManager, got %q", p.Constructor)
	}

	// Field order is preserved: it drives constructor parameter order.
	want := []string{"state", "voltageMV", "retries"}
	if len(p.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(p.Fields))
	}
	for i, name := range want {
		if p.Fields[i].Name != name {
			t.Errorf("field %d: expected %q, got %q", i, name, p.Fields[i].Name)
		}
	}

	state := p.Fields[0]
	if state.CellField != "stateCell" {
		t.Errorf("expected cell field stateCell, got %q", state.CellField)
	}
	if state.SetterMethod != "SetState" {
		t.Errorf("expected internal setter SetState, got %q", state.SetterMethod)
	}
	if state.SubscribeMethod != "ReceiveStateChanged" {
		t.Errorf("expected subscription ReceiveStateChanged, got %q", state.SubscribeMethod)
	}

	plain := p.Fields[2]
	if plain.CellField != "" || plain.SetterMethod != "" {
		t.Errorf("plain field should carry no publish plan: %+v", plain)
	}
}

func TestClassify_Accessors(t *testing.T) {
	p, err := Classify(testController())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	// Getter before setter, in field declaration order.
	if len(p.Accessors) != 3 {
		t.Fatalf("expected 3 accessor arms, got %d", len(p.Accessors))
	}

	get := p.Accessors[0]
	if get.Kind != Getter || get.ClientMethod != "GetState" {
		t.Errorf("unexpected first arm: %+v", get)
	}
	if get.ChanField != "getStateReqs" {
		t.Errorf("expected channel field getStateReqs, got %q", get.ChanField)
	}
	if get.RequestType != "powerManagerGetStateRequest" {
		t.Errorf("unexpected request type %q", get.RequestType)
	}

	set := p.Accessors[2]
	if set.Kind != Setter || set.ClientMethod != "SetVoltageMV" {
		t.Errorf("unexpected third arm: %+v", set)
	}
	if set.Publish {
		t.Error("voltageMV is not published; its setter must not broadcast")
	}
}

func TestClassify_SetterWithPublish(t *testing.T) {
	c := testController()
	c.Fields[0].Setter = "change_state"

	p, err := Classify(c)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	var arm *Accessor
	for i := range p.Accessors {
		if p.Accessors[i].ClientMethod == "ChangeState" {
			arm = &p.Accessors[i]
		}
	}
	if arm == nil {
		t.Fatal("expected a ChangeState arm")
	}
	if !arm.Publish || arm.SetterMethod != "SetState" {
		t.Errorf("published setter should route through SetState: %+v", arm)
	}
}

func TestClassify_Operations(t *testing.T) {
	p, err := Classify(testController())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if len(p.Proxied) != 2 {
		t.Fatalf("expected 2 proxied operations, got %d", len(p.Proxied))
	}
	// Declaration order is dispatch priority.
	if p.Proxied[0].Name != "EnablePower" || p.Proxied[1].Name != "ReadVoltage" {
		t.Errorf("operation order not preserved: %s, %s", p.Proxied[0].Name, p.Proxied[1].Name)
	}

	enable := p.Proxied[0]
	if enable.ChanField != "enablePowerReqs" {
		t.Errorf("expected channel field enablePowerReqs, got %q", enable.ChanField)
	}
	if enable.RequestType != "powerManagerEnablePowerRequest" || enable.ResponseType != "powerManagerEnablePowerResponse" {
		t.Errorf("unexpected plumbing types: %q, %q", enable.RequestType, enable.ResponseType)
	}
	if enable.HandlerMethod != "handleEnablePower" {
		t.Errorf("unexpected handler %q", enable.HandlerMethod)
	}

	if len(p.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(p.Signals))
	}
	sig := p.Signals[0]
	if sig.TopicField != "powerErrorTopic" {
		t.Errorf("expected topic field powerErrorTopic, got %q", sig.TopicField)
	}
	if sig.EventType != "PowerManagerPowerErrorEvent" {
		t.Errorf("unexpected event type %q", sig.EventType)
	}
	if sig.SubscribeMethod != "ReceivePowerError" {
		t.Errorf("unexpected subscription %q", sig.SubscribeMethod)
	}
}

func TestClassify_MethodCollision(t *testing.T) {
	c := testController()
	// A proxied operation that collides with the derived getter name.
	c.Operations = append(c.Operations, spec.Operation{Name: "GetState", ReturnsErr: true, Source: "x"})

	_, err := Classify(c)
	if err == nil {
		t.Fatal("expected a collision error")
	}
	if !strings.Contains(err.Error(), "GetState") {
		t.Errorf("error should name the colliding method: %v", err)
	}
}

func TestClassify_ReservedMemberCollision(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(c *spec.Controller)
		fragment string
	}{
		{"operation named Run", func(c *spec.Controller) {
			c.Operations = append(c.Operations, spec.Operation{Name: "Run", ReturnsErr: true, Source: "x"})
		}, "dispatch loop"},
		{"operation named Client", func(c *spec.Controller) {
			c.Operations = append(c.Operations, spec.Operation{Name: "Client", ReturnsErr: true, Source: "x"})
		}, "facade constructor"},
		{"operation shadowing an internal setter", func(c *spec.Controller) {
			c.Operations = append(c.Operations, spec.Operation{Name: "SetState", ReturnsErr: true, Source: "x"})
		}, "internal setter of field state"},
		{"field named running", func(c *spec.Controller) {
			c.Fields = append(c.Fields, spec.Field{Name: "running", Type: "bool"})
		}, "run guard"},
		{"field shadowing a broadcast cell", func(c *spec.Controller) {
			c.Fields = append(c.Fields, spec.Field{Name: "stateCell", Type: "int"})
		}, "broadcast cell of field state"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testController()
			tc.mutate(c)

			_, err := Classify(c)
			if err == nil {
				t.Fatal("expected a collision error")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Errorf("error should mention %s, got: %v", tc.fragment, err)
			}
		})
	}
}

func TestClassify_RetainedDeclarationCollision(t *testing.T) {
	c := testController()
	c.OtherNames = []string{"State", "NewPowerManager"}

	_, err := Classify(c)
	if err == nil || !strings.Contains(err.Error(), "NewPowerManager") {
		t.Fatalf("expected a collision with the constructor, got %v", err)
	}
	if !strings.Contains(err.Error(), "constructor") {
		t.Errorf("error should name the constructor as the prior claim: %v", err)
	}

	c = testController()
	c.OtherNames = []string{"PowerManagerPowerErrorEvent"}

	_, err = Classify(c)
	if err == nil || !strings.Contains(err.Error(), "event type of signal PowerError") {
		t.Fatalf("expected a collision with the signal event type, got %v", err)
	}
}

func TestClassify_ReservedParamName(t *testing.T) {
	c := testController()
	c.Operations[1].Params = []spec.Param{{Name: "reply", Type: "int"}}

	_, err := Classify(c)
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Fatalf("expected a reserved-name error, got %v", err)
	}
}
