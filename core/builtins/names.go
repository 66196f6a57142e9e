package builtins

import (
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/proc"
)

// sender delivers its input to the processor bound to its destination name.
// The name is resolved on every delivery, an unbound name drops the value.
type sender struct {
	destination string
	inlet       int
}

func newSend(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(2, 0)
	destination, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	inlet, err := intArg(args, kwargs, 1, "inlet", 0)
	if err != nil {
		return nil, err
	}
	return &sender{destination: destination, inlet: inlet}, nil
}

func (s *sender) Trigger(p *proc.Processor) error {
	if name, ok := p.Inlets[1].(string); ok {
		s.destination = name
		p.Inlets[1] = core.Uninit
	}
	return nil
}

func (s *sender) Forward(p *proc.Processor) []proc.Delivery {
	if s.destination == "" || core.IsUninit(p.Inlets[0]) {
		return nil
	}
	target, ok := p.Env().Resolve(s.destination, p)
	if !ok {
		p.Logger().Debug("destination not bound", "destination", s.destination)
		return nil
	}
	return []proc.Delivery{{Target: target, Value: p.Inlets[0], Inlet: s.inlet}}
}

// receiver passes its input through and binds itself to its name.
type receiver struct {
	name string
}

func newRecv(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(1, 1)
	name, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	return &receiver{name: name}, nil
}

func (r *receiver) Setup(p *proc.Processor) error {
	if r.name == "" || r.name == p.Name {
		return nil
	}
	return p.Rename(r.name)
}

func (r *receiver) Trigger(p *proc.Processor) error {
	p.Outlets[0] = p.Inlets[0]
	return nil
}

// apply invokes method calls on the processor bound to its target name and
// emits the result.
type apply struct {
	target  string
	pending *proc.MethodCall
}

func newApply(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(2, 1)
	target, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	return &apply{target: target}, nil
}

// Method keeps the incoming call for the next trigger instead of calling it on apply itself.
func (a *apply) Method(p *proc.Processor, call *proc.MethodCall, inlet int) error {
	if inlet != 0 {
		return errors.Errorf("method calls are only accepted on inlet 0")
	}
	a.pending = call
	return nil
}

func (a *apply) Trigger(p *proc.Processor) error {
	if name, ok := p.Inlets[1].(string); ok {
		a.target = name
		p.Inlets[1] = core.Uninit
	}
	call, err := a.call(p)
	if err != nil || call == nil {
		return err
	}

	target, ok := p.Env().Resolve(a.target, p)
	if !ok {
		return errors.Errorf("%q is not bound", a.target)
	}
	result, err := target.Invoke(call)
	if err != nil {
		return err
	}
	if result == nil {
		result = core.Bang
	}
	p.Outlets[0] = result
	return nil
}

func (a *apply) call(p *proc.Processor) (*proc.MethodCall, error) {
	if a.pending != nil {
		result := a.pending
		a.pending = nil
		return result, nil
	}
	namespace := p.Env().Namespace
	switch v := p.Inlets[0].(type) {
	case string:
		return proc.NewMethodCall(namespace, v), nil
	case []interface{}:
		if len(v) == 0 {
			return nil, nil
		}
		method, ok := v[0].(string)
		if !ok {
			return nil, errors.Errorf("invalid method name %v", v[0])
		}
		return proc.NewMethodCall(namespace, method, v[1:]...), nil
	}
	return nil, nil
}
