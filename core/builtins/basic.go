package builtins

import (
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/proc"
)

// variable stores the last value and emits it. A bang emits the stored value again.
type variable struct {
	value core.Value
}

func newVar(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(1, 1)
	return &variable{value: argsValue(args, core.Uninit)}, nil
}

func (v *variable) Trigger(p *proc.Processor) error {
	if !core.IsBang(p.Inlets[0]) {
		v.value = p.Inlets[0]
	}
	p.Outlets[0] = v.value
	return nil
}

// Value returns the stored value.
func (v *variable) Value() core.Value {
	return v.value
}

// Clear the stored value. Nothing is emitted.
func (v *variable) Clear(p *proc.Processor) {
	v.value = core.Uninit
	p.Inlets[0] = core.Bang
}

func (v *variable) Save(p *proc.Processor) map[string]interface{} {
	if core.IsUninit(v.value) {
		return nil
	}
	return map[string]interface{}{"value": v.value}
}

func (v *variable) Load(p *proc.Processor, state map[string]interface{}) error {
	if value, ok := state["value"]; ok {
		v.value = value
	}
	return nil
}

// arith applies a binary operator to both inlets. The right operand is cold.
type arith struct {
	op   core.Operator
	left core.Value
}

func newArith(op core.Operator) proc.Factory {
	return func(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
		p.Resize(2, 1)
		if len(args) > 0 {
			p.Inlets[1] = args[0]
		}
		return &arith{op: op, left: core.Uninit}, nil
	}
}

func (a *arith) Trigger(p *proc.Processor) error {
	left := p.Inlets[0]
	if core.IsBang(left) {
		left = a.left
	} else {
		a.left = left
	}
	result, err := a.op.Apply(left, p.Inlets[1])
	if err != nil {
		return errors.Wrapf(err, "%s %s %s", format(left), a.op, format(p.Inlets[1]))
	}
	p.Outlets[0] = result
	return nil
}

// route sends its input to the outlet of the first matching address. Lists
// are matched by their first element and the rest is sent. Everything else
// goes to the last outlet.
type route struct {
	addresses []core.Value
}

func newRoute(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(1, len(args)+1)
	return &route{addresses: append([]core.Value{}, args...)}, nil
}

func (r *route) Trigger(p *proc.Processor) error {
	value := p.Inlets[0]
	key, payload := value, core.Value(core.Bang)
	if list, ok := value.([]interface{}); ok && len(list) > 0 {
		key = list[0]
		payload = append([]interface{}{}, list[1:]...)
	}
	for i, address := range r.addresses {
		if core.Equal(key, address) {
			p.Outlets[i] = payload
			return nil
		}
	}
	p.Outlets[len(r.addresses)] = value
	return nil
}

// SetAddresses replaces the addresses. The outlets are resized accordingly.
func (r *route) SetAddresses(p *proc.Processor, addresses ...interface{}) {
	r.addresses = append([]core.Value{}, addresses...)
	p.Resize(1, len(addresses)+1)
	p.Inlets[0] = core.Uninit
}

// newTrigger creates a processor that sends its input to all outlets, from right to left.
func newTrigger(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	outlets, err := intArg(args, kwargs, 0, "outlets", 2)
	if err != nil {
		return nil, err
	}
	if outlets < 1 {
		return nil, errors.Errorf("invalid number of outlets: %d", outlets)
	}
	p.Resize(1, outlets)
	p.ReverseOutletOrder()
	return proc.TriggerFunc(func(p *proc.Processor) error {
		for i := range p.Outlets {
			p.Outlets[i] = p.Inlets[0]
		}
		return nil
	}), nil
}

// message emits its message on every input. The cold inlet replaces the message.
type message struct {
	value core.Value
}

func newMessage(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(2, 1)
	result := &message{value: argsValue(args, core.Bang)}
	if method, ok := kwargs["call"]; ok {
		name, ok := method.(string)
		if !ok {
			return nil, errors.Errorf("invalid method name %v", method)
		}
		result.value = proc.NewMethodCall(p.Env().Namespace, name, args...)
	}
	return result, nil
}

func (m *message) Trigger(p *proc.Processor) error {
	if !core.IsUninit(p.Inlets[1]) {
		m.value = p.Inlets[1]
		p.Inlets[1] = core.Uninit
	}
	p.Outlets[0] = m.value
	return nil
}

func (m *message) Save(p *proc.Processor) map[string]interface{} {
	if _, ok := m.value.(*proc.MethodCall); ok {
		return nil
	}
	if _, ok := m.value.(*core.Sentinel); ok {
		return nil
	}
	return map[string]interface{}{"value": m.value}
}

func (m *message) Load(p *proc.Processor, state map[string]interface{}) error {
	if value, ok := state["value"]; ok {
		m.value = value
	}
	return nil
}

// printer logs every input.
type printer struct {
	prefix string
}

func newPrint(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(1, 0)
	prefix, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	return &printer{prefix: prefix}, nil
}

func (r *printer) Trigger(p *proc.Processor) error {
	text := format(p.Inlets[0])
	if r.prefix != "" {
		text = r.prefix + ": " + text
	}
	p.Logger().Info(text)
	p.Env().GUI.Command(p, "print", text)
	return nil
}
