package builtins

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/proc"
)

// dspSpec describes the ports of a processor that controls an object of the DSP engine.
type dspSpec struct {
	inlets     int
	outlets    int
	dspInlets  []int
	dspOutlets []int
	// params are the names of the parameters that numbers on the inlets set, "" for none.
	params []string
	// response is the kind of DSP response that is emitted on outlet 0.
	response string
}

var dspTypes = map[string]dspSpec{
	"osc~": {
		inlets: 2, outlets: 1,
		dspInlets: []int{0}, dspOutlets: []int{0},
		params: []string{"freq", "phase"},
	},
	"noise~": {
		inlets: 1, outlets: 1,
		dspOutlets: []int{0},
		params:     []string{"amp"},
	},
	"+~": {
		inlets: 2, outlets: 1,
		dspInlets: []int{0, 1}, dspOutlets: []int{0},
		params: []string{"", "value"},
	},
	"*~": {
		inlets: 2, outlets: 1,
		dspInlets: []int{0, 1}, dspOutlets: []int{0},
		params: []string{"", "value"},
	},
	"dac~": {
		inlets: 2, outlets: 0,
		dspInlets: []int{0, 1},
	},
	"adc~": {
		inlets: 0, outlets: 2,
		dspOutlets: []int{0, 1},
	},
	"snap~": {
		inlets: 1, outlets: 1,
		dspInlets: []int{0},
		response:  "snap",
	},
}

// dspProxy forwards control values to its DSP object and emits its responses.
type dspProxy struct {
	procType string
	spec     dspSpec
	params   map[string]interface{}
}

func newDSPProxy(name string, spec dspSpec) proc.Factory {
	return func(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
		params := make(map[string]interface{}, len(kwargs))
		for i, arg := range args {
			if i >= len(spec.params) || spec.params[i] == "" {
				return nil, errors.Errorf("%s takes no argument %d", name, i)
			}
			params[spec.params[i]] = arg
		}
		for k, v := range kwargs {
			params[k] = v
		}

		p.Resize(spec.inlets, spec.outlets)
		p.DSPInlets = append([]int{}, spec.dspInlets...)
		p.DSPOutlets = append([]int{}, spec.dspOutlets...)
		for i := 0; i < spec.inlets; i++ {
			p.HotInlets[i] = true
		}
		return &dspProxy{
			procType: strings.TrimSuffix(name, "~"),
			spec:     spec,
			params:   params,
		}, nil
	}
}

func (d *dspProxy) Setup(p *proc.Processor) error {
	return p.CreateDSP(d.procType, d.params)
}

func (d *dspProxy) Trigger(p *proc.Processor) error {
	for i, value := range p.Inlets {
		if core.IsUninit(value) {
			continue
		}
		p.Inlets[i] = core.Uninit

		if core.IsBang(value) && d.spec.response != "" {
			if err := d.snapshot(p); err != nil {
				return err
			}
			continue
		}
		if i >= len(d.spec.params) || d.spec.params[i] == "" {
			continue
		}
		if _, ok := core.ToFloat(value); !ok {
			return errors.Errorf("%s needs a number, got %s", d.spec.params[i], format(value))
		}
		if err := d.SetParam(p, d.spec.params[i], value); err != nil {
			return err
		}
	}
	return nil
}

func (d *dspProxy) snapshot(p *proc.Processor) error {
	value, err := d.GetParam(p, "value")
	if err != nil {
		return err
	}
	if len(p.Outlets) > 0 {
		p.Outlets[0] = value
	}
	return nil
}

// SetParam sets a parameter of the DSP object.
func (d *dspProxy) SetParam(p *proc.Processor, name string, value interface{}) error {
	if p.DSP == nil {
		return errors.New("no DSP object")
	}
	d.params[name] = value
	return p.DSP.SetParam(p.Env().Context(), name, value)
}

// GetParam reads a parameter of the DSP object.
func (d *dspProxy) GetParam(p *proc.Processor, name string) (interface{}, error) {
	if p.DSP == nil {
		return nil, errors.New("no DSP object")
	}
	return p.DSP.GetParam(p.Env().Context(), name)
}

func (d *dspProxy) DSPResponse(p *proc.Processor, kind string, value core.Value) {
	if kind != d.spec.response || len(p.Outlets) == 0 {
		p.Logger().Debug("ignoring DSP response", "kind", kind)
		return
	}
	p.Emit(0, value)
}

func (d *dspProxy) Save(p *proc.Processor) map[string]interface{} {
	return map[string]interface{}{"params": copyMap(d.params)}
}

func (d *dspProxy) Load(p *proc.Processor, state map[string]interface{}) error {
	params, ok := state["params"].(map[string]interface{})
	if !ok {
		return nil
	}
	for name, value := range params {
		if err := d.SetParam(p, name, value); err != nil {
			return err
		}
	}
	return nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
