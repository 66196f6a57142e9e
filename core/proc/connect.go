package proc

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
)

// ErrPortRange is returned when a connection refers to a port that does not exist.
var ErrPortRange = errors.New("port out of range")

// Connect the given outlet to the inlet of the target. Connecting an existing
// edge again does nothing. If both ports are mirrored into the DSP graph, the
// DSP objects are connected as well.
func (p *Processor) Connect(outlet int, target *Processor, inlet int) error {
	if err := p.checkEdge(outlet, target, inlet); err != nil {
		return err
	}
	if p.connected(outlet, target, inlet) {
		return nil
	}

	dspOutlet, dspInlet, mirrored := p.dspEdge(outlet, target, inlet)
	if mirrored {
		err := p.DSP.Connect(p.env.Context(), dspOutlet, target.DSP, dspInlet)
		if err != nil {
			return errors.Wrapf(err, "cannot connect %v:%d to %v:%d in the DSP graph", p, outlet, target, inlet)
		}
	}

	p.connectionsOut[outlet] = append(p.connectionsOut[outlet], Port{Proc: target, Index: inlet})
	target.connectionsIn[inlet] = append(target.connectionsIn[inlet], Port{Proc: p, Index: outlet})
	p.env.GUI.Connect(p, outlet, target, inlet)
	return nil
}

// Disconnect the given outlet from the inlet of the target. Removing an edge
// that does not exist does nothing.
func (p *Processor) Disconnect(outlet int, target *Processor, inlet int) error {
	if err := p.checkEdge(outlet, target, inlet); err != nil {
		return err
	}
	if !p.connected(outlet, target, inlet) {
		return nil
	}

	p.connectionsOut[outlet] = removePort(p.connectionsOut[outlet], Port{Proc: target, Index: inlet})
	target.connectionsIn[inlet] = removePort(target.connectionsIn[inlet], Port{Proc: p, Index: outlet})
	p.env.GUI.Disconnect(p, outlet, target, inlet)

	dspOutlet, dspInlet, mirrored := p.dspEdge(outlet, target, inlet)
	if mirrored {
		err := p.DSP.Disconnect(p.env.Context(), dspOutlet, target.DSP, dspInlet)
		if err != nil {
			return errors.Wrapf(err, "cannot disconnect %v:%d from %v:%d in the DSP graph", p, outlet, target, inlet)
		}
	}
	return nil
}

func (p *Processor) checkEdge(outlet int, target *Processor, inlet int) error {
	if target == nil {
		return errors.Wrap(ErrPortRange, "no target")
	}
	if !p.Alive() || !target.Alive() {
		return errors.Errorf("cannot connect deleted processor %v -> %v", p, target)
	}
	if outlet < 0 || outlet >= len(p.Outlets) {
		return errors.Wrapf(ErrPortRange, "%v has no outlet %d", p, outlet)
	}
	if inlet < 0 || inlet >= len(target.Inlets) {
		return errors.Wrapf(ErrPortRange, "%v has no inlet %d", target, inlet)
	}
	return nil
}

func (p *Processor) connected(outlet int, target *Processor, inlet int) bool {
	for _, port := range p.connectionsOut[outlet] {
		if port.Proc == target && port.Index == inlet {
			return true
		}
	}
	return false
}

func (p *Processor) dspEdge(outlet int, target *Processor, inlet int) (int, int, bool) {
	if p.DSP == nil || target.DSP == nil {
		return 0, 0, false
	}
	dspOutlet := p.dspOutlet(outlet)
	dspInlet := target.dspInlet(inlet)
	if dspOutlet < 0 || dspInlet < 0 {
		return 0, 0, false
	}
	return dspOutlet, dspInlet, true
}

func removePort(ports []Port, port Port) []Port {
	result := ports[:0]
	for _, p := range ports {
		if p != port {
			result = append(result, p)
		}
	}
	return result
}

// Resize the inlets and outlets of this processor. Connections of removed
// ports are disconnected first.
func (p *Processor) Resize(inlets, outlets int) {
	if inlets < 0 || outlets < 0 {
		p.logger.Warn("invalid size", "inlets", inlets, "outlets", outlets)
		return
	}
	var result error
	for inlet := inlets; inlet < len(p.connectionsIn); inlet++ {
		for _, source := range p.ConnectionsIn(inlet) {
			if err := source.Proc.Disconnect(source.Index, p, inlet); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	for outlet := outlets; outlet < len(p.connectionsOut); outlet++ {
		for _, target := range p.ConnectionsOut(outlet) {
			if err := p.Disconnect(outlet, target.Proc, target.Index); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	if result != nil {
		p.logger.Warn("resize left DSP connections behind", "error", result)
	}

	p.Inlets = resizeValues(p.Inlets, inlets)
	p.Outlets = resizeValues(p.Outlets, outlets)
	p.connectionsIn = resizePorts(p.connectionsIn, inlets)
	p.connectionsOut = resizePorts(p.connectionsOut, outlets)
	p.DSPInlets = below(p.DSPInlets, inlets)
	p.DSPOutlets = below(p.DSPOutlets, outlets)

	if p.Status != StatusCtor {
		p.env.GUI.Configure(p)
	}
}

func resizeValues(values []core.Value, size int) []core.Value {
	if size <= len(values) {
		return values[:size]
	}
	for len(values) < size {
		values = append(values, core.Uninit)
	}
	return values
}

func resizePorts(ports [][]Port, size int) [][]Port {
	if size <= len(ports) {
		return ports[:size]
	}
	for len(ports) < size {
		ports = append(ports, nil)
	}
	return ports
}

func below(ports []int, limit int) []int {
	var result []int
	for _, p := range ports {
		if p < limit {
			result = append(result, p)
		}
	}
	return result
}

// Delete the processor. All connections are severed before the DSP object is
// deleted and the id is released.
func (p *Processor) Delete() error {
	if !p.Alive() {
		return nil
	}
	constructed := p.Status != StatusCtor
	var result error
	if d, ok := p.element.(Deleter); ok {
		if err := d.Delete(p); err != nil {
			result = multierror.Append(result, err)
		}
	}

	for inlet := range p.connectionsIn {
		for _, source := range p.ConnectionsIn(inlet) {
			if err := source.Proc.Disconnect(source.Index, p, inlet); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	for outlet := range p.connectionsOut {
		for _, target := range p.ConnectionsOut(outlet) {
			if err := p.Disconnect(outlet, target.Proc, target.Index); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	p.env.unsubscribeAll(p)
	if p.Parent != nil {
		p.Parent.remove(p)
	} else if p.Scope != nil {
		p.Scope.Unbind(p.Name, p)
	}

	if p.DSP != nil {
		delete(p.env.dspObjects, p.DSP.ID())
		if err := p.DSP.Delete(p.env.Context()); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "cannot delete DSP object of %v", p))
		}
		p.DSP = nil
	}

	p.env.Registry.Forget(p)
	p.Status = StatusDeleted
	if constructed {
		p.env.GUI.Delete(p)
	}
	return result
}
