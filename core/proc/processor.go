// Package proc implements the message propagation engine of the patching
// environment: processors with inlets and outlets, the connections between
// them, patches as containers of processors, lexical scopes for name
// resolution and reified method calls.
//
// All activation happens synchronously on the calling goroutine. The graph is
// not safe for concurrent use; events from other goroutines must be handed to
// the goroutine that owns the graph.
package proc

import (
	"fmt"
	"runtime/debug"

	"github.com/davecgh/go-spew/spew"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/dsp"
)

// Status of a processor.
type Status int

// All processor states.
const (
	StatusCtor Status = iota
	StatusReady
	StatusError
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusCtor:
		return "CTOR"
	case StatusReady:
		return "READY"
	case StatusError:
		return "ERROR"
	case StatusDeleted:
		return "DELETED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Element is the type specific behavior of a processor.
type Element interface {
	// Trigger computes new outlet values from the current inlet values.
	Trigger(p *Processor) error
}

// TriggerFunc adapts a function to the Element interface.
type TriggerFunc func(p *Processor) error

// Trigger calls f(p).
func (f TriggerFunc) Trigger(p *Processor) error {
	return f(p)
}

// Setupper elements acquire external resources once the processor is linked into its patch.
type Setupper interface {
	Setup(p *Processor) error
}

// Deleter elements release their resources when the processor is deleted.
type Deleter interface {
	Delete(p *Processor) error
}

// Saver elements persist state beyond their creation arguments.
type Saver interface {
	Save(p *Processor) map[string]interface{}
}

// Loader elements restore the state written by Saver.
type Loader interface {
	Load(p *Processor, state map[string]interface{}) error
}

// MethodHandler elements handle incoming method calls themselves.
type MethodHandler interface {
	Method(p *Processor, call *MethodCall, inlet int) error
}

// DSPResponder elements receive the responses of their DSP object.
type DSPResponder interface {
	DSPResponse(p *Processor, kind string, value core.Value)
}

// Forwarder elements deliver values to processors they are not connected to,
// e.g. by name. The deliveries are activated after the outlets.
type Forwarder interface {
	Forward(p *Processor) []Delivery
}

// Delivery of a value to the inlet of a processor.
type Delivery struct {
	Target *Processor
	Value  core.Value
	Inlet  int
}

// relayer elements hand values across a patch boundary instead of using their own outlets.
type relayer interface {
	relay(p *Processor) []work
}

// Port addresses an inlet or outlet of a processor.
type Port struct {
	Proc  *Processor
	Index int
}

// Processor is a node of the graph.
type Processor struct {
	ID       int
	Type     string
	InitArgs string
	Name     string

	Inlets  []core.Value
	Outlets []core.Value

	// HotInlets trigger the element when a value arrives. Inlet 0 is hot by default.
	HotInlets map[int]bool
	// OutletOrder is the order in which the outlets are activated, nil means index order.
	OutletOrder []int
	// DSPInlets and DSPOutlets list the control ports that are mirrored into
	// the DSP graph. The position within the list is the port number of the DSP object.
	DSPInlets  []int
	DSPOutlets []int
	DSP        dsp.Object

	Status     Status
	Diagnostic string
	GuiParams  map[string]interface{}

	Parent *Patch
	Scope  *Scope

	connectionsIn  [][]Port
	connectionsOut [][]Port

	element Element
	env     *Env
	logger  hclog.Logger
}

func newProcessor(env *Env, typeName, initArgs string) *Processor {
	result := &Processor{
		Type:      typeName,
		InitArgs:  initArgs,
		HotInlets: map[int]bool{0: true},
		Status:    StatusCtor,
		GuiParams: make(map[string]interface{}),
		env:       env,
	}
	env.Registry.Remember(result)
	result.logger = env.Logger.Named(typeName).With("id", result.ID)
	return result
}

func (p *Processor) String() string {
	if p.Name != "" {
		return fmt.Sprintf("%s<%d %s>", p.Type, p.ID, p.Name)
	}
	return fmt.Sprintf("%s<%d>", p.Type, p.ID)
}

// Element returns the type specific behavior of this processor.
func (p *Processor) Element() Element {
	return p.element
}

// Env returns the environment this processor lives in.
func (p *Processor) Env() *Env {
	return p.env
}

// Logger of this processor.
func (p *Processor) Logger() hclog.Logger {
	return p.logger
}

// ConnectionsIn returns the sources connected to the given inlet.
func (p *Processor) ConnectionsIn(inlet int) []Port {
	if inlet < 0 || inlet >= len(p.connectionsIn) {
		return nil
	}
	return append([]Port{}, p.connectionsIn[inlet]...)
}

// ConnectionsOut returns the targets connected to the given outlet.
func (p *Processor) ConnectionsOut(outlet int) []Port {
	if outlet < 0 || outlet >= len(p.connectionsOut) {
		return nil
	}
	return append([]Port{}, p.connectionsOut[outlet]...)
}

// Alive indicates that the processor was not deleted.
func (p *Processor) Alive() bool {
	return p.Status != StatusDeleted
}

type work struct {
	target *Processor
	value  core.Value
	inlet  int
}

// workQueue is a double ended queue of pending activations. Its front is the
// end of the slice, so that pushing to the front is cheap.
type workQueue struct {
	items []work
}

// pushFront puts the given items in front of the queue, keeping their order.
func (q *workQueue) pushFront(items []work) {
	for i := len(items) - 1; i >= 0; i-- {
		q.items = append(q.items, items[i])
	}
}

func (q *workQueue) popFront() (work, bool) {
	if len(q.items) == 0 {
		return work{}, false
	}
	last := len(q.items) - 1
	result := q.items[last]
	q.items[last] = work{}
	q.items = q.items[:last]
	return result, true
}

// Send the given value to the given inlet and run the resulting activations
// depth first until the graph settles. Failures of single processors are
// recorded in their status and do not stop the propagation.
func (p *Processor) Send(value core.Value, inlet int) {
	drive([]work{{target: p, value: value, inlet: inlet}})
}

// Emit the given value on the given outlet as if the processor had triggered.
func (p *Processor) Emit(outlet int, value core.Value) {
	if outlet < 0 || outlet >= len(p.Outlets) {
		p.Error(fmt.Sprintf("no outlet %d", outlet))
		return
	}
	p.Outlets[outlet] = value
	drive(p.outletWork(outlet, value))
}

func drive(initial []work) {
	queue := workQueue{}
	queue.pushFront(initial)
	for {
		w, ok := queue.popFront()
		if !ok {
			return
		}
		if !w.target.Alive() {
			continue
		}
		queue.pushFront(w.target.send(w.value, w.inlet))
	}
}

// send stores the value in the inlet and, if the inlet is hot, triggers the
// element. It returns the activations that follow from the outlet values.
func (p *Processor) send(value core.Value, inlet int) (result []work) {
	if inlet < 0 || inlet >= len(p.Inlets) {
		p.Error(fmt.Sprintf("no inlet %d", inlet))
		return nil
	}
	if p.element == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			p.Error(fmt.Sprintf("panic: %v\ninlets: %s\n%s", r, spew.Sdump(p.Inlets), debug.Stack()))
			result = nil
		}
	}()

	if call, ok := value.(*MethodCall); ok {
		err := p.method(call, inlet)
		if err != nil {
			p.Error(fmt.Sprintf("%+v", err))
			return nil
		}
		if !p.Alive() {
			return nil
		}
	} else {
		p.Inlets[inlet] = value
	}

	if !p.HotInlets[inlet] {
		return nil
	}

	for i := range p.Outlets {
		p.Outlets[i] = core.Uninit
	}
	err := p.element.Trigger(p)
	if err != nil {
		p.Error(fmt.Sprintf("%+v", err))
		return nil
	}
	if p.Status == StatusError {
		p.setStatus(StatusReady)
	}

	if r, ok := p.element.(relayer); ok {
		return r.relay(p)
	}
	result = p.fanout()
	if f, ok := p.element.(Forwarder); ok {
		for _, d := range f.Forward(p) {
			if d.Target != nil {
				result = append(result, work{target: d.Target, value: d.Value, inlet: d.Inlet})
			}
		}
	}
	return result
}

func (p *Processor) method(call *MethodCall, inlet int) error {
	if h, ok := p.element.(MethodHandler); ok {
		return h.Method(p, call, inlet)
	}
	_, err := p.Invoke(call)
	return err
}

// Invoke the given method call on this processor and return its result. The
// method is looked up on the element first, then on the processor itself,
// then in the namespace of the call.
func (p *Processor) Invoke(call *MethodCall) (interface{}, error) {
	if !elementHooks[exportedName(call.Method)] {
		result, found, err := call.callMethod(p.element, p)
		if found {
			return result, err
		}
	}
	result, found, err := call.callMethod(p)
	if found {
		return result, err
	}
	return call.callFallback(p)
}

// elementHooks are the methods of elements that the engine calls itself.
var elementHooks = map[string]bool{
	"Trigger":     true,
	"Setup":       true,
	"Delete":      true,
	"Save":        true,
	"Load":        true,
	"Method":      true,
	"DSPResponse": true,
	"Forward":     true,
}

func (p *Processor) fanout() []work {
	var result []work
	for _, outlet := range p.outletOrder() {
		value := p.Outlets[outlet]
		if core.IsUninit(value) {
			continue
		}
		result = append(result, p.outletWork(outlet, value)...)
	}
	return result
}

func (p *Processor) outletWork(outlet int, value core.Value) []work {
	result := make([]work, 0, len(p.connectionsOut[outlet]))
	for _, target := range p.connectionsOut[outlet] {
		result = append(result, work{target: target.Proc, value: value, inlet: target.Index})
	}
	return result
}

func (p *Processor) outletOrder() []int {
	if p.OutletOrder == nil {
		result := make([]int, len(p.Outlets))
		for i := range result {
			result[i] = i
		}
		return result
	}
	result := make([]int, 0, len(p.OutletOrder))
	for _, outlet := range p.OutletOrder {
		if outlet >= 0 && outlet < len(p.Outlets) {
			result = append(result, outlet)
		}
	}
	return result
}

// ReverseOutletOrder lets the outlets fire from right to left.
func (p *Processor) ReverseOutletOrder() {
	p.OutletOrder = make([]int, len(p.Outlets))
	for i := range p.OutletOrder {
		p.OutletOrder[i] = len(p.Outlets) - 1 - i
	}
}

// Error puts the processor into the ERROR state and records the diagnostic.
// Other processors are not affected.
func (p *Processor) Error(diagnostic string) {
	p.Diagnostic = diagnostic
	p.logger.Error("activation failed", "diagnostic", diagnostic)
	p.setStatus(StatusError)
}

func (p *Processor) setStatus(status Status) {
	p.Status = status
	if status == StatusReady {
		p.Diagnostic = ""
	}
	p.env.GUI.Configure(p)
}

// SetGuiParams merges the given parameters into the presentation parameters.
func (p *Processor) SetGuiParams(params map[string]interface{}) {
	for k, v := range params {
		p.GuiParams[k] = v
	}
	p.env.GUI.Configure(p)
}

// Rename binds the processor under a new name in its scope.
func (p *Processor) Rename(name string) error {
	if name == p.Name {
		return nil
	}
	if p.Scope == nil {
		p.Name = name
		return nil
	}
	if err := p.Scope.Bind(name, p); err != nil {
		return err
	}
	p.Scope.Unbind(p.Name, p)
	p.Name = name
	p.env.GUI.Configure(p)
	return nil
}

// DSPResponse routes a response of the DSP engine to the element.
func (p *Processor) DSPResponse(kind string, value core.Value) {
	r, ok := p.element.(DSPResponder)
	if !ok {
		p.logger.Debug("unhandled DSP response", "kind", kind)
		return
	}
	r.DSPResponse(p, kind, value)
}

// SetDSP attaches a DSP object to this processor.
func (p *Processor) SetDSP(object dsp.Object) {
	p.DSP = object
	if object != nil {
		p.env.dspObjects[object.ID()] = p
	}
}

// CreateDSP creates a DSP object of the given type and attaches it to this processor.
func (p *Processor) CreateDSP(procType string, params map[string]interface{}) error {
	if p.env.DSP == nil {
		return errors.New("no DSP backend")
	}
	object, err := p.env.DSP.Create(p.env.Context(), procType, params)
	if err != nil {
		return errors.Wrapf(err, "cannot create DSP object %s", procType)
	}
	p.SetDSP(object)
	return nil
}

func indexOf(ports []int, port int) int {
	for i, p := range ports {
		if p == port {
			return i
		}
	}
	return -1
}

func (p *Processor) dspInlet(inlet int) int {
	return indexOf(p.DSPInlets, inlet)
}

func (p *Processor) dspOutlet(outlet int) int {
	return indexOf(p.DSPOutlets, outlet)
}
