package proc

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/dsp"
)

// AppScopeName is the name of the application wide scope.
const AppScopeName = "__app__"

// NewEnv returns a new environment. A nil logger discards all output, a nil
// GUI ignores all notifications.
func NewEnv(logger hclog.Logger, backend dsp.Backend, gui GUI) *Env {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if gui == nil {
		gui = NullGUI{}
	}
	return &Env{
		Logger:     logger,
		Registry:   NewRegistry(),
		Types:      NewTypes(),
		DSP:        backend,
		GUI:        gui,
		Namespace:  NewNamespace(),
		AppScope:   NewScope(AppScopeName),
		topics:     make(map[string][]*Processor),
		dspObjects: make(map[int]*Processor),
		ctx:        context.Background(),
	}
}

// Env is the context all processors of an application live in.
type Env struct {
	Logger    hclog.Logger
	Registry  *Registry
	Types     *Types
	DSP       dsp.Backend
	GUI       GUI
	Namespace *Namespace
	AppScope  *Scope

	patches    []*Patch
	topics     map[string][]*Processor
	dspObjects map[int]*Processor
	ctx        context.Context
	depth      int
	needsSweep bool
}

// Context for calls to external collaborators.
func (e *Env) Context() context.Context {
	return e.ctx
}

// SetContext sets the context for calls to external collaborators.
func (e *Env) SetContext(ctx context.Context) {
	e.ctx = ctx
}

// Create a new processor of the given type. The processor becomes a child of
// the given patch and is bound to the given name in the named scope of that
// patch. Top level processors without a patch are bound in the application
// scope. If any step fails, all processors left under construction are
// deleted and the error is returned. Nested creations, e.g. while a patch
// loads its children, defer the cleanup to the outermost creation.
func (e *Env) Create(typeName, initArgs string, parent *Patch, scopeName, name string) (*Processor, error) {
	e.depth++
	defer func() {
		e.depth--
		if e.depth == 0 && e.needsSweep {
			e.needsSweep = false
			swept := e.Registry.Sweep()
			e.Logger.Debug("swept processors left under construction", "count", swept)
		}
	}()

	factory, ok := e.Types.Lookup(typeName)
	if !ok {
		return nil, errors.Wrap(ErrUnknownType, typeName)
	}
	args, kwargs, err := ParseArgs(initArgs)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid arguments for %s", typeName)
	}

	p := newProcessor(e, typeName, initArgs)
	err = e.construct(p, factory, args, kwargs)
	if err == nil {
		err = e.link(p, parent, scopeName, name)
	}
	if err == nil {
		if s, ok := p.element.(Setupper); ok {
			err = s.Setup(p)
		}
	}
	if err != nil {
		e.needsSweep = true
		e.Logger.Debug("construction failed", "type", typeName, "error", err)
		return nil, errors.Wrapf(err, "cannot create %s", typeName)
	}

	p.setStatus(StatusReady)
	return p, nil
}

func (e *Env) construct(p *Processor, factory Factory, args []interface{}, kwargs map[string]interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("constructor panicked: %v", r)
		}
	}()
	element, err := factory(p, args, kwargs)
	if err != nil {
		return err
	}
	if element == nil {
		return errors.New("constructor returned no element")
	}
	p.element = element
	return nil
}

func (e *Env) link(p *Processor, parent *Patch, scopeName, name string) error {
	if name == "" {
		scope := e.AppScope
		if parent != nil {
			scope = parent.defaultScope
			if scopeName != "" {
				scope = parent.AddScope(scopeName)
			}
		}
		name = freeName(scope, strings.TrimSuffix(p.Type, "~"), p.ID)
	}
	if parent != nil {
		return parent.add(p, scopeName, name)
	}

	if err := e.AppScope.Bind(name, p); err != nil {
		return err
	}
	p.Name = name
	p.Scope = e.AppScope
	if patch, ok := p.element.(*Patch); ok {
		e.patches = append(e.patches, patch)
	}
	return nil
}

// freeName returns the first name of the form <base>_<n> with n >= id that is
// not bound in the scope. Loaded patches keep the names of their former ids.
func freeName(scope *Scope, base string, id int) string {
	for n := id; ; n++ {
		name := fmt.Sprintf("%s_%03d", base, n)
		if _, taken := scope.Resolve(name); !taken {
			return name
		}
	}
}

// Patches returns all top level patches.
func (e *Env) Patches() []*Patch {
	return append([]*Patch{}, e.patches...)
}

func (e *Env) removePatch(patch *Patch) {
	for i, p := range e.patches {
		if p == patch {
			e.patches = append(e.patches[:i], e.patches[i+1:]...)
			return
		}
	}
}

// Resolve the given name from the point of view of the query processor: its
// own scope and the default scope of its patch, the application scope, and
// the default scopes of all top level patches.
func (e *Env) Resolve(name string, query *Processor) (*Processor, bool) {
	if query != nil && query.Parent != nil {
		if p, ok := query.Parent.Resolve(name, query.Scope); ok {
			return p, true
		}
	}
	if p, ok := e.AppScope.Resolve(name); ok {
		return p, true
	}
	if p, ok := e.resolvePath(name); ok {
		return p, true
	}
	for _, patch := range e.patches {
		if p, ok := patch.defaultScope.Resolve(name); ok {
			return p, true
		}
	}
	return nil, false
}

// resolvePath resolves names of the form "<patch>.<name>" against the top level patches.
func (e *Env) resolvePath(name string) (*Processor, bool) {
	dot := strings.Index(name, ".")
	if dot < 0 {
		return nil, false
	}
	top, ok := e.AppScope.Resolve(name[:dot])
	if !ok {
		return nil, false
	}
	patch, ok := top.element.(*Patch)
	if !ok {
		return nil, false
	}
	return patch.Resolve(name[dot+1:], nil)
}

// Lookup resolves the given name like Resolve and returns either the
// processor or core.Unbound.
func (e *Env) Lookup(name string, query *Processor) core.Value {
	if p, ok := e.Resolve(name, query); ok {
		return p
	}
	return core.Unbound
}

// Subscribe the processor to events of the given topic.
func (e *Env) Subscribe(topic string, p *Processor) {
	for _, s := range e.topics[topic] {
		if s == p {
			return
		}
	}
	e.topics[topic] = append(e.topics[topic], p)
}

// Unsubscribe the processor from events of the given topic.
func (e *Env) Unsubscribe(topic string, p *Processor) {
	subscribers := e.topics[topic]
	for i, s := range subscribers {
		if s == p {
			e.topics[topic] = append(subscribers[:i:i], subscribers[i+1:]...)
			return
		}
	}
}

func (e *Env) unsubscribeAll(p *Processor) {
	for topic := range e.topics {
		e.Unsubscribe(topic, p)
	}
}

// Publish sends the given event to inlet 0 of every subscriber of the topic.
func (e *Env) Publish(topic string, event core.Value) int {
	subscribers := append([]*Processor{}, e.topics[topic]...)
	for _, p := range subscribers {
		if p.Alive() {
			p.Send(event, 0)
		}
	}
	return len(subscribers)
}

// DispatchDSPResponse hands a response of the DSP engine to the processor that owns the DSP object.
func (e *Env) DispatchDSPResponse(response dsp.Response) bool {
	p, ok := e.dspObjects[response.ObjectID]
	if !ok || !p.Alive() {
		e.Logger.Debug("DSP response for unknown object", "object", response.ObjectID, "kind", response.Kind)
		return false
	}
	p.DSPResponse(response.Kind, response.Value)
	return true
}
