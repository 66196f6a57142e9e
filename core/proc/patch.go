package proc

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
)

// DefaultScopeName is the name of the scope every patch binds its children to by default.
const DefaultScopeName = "__patch__"

// Layer groups the objects of a patch for presentation.
type Layer struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// Patch is a processor that contains a graph of processors. Its inlets and
// outlets are backed by inlet and outlet children.
type Patch struct {
	proc         *Processor
	children     map[int]*Processor
	inlets       []*Processor
	outlets      []*Processor
	scopes       map[string]*Scope
	defaultScope *Scope
	layers       []Layer
	template     *PatchRecord
}

func newPatch(p *Processor) *Patch {
	result := &Patch{
		proc:         p,
		children:     make(map[int]*Processor),
		scopes:       make(map[string]*Scope),
		defaultScope: NewScope(DefaultScopeName),
	}
	result.scopes[DefaultScopeName] = result.defaultScope
	p.Resize(0, 0)
	return result
}

func newPatchElement(p *Processor, args []interface{}, kwargs map[string]interface{}) (Element, error) {
	return newPatch(p), nil
}

// AsPatch returns the patch if the given processor is one.
func AsPatch(p *Processor) (*Patch, bool) {
	if p == nil {
		return nil, false
	}
	result, ok := p.element.(*Patch)
	return result, ok
}

// Processor that represents this patch in its parent graph.
func (patch *Patch) Processor() *Processor {
	return patch.proc
}

// Trigger does nothing, the values are relayed to the inlet children.
func (patch *Patch) Trigger(p *Processor) error {
	return nil
}

func (patch *Patch) relay(p *Processor) []work {
	var result []work
	for i, value := range p.Inlets {
		if core.IsUninit(value) || i >= len(patch.inlets) {
			continue
		}
		p.Inlets[i] = core.Uninit
		result = append(result, work{target: patch.inlets[i], value: value, inlet: 0})
	}
	return result
}

// Setup loads the template of patches that were registered as a type.
func (patch *Patch) Setup(p *Processor) error {
	if patch.template == nil {
		return nil
	}
	if err := patch.Load(*patch.template); err != nil {
		p.logger.Warn("template loaded with errors", "error", err)
	}
	return nil
}

// Delete all children, highest id first.
func (patch *Patch) Delete(p *Processor) error {
	var result error
	children := patch.Children()
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Delete(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	p.env.removePatch(patch)
	return result
}

// Children of this patch in ascending id order.
func (patch *Patch) Children() []*Processor {
	result := make([]*Processor, 0, len(patch.children))
	for _, child := range patch.children {
		result = append(result, child)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Inlets returns the inlet children in the order of the patch inlets.
func (patch *Patch) Inlets() []*Processor {
	return append([]*Processor{}, patch.inlets...)
}

// Outlets returns the outlet children in the order of the patch outlets.
func (patch *Patch) Outlets() []*Processor {
	return append([]*Processor{}, patch.outlets...)
}

// AddScope adds a new empty scope. If a scope with that name already exists,
// it is returned instead.
func (patch *Patch) AddScope(name string) *Scope {
	if s, ok := patch.scopes[name]; ok {
		return s
	}
	result := NewScope(name)
	patch.scopes[name] = result
	return result
}

// Scope returns the scope with the given name.
func (patch *Patch) Scope(name string) (*Scope, bool) {
	s, ok := patch.scopes[name]
	return s, ok
}

// DefaultScope of this patch.
func (patch *Patch) DefaultScope() *Scope {
	return patch.defaultScope
}

// ScopeNames returns the names of all scopes in ascending order.
func (patch *Patch) ScopeNames() []string {
	result := make([]string, 0, len(patch.scopes))
	for name := range patch.scopes {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// AddLayer adds a presentation layer that shows the objects of the given scope.
func (patch *Patch) AddLayer(name, scopeName string) {
	patch.AddScope(scopeName)
	for _, layer := range patch.layers {
		if layer.Name == name {
			return
		}
	}
	patch.layers = append(patch.layers, Layer{Name: name, Scope: scopeName})
}

// Layers of this patch.
func (patch *Patch) Layers() []Layer {
	return append([]Layer{}, patch.layers...)
}

// Resolve the given name, first in the given scope, then in the default
// scope. Dotted names address a named scope of this patch ("scope.name") or
// the contents of a child patch ("child.name").
func (patch *Patch) Resolve(name string, scope *Scope) (*Processor, bool) {
	dot := strings.Index(name, ".")
	if dot < 0 {
		return patch.lookup(name, scope)
	}
	head, rest := name[:dot], name[dot+1:]
	if s, ok := patch.scopes[head]; ok {
		if p, ok := patch.Resolve(rest, s); ok {
			return p, true
		}
	}
	child, ok := patch.lookup(head, scope)
	if !ok {
		return nil, false
	}
	sub, ok := AsPatch(child)
	if !ok {
		return nil, false
	}
	return sub.Resolve(rest, nil)
}

func (patch *Patch) lookup(name string, scope *Scope) (*Processor, bool) {
	if scope != nil {
		if p, ok := scope.Resolve(name); ok {
			return p, true
		}
	}
	return patch.defaultScope.Resolve(name)
}

func (patch *Patch) add(p *Processor, scopeName, name string) error {
	scope := patch.defaultScope
	if scopeName != "" {
		scope = patch.AddScope(scopeName)
	}
	if err := scope.Bind(name, p); err != nil {
		return err
	}
	p.Name = name
	p.Scope = scope
	p.Parent = patch
	patch.children[p.ID] = p

	switch e := p.element.(type) {
	case *boundaryInlet:
		patch.rebuildPorts(func() {
			if e.index < 0 {
				e.index = len(patch.inlets)
			}
			patch.inlets = insertBoundary(patch.inlets, p)
		})
	case *boundaryOutlet:
		patch.rebuildPorts(func() {
			if e.index < 0 {
				e.index = len(patch.outlets)
			}
			patch.outlets = insertBoundary(patch.outlets, p)
		})
	}
	return nil
}

func (patch *Patch) remove(p *Processor) {
	if patch.children[p.ID] != p {
		return
	}
	delete(patch.children, p.ID)
	if p.Scope != nil {
		p.Scope.Unbind(p.Name, p)
	}

	switch p.element.(type) {
	case *boundaryInlet:
		patch.rebuildPorts(func() {
			patch.inlets = removeBoundary(patch.inlets, p)
		})
	case *boundaryOutlet:
		patch.rebuildPorts(func() {
			patch.outlets = removeBoundary(patch.outlets, p)
		})
	}
}

type boundaryEdge struct {
	child *Processor
	port  Port
}

// rebuildPorts applies the given change to the boundary children and resizes
// the patch accordingly. The connections of the patch ports follow their
// boundary child to its new position.
func (patch *Patch) rebuildPorts(change func()) {
	p := patch.proc
	var incoming, outgoing []boundaryEdge
	for i, child := range patch.inlets {
		for _, source := range p.ConnectionsIn(i) {
			incoming = append(incoming, boundaryEdge{child: child, port: source})
		}
	}
	for i, child := range patch.outlets {
		for _, target := range p.ConnectionsOut(i) {
			outgoing = append(outgoing, boundaryEdge{child: child, port: target})
		}
	}

	var result error
	for _, e := range incoming {
		if err := e.port.Proc.Disconnect(e.port.Index, p, indexOfProc(patch.inlets, e.child)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, e := range outgoing {
		if err := p.Disconnect(indexOfProc(patch.outlets, e.child), e.port.Proc, e.port.Index); err != nil {
			result = multierror.Append(result, err)
		}
	}

	change()
	p.Resize(len(patch.inlets), len(patch.outlets))
	p.HotInlets = make(map[int]bool, len(patch.inlets))
	for i := range patch.inlets {
		p.HotInlets[i] = true
	}

	for _, e := range incoming {
		inlet := indexOfProc(patch.inlets, e.child)
		if inlet < 0 || !e.port.Proc.Alive() {
			continue
		}
		if err := e.port.Proc.Connect(e.port.Index, p, inlet); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for _, e := range outgoing {
		outlet := indexOfProc(patch.outlets, e.child)
		if outlet < 0 || !e.port.Proc.Alive() {
			continue
		}
		if err := p.Connect(outlet, e.port.Proc, e.port.Index); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result != nil {
		p.logger.Warn("cannot restore connections of the patch ports", "error", result)
	}
}

func indexOfProc(procs []*Processor, p *Processor) int {
	for i, candidate := range procs {
		if candidate == p {
			return i
		}
	}
	return -1
}

func boundaryIndex(p *Processor) int {
	switch e := p.element.(type) {
	case *boundaryInlet:
		return e.index
	case *boundaryOutlet:
		return e.index
	}
	return -1
}

// insertBoundary keeps the boundary children sorted by their declared index,
// ties are broken by id.
func insertBoundary(procs []*Processor, p *Processor) []*Processor {
	result := append(procs, p)
	sort.SliceStable(result, func(i, j int) bool {
		a, b := boundaryIndex(result[i]), boundaryIndex(result[j])
		if a != b {
			return a < b
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func removeBoundary(procs []*Processor, p *Processor) []*Processor {
	i := indexOfProc(procs, p)
	if i < 0 {
		return procs
	}
	return append(procs[:i:i], procs[i+1:]...)
}

// boundaryInlet passes the values of a patch inlet into the patch.
type boundaryInlet struct {
	index int
}

func newBoundaryInlet(p *Processor, args []interface{}, kwargs map[string]interface{}) (Element, error) {
	index, err := declaredIndex(args)
	if err != nil {
		return nil, err
	}
	p.Resize(1, 1)
	return &boundaryInlet{index: index}, nil
}

func (e *boundaryInlet) Trigger(p *Processor) error {
	p.Outlets[0] = p.Inlets[0]
	return nil
}

// boundaryOutlet passes values out of the patch through the corresponding patch outlet.
type boundaryOutlet struct {
	index int
}

func newBoundaryOutlet(p *Processor, args []interface{}, kwargs map[string]interface{}) (Element, error) {
	index, err := declaredIndex(args)
	if err != nil {
		return nil, err
	}
	p.Resize(1, 0)
	return &boundaryOutlet{index: index}, nil
}

func (e *boundaryOutlet) Trigger(p *Processor) error {
	return nil
}

func (e *boundaryOutlet) relay(p *Processor) []work {
	value := p.Inlets[0]
	if p.Parent == nil || core.IsUninit(value) {
		return nil
	}
	parent := p.Parent.proc
	outlet := indexOfProc(p.Parent.outlets, p)
	if outlet < 0 || outlet >= len(parent.Outlets) {
		return nil
	}
	parent.Outlets[outlet] = value
	return parent.outletWork(outlet, value)
}

func declaredIndex(args []interface{}) (int, error) {
	if len(args) == 0 {
		return -1, nil
	}
	index, ok := core.ToInt(args[0])
	if !ok || index < 0 {
		return 0, errors.Errorf("invalid port index %v", args[0])
	}
	return index, nil
}
