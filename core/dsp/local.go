package dsp

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// NewLocal returns a DSP backend that only keeps the DSP graph in memory. It is
// used for headless operation and in tests.
func NewLocal() *Local {
	return &Local{
		objects:   make(map[int]*localObject),
		edges:     make(map[Edge]bool),
		responses: make(chan Response, 64),
		lock:      new(sync.Mutex),
	}
}

// Local DSP backend.
type Local struct {
	nextID    int
	objects   map[int]*localObject
	edges     map[Edge]bool
	responses chan Response
	lock      *sync.Mutex
}

type localObject struct {
	backend  *Local
	id       int
	procType string
	params   map[string]interface{}
}

// Create a new object of the given type.
func (l *Local) Create(ctx context.Context, procType string, params map[string]interface{}) (Object, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.nextID++
	result := &localObject{
		backend:  l,
		id:       l.nextID,
		procType: procType,
		params:   make(map[string]interface{}, len(params)),
	}
	for k, v := range params {
		result.params[k] = v
	}
	l.objects[result.id] = result
	return result, nil
}

// Responses from the DSP engine.
func (l *Local) Responses() <-chan Response {
	return l.responses
}

// Respond queues a response on behalf of the object with the given id.
func (l *Local) Respond(id int, kind string, value interface{}) {
	l.responses <- Response{ObjectID: id, Kind: kind, Value: value}
}

// Close the backend.
func (l *Local) Close() error {
	return nil
}

// Edges returns all edges of the DSP graph, sorted.
func (l *Local) Edges() []Edge {
	l.lock.Lock()
	defer l.lock.Unlock()
	result := make([]Edge, 0, len(l.edges))
	for e := range l.edges {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Outlet != b.Outlet {
			return a.Outlet < b.Outlet
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Inlet < b.Inlet
	})
	return result
}

// Count of live objects.
func (l *Local) Count() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.objects)
}

// Param returns the current value of a parameter of the given object.
func (l *Local) Param(id int, name string) (interface{}, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	o, ok := l.objects[id]
	if !ok {
		return nil, false
	}
	v, ok := o.params[name]
	return v, ok
}

func (o *localObject) ID() int {
	return o.id
}

func (o *localObject) alive() bool {
	_, ok := o.backend.objects[o.id]
	return ok
}

func (o *localObject) SetParam(ctx context.Context, name string, value interface{}) error {
	o.backend.lock.Lock()
	defer o.backend.lock.Unlock()
	if !o.alive() {
		return errors.Wrapf(ErrNoSuchObject, "set %s", name)
	}
	o.params[name] = value
	return nil
}

func (o *localObject) GetParam(ctx context.Context, name string) (interface{}, error) {
	o.backend.lock.Lock()
	defer o.backend.lock.Unlock()
	if !o.alive() {
		return nil, errors.Wrapf(ErrNoSuchObject, "get %s", name)
	}
	return o.params[name], nil
}

func (o *localObject) Connect(ctx context.Context, outlet int, target Object, inlet int) error {
	o.backend.lock.Lock()
	defer o.backend.lock.Unlock()
	if !o.alive() {
		return errors.Wrap(ErrNoSuchObject, "connect")
	}
	if _, ok := o.backend.objects[target.ID()]; !ok {
		return errors.Wrapf(ErrNoSuchObject, "connect to %d", target.ID())
	}
	o.backend.edges[Edge{Source: o.id, Outlet: outlet, Target: target.ID(), Inlet: inlet}] = true
	return nil
}

func (o *localObject) Disconnect(ctx context.Context, outlet int, target Object, inlet int) error {
	o.backend.lock.Lock()
	defer o.backend.lock.Unlock()
	delete(o.backend.edges, Edge{Source: o.id, Outlet: outlet, Target: target.ID(), Inlet: inlet})
	return nil
}

func (o *localObject) Delete(ctx context.Context) error {
	o.backend.lock.Lock()
	defer o.backend.lock.Unlock()
	if !o.alive() {
		return errors.Wrap(ErrNoSuchObject, "delete")
	}
	for e := range o.backend.edges {
		if e.Source == o.id || e.Target == o.id {
			delete(o.backend.edges, e)
		}
	}
	delete(o.backend.objects, o.id)
	return nil
}
