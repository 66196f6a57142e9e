package proc

import (
	"sort"
	"sync"
)

// NewRegistry returns a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[int]*Processor),
		lock:    new(sync.RWMutex),
	}
}

// Registry keeps track of all live processors by their id.
type Registry struct {
	nextID  int
	objects map[int]*Processor
	lock    *sync.RWMutex
}

// Remember the given processor and assign a new id to it.
func (r *Registry) Remember(p *Processor) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.nextID++
	p.ID = r.nextID
	r.objects[p.ID] = p
	return p.ID
}

// Recall the processor with the given id.
func (r *Registry) Recall(id int) (*Processor, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	p, ok := r.objects[id]
	return p, ok
}

// Forget the given processor.
func (r *Registry) Forget(p *Processor) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.objects[p.ID] == p {
		delete(r.objects, p.ID)
	}
}

// Len is the number of live processors.
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.objects)
}

// IDs of all live processors in ascending order.
func (r *Registry) IDs() []int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	result := make([]int, 0, len(r.objects))
	for id := range r.objects {
		result = append(result, id)
	}
	sort.Ints(result)
	return result
}

// Sweep deletes all processors that are stuck under construction and returns their number.
func (r *Registry) Sweep() int {
	r.lock.RLock()
	var stuck []*Processor
	for _, p := range r.objects {
		if p.Status == StatusCtor {
			stuck = append(stuck, p)
		}
	}
	r.lock.RUnlock()

	sort.Slice(stuck, func(i, j int) bool {
		return stuck[i].ID > stuck[j].ID
	})
	for _, p := range stuck {
		if err := p.Delete(); err != nil {
			p.logger.Warn("cleanup failed", "error", err)
		}
	}
	return len(stuck)
}
