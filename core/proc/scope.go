package proc

import (
	"sort"

	"github.com/pkg/errors"
)

// NewScope returns a new empty scope.
func NewScope(name string) *Scope {
	return &Scope{
		Name:     name,
		bindings: make(map[string]*Processor),
	}
}

// Scope is a flat namespace that binds names to processors.
type Scope struct {
	Name     string
	bindings map[string]*Processor
}

// Bind the name to the given processor. Binding a name that is already taken
// by another processor fails.
func (s *Scope) Bind(name string, p *Processor) error {
	if name == "" {
		return errors.New("cannot bind an empty name")
	}
	if bound, ok := s.bindings[name]; ok && bound != p {
		return errors.Errorf("%q is already bound to %v in scope %s", name, bound, s.Name)
	}
	s.bindings[name] = p
	return nil
}

// Unbind the name if it is bound to the given processor.
func (s *Scope) Unbind(name string, p *Processor) {
	if s.bindings[name] == p {
		delete(s.bindings, name)
	}
}

// Resolve the given name.
func (s *Scope) Resolve(name string) (*Processor, bool) {
	p, ok := s.bindings[name]
	return p, ok
}

// Names of all bindings in ascending order.
func (s *Scope) Names() []string {
	result := make([]string, 0, len(s.bindings))
	for name := range s.bindings {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Len is the number of bindings.
func (s *Scope) Len() int {
	return len(s.bindings)
}
