package proc

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrUnknownType is returned when creating a processor of a type that is not registered.
var ErrUnknownType = errors.New("unknown processor type")

// Factory configures the ports of a new processor and returns its element.
type Factory func(p *Processor, args []interface{}, kwargs map[string]interface{}) (Element, error)

// NewTypes returns a type registry that knows the patch type and the patch boundary types.
func NewTypes() *Types {
	result := &Types{
		factories: make(map[string]Factory),
	}
	result.Register("patch", newPatchElement)
	result.Register("inlet", newBoundaryInlet)
	result.Register("outlet", newBoundaryOutlet)
	return result
}

// Types maps type names to factories.
type Types struct {
	factories map[string]Factory
}

// Register a factory under the given type name. An existing registration is replaced.
func (t *Types) Register(name string, factory Factory) {
	t.factories[name] = factory
}

// RegisterPatch registers a saved patch as a new processor type.
func (t *Types) RegisterPatch(name string, record PatchRecord) {
	t.Register(name, func(p *Processor, args []interface{}, kwargs map[string]interface{}) (Element, error) {
		result := newPatch(p)
		result.template = &record
		return result, nil
	})
}

// Lookup the factory of the given type.
func (t *Types) Lookup(name string) (Factory, bool) {
	f, ok := t.factories[name]
	return f, ok
}

// Names of all registered types in ascending order.
func (t *Types) Names() []string {
	result := make([]string, 0, len(t.factories))
	for name := range t.factories {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
