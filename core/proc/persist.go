package proc

import (
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// FormatVersion of the records written by Save.
const FormatVersion = "1.0"

// Endpoint addresses the inlet of a connection target: [target id, inlet].
type Endpoint [2]int

// ObjectRecord is the persistent form of a processor.
type ObjectRecord struct {
	Type        string                 `json:"type"`
	InitArgs    string                 `json:"initargs"`
	Name        string                 `json:"name,omitempty"`
	Scope       string                 `json:"scope,omitempty"`
	GuiParams   map[string]interface{} `json:"gui_params,omitempty"`
	State       map[string]interface{} `json:"state,omitempty"`
	Connections [][]Endpoint           `json:"connections"`
	Patch       *PatchRecord           `json:"patch,omitempty"`
}

// PatchRecord is the persistent form of a patch.
type PatchRecord struct {
	FormatVersion string                    `json:"format_version,omitempty"`
	Name          string                    `json:"name,omitempty"`
	GuiParams     map[string]interface{}    `json:"gui_params,omitempty"`
	Objects       map[string]ObjectRecord   `json:"objects"`
	Scopes        map[string]map[string]int `json:"scopes,omitempty"`
	Layers        []Layer                   `json:"layers,omitempty"`
}

// Save returns the persistent form of the processor.
func (p *Processor) Save() ObjectRecord {
	result := ObjectRecord{
		Type:        p.Type,
		InitArgs:    p.InitArgs,
		Name:        p.Name,
		GuiParams:   copyParams(p.GuiParams),
		Connections: make([][]Endpoint, len(p.connectionsOut)),
	}
	if p.Parent != nil && p.Scope != nil && p.Scope != p.Parent.defaultScope {
		result.Scope = p.Scope.Name
	}
	for outlet, targets := range p.connectionsOut {
		endpoints := make([]Endpoint, 0, len(targets))
		for _, target := range targets {
			endpoints = append(endpoints, Endpoint{target.Proc.ID, target.Index})
		}
		result.Connections[outlet] = endpoints
	}
	if s, ok := p.element.(Saver); ok {
		result.State = s.Save(p)
	}
	if patch, ok := p.element.(*Patch); ok && patch.template == nil {
		record := patch.Save()
		result.Patch = &record
	}
	return result
}

// Save returns the persistent form of the patch and all its children.
func (patch *Patch) Save() PatchRecord {
	result := PatchRecord{
		FormatVersion: FormatVersion,
		Name:          patch.proc.Name,
		GuiParams:     copyParams(patch.proc.GuiParams),
		Objects:       make(map[string]ObjectRecord, len(patch.children)),
		Scopes:        make(map[string]map[string]int, len(patch.scopes)),
		Layers:        patch.Layers(),
	}
	for _, child := range patch.Children() {
		result.Objects[strconv.Itoa(child.ID)] = child.Save()
	}
	for name, scope := range patch.scopes {
		bindings := make(map[string]int, scope.Len())
		for _, binding := range scope.Names() {
			p, _ := scope.Resolve(binding)
			bindings[binding] = p.ID
		}
		result.Scopes[name] = bindings
	}
	return result
}

// Load creates the objects of the given record in this patch. The objects are
// created in ascending order of their saved ids, then they are connected, then
// the scope bindings are restored. Objects that cannot be created are skipped,
// all problems are reported together.
func (patch *Patch) Load(record PatchRecord) error {
	env := patch.proc.env
	var result error

	ids := make([]int, 0, len(record.Objects))
	keys := make(map[int]string, len(record.Objects))
	for key := range record.Objects {
		id, err := strconv.Atoi(key)
		if err != nil {
			result = multierror.Append(result, errors.Errorf("invalid object id %q", key))
			continue
		}
		ids = append(ids, id)
		keys[id] = key
	}
	sort.Ints(ids)

	created := make(map[int]*Processor, len(ids))
	for _, id := range ids {
		object := record.Objects[keys[id]]
		p, err := env.Create(object.Type, object.InitArgs, patch, object.Scope, object.Name)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "object %d", id))
			continue
		}
		created[id] = p
		if err := restore(p, object); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "object %d", id))
		}
	}

	for _, id := range ids {
		source, ok := created[id]
		if !ok {
			continue
		}
		for outlet, endpoints := range record.Objects[keys[id]].Connections {
			for _, endpoint := range endpoints {
				target, ok := created[endpoint[0]]
				if !ok {
					result = multierror.Append(result, errors.Errorf("object %d: unknown connection target %d", id, endpoint[0]))
					continue
				}
				if err := source.Connect(outlet, target, endpoint[1]); err != nil {
					result = multierror.Append(result, errors.Wrapf(err, "object %d", id))
				}
			}
		}
	}

	scopeNames := make([]string, 0, len(record.Scopes))
	for name := range record.Scopes {
		scopeNames = append(scopeNames, name)
	}
	sort.Strings(scopeNames)
	for _, name := range scopeNames {
		scope := patch.AddScope(name)
		for binding, id := range record.Scopes[name] {
			p, ok := created[id]
			if !ok {
				continue
			}
			if err := scope.Bind(binding, p); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	for _, layer := range record.Layers {
		patch.AddLayer(layer.Name, layer.Scope)
	}
	if len(record.GuiParams) > 0 {
		patch.proc.SetGuiParams(record.GuiParams)
	}
	return result
}

func restore(p *Processor, object ObjectRecord) error {
	var result error
	if len(object.GuiParams) > 0 {
		p.SetGuiParams(object.GuiParams)
	}
	if object.Patch != nil {
		if patch, ok := AsPatch(p); ok {
			if err := patch.Load(*object.Patch); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	if object.State != nil {
		if l, ok := p.element.(Loader); ok {
			if err := l.Load(p, object.State); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return nil
	}
	result := make(map[string]interface{}, len(params))
	for k, v := range params {
		result[k] = v
	}
	return result
}
