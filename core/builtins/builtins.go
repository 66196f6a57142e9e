// Package builtins provides the library of processor types that patches are
// built from.
package builtins

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/proc"
)

// The topics that external events are published to.
const (
	MIDITopic = "midi"
	OSCTopic  = "osc"
)

var operators = []core.Operator{
	core.OpAdd,
	core.OpSub,
	core.OpMul,
	core.OpDiv,
	core.OpMod,
	core.OpEqual,
	core.OpNotEqual,
	core.OpLess,
	core.OpGreater,
	core.OpLessEqual,
	core.OpGreaterEqual,
}

// Register all builtin types.
func Register(types *proc.Types) {
	types.Register("var", newVar)
	for _, op := range operators {
		types.Register(string(op), newArith(op))
	}
	types.Register("route", newRoute)
	types.Register("trigger", newTrigger)
	types.Register("t", newTrigger)
	types.Register("message", newMessage)
	types.Register("msg", newMessage)
	types.Register("print", newPrint)
	types.Register("send", newSend)
	types.Register("recv", newRecv)
	types.Register("apply", newApply)
	types.Register("midi_in", newMidiIn)
	types.Register("osc_in", newOSCIn)
	types.Register("spectrum", newSpectrum)
	for name, spec := range dspTypes {
		types.Register(name, newDSPProxy(name, spec))
	}
}

// argsValue turns creation arguments into a single value: nothing, the only
// argument, or the list of all arguments.
func argsValue(args []interface{}, empty core.Value) core.Value {
	switch len(args) {
	case 0:
		return empty
	case 1:
		return args[0]
	}
	return append([]interface{}{}, args...)
}

func stringArg(args []interface{}, i int) (string, error) {
	if i >= len(args) {
		return "", nil
	}
	result, ok := args[i].(string)
	if !ok {
		return "", errors.Errorf("argument %d must be a name, got %v", i, args[i])
	}
	return result, nil
}

func intArg(args []interface{}, kwargs map[string]interface{}, i int, key string, fallback int) (int, error) {
	var value interface{}
	if v, ok := kwargs[key]; ok {
		value = v
	} else if i >= 0 && i < len(args) {
		value = args[i]
	} else {
		return fallback, nil
	}
	result, ok := core.ToInt(value)
	if !ok {
		return 0, errors.Errorf("%s must be an integer, got %v", key, value)
	}
	return result, nil
}

func format(v core.Value) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprintf("%v", v)
}
