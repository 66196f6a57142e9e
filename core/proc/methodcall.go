package proc

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
)

// ErrNoSuchMethod is returned when neither the target nor the namespace provide the called method.
var ErrNoSuchMethod = errors.New("no such method")

// Func is a function that can be called by name through a MethodCall.
type Func func(args []interface{}, kwargs map[string]interface{}) (interface{}, error)

// NewNamespace returns a new empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{
		funcs: make(map[string]Func),
	}
}

// Namespace holds the functions that serve as fallback for method calls.
type Namespace struct {
	funcs map[string]Func
}

// Define the function with the given name.
func (n *Namespace) Define(name string, f Func) {
	n.funcs[name] = f
}

// Get the function with the given name, or core.Unbound.
func (n *Namespace) Get(name string) core.Value {
	f, ok := n.funcs[name]
	if !ok {
		return core.Unbound
	}
	return f
}

// Names of all defined functions in ascending order.
func (n *Namespace) Names() []string {
	result := make([]string, 0, len(n.funcs))
	for name := range n.funcs {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// MethodCall is a message that invokes a method on the processor that receives it.
type MethodCall struct {
	Method string
	Args   []interface{}
	Kwargs map[string]interface{}

	fallback Func
}

// NewMethodCall returns a new call of the given method. If the namespace
// defines a function with the same name, it is used when the target does not
// provide the method.
func NewMethodCall(namespace *Namespace, method string, args ...interface{}) *MethodCall {
	result := &MethodCall{
		Method: method,
		Args:   args,
		Kwargs: make(map[string]interface{}),
	}
	if namespace != nil {
		if f, ok := namespace.Get(method).(Func); ok {
			result.fallback = f
		}
	}
	return result
}

// WithKwargs adds the given keyword arguments to the call.
func (c *MethodCall) WithKwargs(kwargs map[string]interface{}) *MethodCall {
	for k, v := range kwargs {
		c.Kwargs[k] = v
	}
	return c
}

func (c *MethodCall) String() string {
	return fmt.Sprintf("<MethodCall %s %v %v>", c.Method, c.Args, c.Kwargs)
}

// Call the method on the given target. If the target has no such method, the
// fallback function is called with the target as first argument.
func (c *MethodCall) Call(target interface{}) (interface{}, error) {
	result, found, err := c.callMethod(target)
	if found {
		return result, err
	}
	return c.callFallback(target)
}

// callMethod calls the exported method of the target that corresponds to the
// method name, e.g. "set_value" calls SetValue. The given leading argument is
// passed before the arguments of the call if the method's first parameter has
// its type.
func (c *MethodCall) callMethod(target interface{}, leading ...interface{}) (result interface{}, found bool, err error) {
	if target == nil {
		return nil, false, nil
	}
	method := reflect.ValueOf(target).MethodByName(exportedName(c.Method))
	if !method.IsValid() {
		return nil, false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Errorf("%s on %T panicked: %v", c.Method, target, r)
		}
	}()

	args := c.Args
	if len(leading) > 0 && method.Type().NumIn() > 0 && reflect.TypeOf(leading[0]) == method.Type().In(0) {
		args = append([]interface{}{leading[0]}, c.Args...)
	}
	in, err := arguments(method.Type(), args, c.Kwargs)
	if err != nil {
		return nil, true, errors.Wrapf(err, "cannot call %s on %T", c.Method, target)
	}
	result, err = results(method.Call(in))
	if err != nil {
		return nil, true, errors.Wrapf(err, "%s on %T failed", c.Method, target)
	}
	return result, true, nil
}

func (c *MethodCall) callFallback(target interface{}) (result interface{}, err error) {
	if c.fallback == nil {
		return nil, errors.Wrapf(ErrNoSuchMethod, "%s on %T", c.Method, target)
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Errorf("%s panicked: %v", c.Method, r)
		}
	}()
	args := append([]interface{}{target}, c.Args...)
	result, err = c.fallback(args, c.Kwargs)
	if err != nil {
		return nil, errors.Wrapf(err, "%s failed", c.Method)
	}
	return result, nil
}

// exportedName converts a snake_case method name into the name of the exported Go method.
func exportedName(method string) string {
	var result strings.Builder
	for _, part := range strings.Split(method, "_") {
		if part == "" {
			continue
		}
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(part[1:])
	}
	return result.String()
}

var kwargsType = reflect.TypeOf(map[string]interface{}{})

// arguments converts the given values into the arguments of the given
// function type. A trailing map[string]interface{} parameter receives the
// keyword arguments.
func arguments(t reflect.Type, args []interface{}, kwargs map[string]interface{}) ([]reflect.Value, error) {
	params := t.NumIn()
	takesKwargs := !t.IsVariadic() && params > 0 && t.In(params-1) == kwargsType && params == len(args)+1
	if takesKwargs {
		params--
	} else if len(kwargs) > 0 {
		return nil, errors.New("keyword arguments are not supported")
	}

	fixed := params
	if t.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, errors.Errorf("want at least %d arguments, got %d", fixed, len(args))
		}
	} else if len(args) != params {
		return nil, errors.Errorf("want %d arguments, got %d", params, len(args))
	}

	result := make([]reflect.Value, 0, len(args)+1)
	for i, arg := range args {
		var paramType reflect.Type
		if i < fixed {
			paramType = t.In(i)
		} else {
			paramType = t.In(fixed).Elem()
		}
		value, err := convert(arg, paramType)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		result = append(result, value)
	}
	if takesKwargs {
		result = append(result, reflect.ValueOf(kwargs))
	}
	return result, nil
}

func convert(arg interface{}, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	value := reflect.ValueOf(arg)
	if value.Type().AssignableTo(t) {
		return value, nil
	}
	if isNumber(value.Kind()) && isNumber(t.Kind()) {
		return value.Convert(t), nil
	}
	return reflect.Value{}, errors.Errorf("cannot use %T as %v", arg, t)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func results(out []reflect.Value) (interface{}, error) {
	var result interface{}
	var err error
	for _, v := range out {
		if v.Type() == errorType {
			if !v.IsNil() {
				err = v.Interface().(error)
			}
			continue
		}
		if result == nil {
			result = v.Interface()
		}
	}
	return result, err
}
