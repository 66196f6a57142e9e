package core

import (
	"math"
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// Value is anything that travels along a connection.
type Value = interface{}

// Sentinel is a marker value without payload. Sentinels are compared by identity.
type Sentinel struct {
	name string
}

func (s *Sentinel) String() string {
	return s.name
}

// The process-wide sentinels.
var (
	// Bang is a trigger pulse without payload.
	Bang = &Sentinel{name: "Bang"}
	// Uninit marks an inlet or outlet without a new value in the current activation.
	Uninit = &Sentinel{name: "Uninit"}
	// Unbound is the result of a failed name lookup.
	Unbound = &Sentinel{name: "Unbound"}
)

// IsUninit indicates if v is the Uninit sentinel.
func IsUninit(v Value) bool {
	s, ok := v.(*Sentinel)
	return ok && s == Uninit
}

// IsBang indicates if v is the Bang sentinel.
func IsBang(v Value) bool {
	s, ok := v.(*Sentinel)
	return ok && s == Bang
}

// IsUnbound indicates if v is the Unbound sentinel.
func IsUnbound(v Value) bool {
	s, ok := v.(*Sentinel)
	return ok && s == Unbound
}

// Truthy coerces the given value to a boolean.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case *Sentinel:
		return v == Bang
	case bool:
		return v
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	}
	if f, ok := ToFloat(v); ok {
		return f != 0
	}
	return true
}

// ToFloat converts any numeric value to float64.
func ToFloat(v Value) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// ToInt converts an integral value to int. Floats are accepted if they carry no fraction.
func ToInt(v Value) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return int(reflect.ValueOf(v).Convert(reflect.TypeOf(0)).Int()), true
	case float32, float64:
		f, _ := ToFloat(v)
		if f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

func isInteger(v Value) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// Equal compares two values. Sentinels are only equal to themselves.
func Equal(a, b Value) bool {
	if sa, ok := a.(*Sentinel); ok {
		sb, ok := b.(*Sentinel)
		return ok && sa == sb
	}
	if _, ok := b.(*Sentinel); ok {
		return false
	}
	if _, ok := a.(bool); ok {
		return a == b
	}
	if fa, ok := ToFloat(a); ok {
		fb, ok := ToFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// Operator of a binary arithmetic or comparison expression.
type Operator string

// All operators.
const (
	OpAdd          Operator = "+"
	OpSub          Operator = "-"
	OpMul          Operator = "*"
	OpDiv          Operator = "/"
	OpMod          Operator = "%"
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
)

// ErrDivisionByZero is returned by Apply when dividing by zero.
var ErrDivisionByZero = errors.New("division by zero")

// Apply evaluates a op b. Uninit on either side is absorbing, as is a type
// mismatch. Integer operands stay integers except for division.
func (op Operator) Apply(a, b Value) (Value, error) {
	if IsUninit(a) || IsUninit(b) {
		return Uninit, nil
	}
	switch op {
	case OpEqual:
		return Equal(a, b), nil
	case OpNotEqual:
		return !Equal(a, b), nil
	}

	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return Uninit, nil
		}
		return op.applyStrings(sa, sb), nil
	}

	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)
	if !okA || !okB {
		return Uninit, nil
	}
	if isInteger(a) && isInteger(b) && op != OpDiv {
		ia, _ := ToInt(a)
		ib, _ := ToInt(b)
		return op.applyInts(ia, ib)
	}
	return op.applyFloats(fa, fb)
}

func (op Operator) applyStrings(a, b string) Value {
	switch op {
	case OpAdd:
		return a + b
	case OpLess:
		return a < b
	case OpGreater:
		return a > b
	case OpLessEqual:
		return a <= b
	case OpGreaterEqual:
		return a >= b
	}
	return Uninit
}

func (op Operator) applyInts(a, b int) (Value, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpMod:
		if b == 0 {
			return Uninit, ErrDivisionByZero
		}
		return a % b, nil
	case OpLess:
		return a < b, nil
	case OpGreater:
		return a > b, nil
	case OpLessEqual:
		return a <= b, nil
	case OpGreaterEqual:
		return a >= b, nil
	}
	return Uninit, nil
}

func (op Operator) applyFloats(a, b float64) (Value, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return Uninit, ErrDivisionByZero
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return Uninit, ErrDivisionByZero
		}
		return math.Mod(a, b), nil
	case OpLess:
		return a < b, nil
	case OpGreater:
		return a > b, nil
	case OpLessEqual:
		return a <= b, nil
	case OpGreaterEqual:
		return a >= b, nil
	}
	return Uninit, nil
}

// NoteOn MIDI event.
type NoteOn struct {
	Channel  uint8
	Key      uint8
	Velocity uint8
}

// NoteOff MIDI event.
type NoteOff struct {
	Channel uint8
	Key     uint8
}

// MidiCC is a MIDI control change event.
type MidiCC struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// MidiPgmChange is a MIDI program change event.
type MidiPgmChange struct {
	Channel uint8
	Program uint8
}

// MidiPitchbend is a MIDI pitch bend event, Value is relative to the center.
type MidiPitchbend struct {
	Channel uint8
	Value   int16
}

// MidiChannel returns the channel of a MIDI event value.
func MidiChannel(v Value) (uint8, bool) {
	switch e := v.(type) {
	case NoteOn:
		return e.Channel, true
	case NoteOff:
		return e.Channel, true
	case MidiCC:
		return e.Channel, true
	case MidiPgmChange:
		return e.Channel, true
	case MidiPitchbend:
		return e.Channel, true
	}
	return 0, false
}

// OSCMessage is an incoming OSC message.
type OSCMessage struct {
	Path string
	Args []interface{}
}

// Configuration parameters of the application.
type Configuration struct {
	DSPHost         string
	DSPPollInterval time.Duration
	OSCAddress      string
	MIDIInPort      string
	PatchDir        string
	LogLevel        string
}
