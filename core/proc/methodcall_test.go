package proc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/mfp/core"
)

func TestExportedName(t *testing.T) {
	testCases := []struct {
		value    string
		expected string
	}{
		{"clear", "Clear"},
		{"set_value", "SetValue"},
		{"_private", "Private"},
		{"SetValue", "SetValue"},
	}
	for _, tC := range testCases {
		t.Run(tC.value, func(t *testing.T) {
			assert.Equal(t, tC.expected, exportedName(tC.value))
		})
	}
}

func TestMethodCall(t *testing.T) {
	target := &mockTarget{}

	result, err := NewMethodCall(nil, "scale", 2).WithKwargs(map[string]interface{}{"offset": 1}).Call(target)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result)
	assert.Equal(t, map[string]interface{}{"offset": 1}, target.kwargs)

	result, err = NewMethodCall(nil, "sum", 1, 2, 3).Call(target)
	require.NoError(t, err)
	assert.Equal(t, 6, result)

	result, err = NewMethodCall(nil, "sum").Call(target)
	require.NoError(t, err)
	assert.Equal(t, 0, result)
}

func TestMethodCallFailures(t *testing.T) {
	target := &mockTarget{}
	testCases := []struct {
		desc   string
		call   *MethodCall
		reason string
	}{
		{"error result", NewMethodCall(nil, "fail"), "failed on purpose"},
		{"panic", NewMethodCall(nil, "explode"), "panicked"},
		{"too many arguments", NewMethodCall(nil, "fail", 1), "want 0 arguments"},
		{"wrong type", NewMethodCall(nil, "scale", "x"), "cannot use string"},
		{"unsupported kwargs", NewMethodCall(nil, "sum").WithKwargs(map[string]interface{}{"x": 1}), "keyword arguments"},
		{"no such method", NewMethodCall(nil, "missing"), ErrNoSuchMethod.Error()},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			_, err := tC.call.Call(target)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tC.reason)
		})
	}

	_, err := NewMethodCall(nil, "missing").Call(target)
	assert.Equal(t, ErrNoSuchMethod, errors.Cause(err))
}

func TestMethodCallFallback(t *testing.T) {
	namespace := NewNamespace()
	var received []interface{}
	namespace.Define("describe", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		received = args
		return "described", nil
	})
	target := &mockTarget{}

	result, err := NewMethodCall(namespace, "describe", 1, "a").Call(target)

	require.NoError(t, err)
	assert.Equal(t, "described", result)
	assert.Equal(t, []interface{}{target, 1, "a"}, received)
	assert.True(t, core.IsUnbound(namespace.Get("missing")))
	assert.Equal(t, []string{"describe"}, namespace.Names())
}

func TestMethodCallPrefersTargetMethod(t *testing.T) {
	namespace := NewNamespace()
	namespace.Define("sum", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return "fallback", nil
	})

	result, err := NewMethodCall(namespace, "sum", 1).Call(&mockTarget{})

	require.NoError(t, err)
	assert.Equal(t, 1, result)
}

type mockTarget struct {
	kwargs map[string]interface{}
}

func (m *mockTarget) Scale(factor float64, kwargs map[string]interface{}) (float64, error) {
	m.kwargs = kwargs
	return factor, nil
}

func (m *mockTarget) Sum(values ...int) int {
	result := 0
	for _, v := range values {
		result += v
	}
	return result
}

func (m *mockTarget) Fail() error {
	return errors.New("failed on purpose")
}

func (m *mockTarget) Explode() {
	panic("explode")
}
