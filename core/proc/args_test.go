package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	testCases := []struct {
		value          string
		expectedArgs   []interface{}
		expectedKwargs map[string]interface{}
		invalid        bool
	}{
		{value: ""},
		{value: "   "},
		{value: "1, 2.5, 'hello', \"world\"", expectedArgs: []interface{}{1, 2.5, "hello", "world"}, expectedKwargs: map[string]interface{}{}},
		{value: "False, 1, \"hello\"", expectedArgs: []interface{}{false, 1, "hello"}, expectedKwargs: map[string]interface{}{}},
		{value: "True, None, true", expectedArgs: []interface{}{true, nil, true}, expectedKwargs: map[string]interface{}{}},
		{value: "-3", expectedArgs: []interface{}{-3}, expectedKwargs: map[string]interface{}{}},
		{value: "[1, [2, 3]], {\"a\": 1}", expectedArgs: []interface{}{[]interface{}{1, []interface{}{2, 3}}, map[string]interface{}{"a": 1}}, expectedKwargs: map[string]interface{}{}},
		{value: "'a, b', \"c\"", expectedArgs: []interface{}{"a, b", "c"}, expectedKwargs: map[string]interface{}{}},
		{value: "freq", expectedArgs: []interface{}{"freq"}, expectedKwargs: map[string]interface{}{}},
		{value: "x, freq=440, name='osc'", expectedArgs: []interface{}{"x"}, expectedKwargs: map[string]interface{}{"freq": 440, "name": "osc"}},
		{value: "1 == 1", expectedArgs: []interface{}{true}, expectedKwargs: map[string]interface{}{}},
		{value: "1,,2", invalid: true},
		{value: "1,", invalid: true},
		{value: "a=1, 2", invalid: true},
		{value: "[1,", invalid: true},
	}
	for _, tC := range testCases {
		t.Run(tC.value, func(t *testing.T) {
			args, kwargs, err := ParseArgs(tC.value)
			if tC.invalid {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tC.expectedArgs, args)
			assert.Equal(t, tC.expectedKwargs, kwargs)
		})
	}
}

func TestNormalizeQuotes(t *testing.T) {
	testCases := []struct {
		value    string
		expected string
	}{
		{"", ""},
		{"1, 2", "1, 2"},
		{"'a'", `"a"`},
		{`'say "hi"'`, `"say \"hi\""`},
		{`"it's"`, `"it's"`},
		{`'a\'b'`, `"a'b"`},
	}
	for _, tC := range testCases {
		t.Run(tC.value, func(t *testing.T) {
			assert.Equal(t, tC.expected, normalizeQuotes(tC.value))
		})
	}
}
