package builtins

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/dsp"
	"github.com/ftl/mfp/core/proc"
)

func TestAdderToVar(t *testing.T) {
	env := newTestEnv()
	plus := create(t, env, "+", "")
	v := create(t, env, "var", "")
	require.NoError(t, plus.Connect(0, v, 0))

	plus.Send(23, 1)
	plus.Send(32, 0)
	assert.Equal(t, 55, valueOf(v))

	plus.Send("hello", 1)
	plus.Send(1, 0)
	assert.True(t, core.IsUninit(plus.Outlets[0]))
	assert.Equal(t, proc.StatusReady, plus.Status)
	assert.Equal(t, 55, valueOf(v))

	plus.Send(2, 1)
	plus.Send(core.Bang, 0)
	assert.Equal(t, 3, valueOf(v))
}

func TestArithmetic(t *testing.T) {
	testCases := []struct {
		op       string
		left     core.Value
		right    string
		expected core.Value
	}{
		{"+", 1, "2", 3},
		{"-", 1, "2.5", -1.5},
		{"*", 3, "4", 12},
		{"/", 3, "2", 1.5},
		{"%", 7, "3", 1},
		{"==", 1, "1.0", true},
		{"!=", "a", "'b'", true},
		{"<", 1, "2", true},
		{">=", 1, "2", false},
		{"+", "a", "'b'", "ab"},
		{"+", core.Uninit, "2", core.Uninit},
	}
	for _, tC := range testCases {
		t.Run(tC.op, func(t *testing.T) {
			env := newTestEnv()
			o := create(t, env, tC.op, tC.right)

			o.Send(tC.left, 0)

			assert.Equal(t, proc.StatusReady, o.Status)
			assert.Equal(t, tC.expected, o.Outlets[0])
		})
	}
}

func TestDivisionByZeroIsAnError(t *testing.T) {
	env := newTestEnv()
	div := create(t, env, "/", "0")
	v := create(t, env, "var", "")
	require.NoError(t, div.Connect(0, v, 0))

	div.Send(1, 0)

	assert.Equal(t, proc.StatusError, div.Status)
	assert.Contains(t, div.Diagnostic, "division by zero")
	assert.True(t, core.IsUninit(valueOf(v)))
}

func TestRoute(t *testing.T) {
	env := newTestEnv()
	r := create(t, env, "route", "False, 1, \"hello\"")
	require.Len(t, r.Outlets, 4)
	vars := make([]*proc.Processor, len(r.Outlets))
	for i := range vars {
		vars[i] = create(t, env, "var", "")
		require.NoError(t, r.Connect(i, vars[i], 0))
	}

	r.Send([]interface{}{false, true}, 0)
	assert.Equal(t, []interface{}{true}, valueOf(vars[0]))

	r.Send("unmatched", 0)
	assert.Equal(t, "unmatched", valueOf(vars[3]))

	r.Send([]interface{}{"hello", 1, 2}, 0)
	assert.Equal(t, []interface{}{1, 2}, valueOf(vars[2]))

	r.Send(1.0, 0)
	assert.Equal(t, core.Bang, valueOf(vars[1]))

	r.Send(proc.NewMethodCall(nil, "set_addresses", "a"), 0)
	assert.Len(t, r.Outlets, 2)
	assert.Len(t, r.ConnectionsOut(1), 1)
	assert.Empty(t, vars[2].ConnectionsIn(0))
}

func TestTriggerFiresRightToLeft(t *testing.T) {
	env := newTestEnv()
	var order []string
	env.Types.Register("tag", func(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
		p.Resize(1, 0)
		return proc.TriggerFunc(func(p *proc.Processor) error {
			order = append(order, p.Name)
			return nil
		}), nil
	})
	tr := create(t, env, "t", "3")
	for i, name := range []string{"left", "middle", "right"} {
		tag, err := env.Create("tag", "", nil, "", name)
		require.NoError(t, err)
		require.NoError(t, tr.Connect(i, tag, 0))
	}

	tr.Send(core.Bang, 0)

	assert.Equal(t, []string{"right", "middle", "left"}, order)
}

func TestMessage(t *testing.T) {
	env := newTestEnv()
	m := create(t, env, "msg", "1, 2")
	v := create(t, env, "var", "")
	require.NoError(t, m.Connect(0, v, 0))

	m.Send(core.Bang, 0)
	assert.Equal(t, []interface{}{1, 2}, valueOf(v))

	m.Send("x", 1)
	assert.Equal(t, []interface{}{1, 2}, valueOf(v))
	m.Send(core.Bang, 0)
	assert.Equal(t, "x", valueOf(v))
	assert.Equal(t, map[string]interface{}{"value": "x"}, m.Element().(proc.Saver).Save(m))
}

func TestSendAndReceive(t *testing.T) {
	env := newTestEnv()
	recv := create(t, env, "recv", "'foo'")
	assert.Equal(t, "foo", recv.Name)
	v := create(t, env, "var", "")
	require.NoError(t, recv.Connect(0, v, 0))
	other := create(t, env, "var", "")
	require.NoError(t, other.Rename("bar"))
	send := create(t, env, "send", "'foo'")

	send.Send(5, 0)
	assert.Equal(t, 5, valueOf(v))

	send.Send("bar", 1)
	send.Send(6, 0)
	assert.Equal(t, 5, valueOf(v))
	assert.Equal(t, 6, valueOf(other))

	send.Send("nobody", 1)
	send.Send(7, 0)
	assert.Equal(t, proc.StatusReady, send.Status)
}

func TestApply(t *testing.T) {
	env := newTestEnv()
	target, err := env.Create("var", "3", nil, "", "v")
	require.NoError(t, err)
	a := create(t, env, "apply", "'v'")
	result := create(t, env, "var", "")
	require.NoError(t, a.Connect(0, result, 0))

	a.Send("value", 0)
	assert.Equal(t, 3, valueOf(result))

	a.Send(proc.NewMethodCall(env.Namespace, "clear"), 0)
	assert.Equal(t, core.Bang, a.Outlets[0])
	assert.True(t, core.IsUninit(valueOf(target)))

	a.Send([]interface{}{"rename", "w"}, 0)
	assert.Equal(t, "w", target.Name)

	a.Send("value", 0)
	assert.Equal(t, proc.StatusError, a.Status)
}

func TestMidiIn(t *testing.T) {
	env := newTestEnv()
	all := create(t, env, "midi_in", "")
	channel1 := create(t, env, "midi_in", "channel=1")
	allVar := create(t, env, "var", "")
	channel1Var := create(t, env, "var", "")
	require.NoError(t, all.Connect(0, allVar, 0))
	require.NoError(t, channel1.Connect(0, channel1Var, 0))

	env.Publish(MIDITopic, core.NoteOn{Channel: 2, Key: 60, Velocity: 100})
	assert.Equal(t, core.NoteOn{Channel: 2, Key: 60, Velocity: 100}, valueOf(allVar))
	assert.True(t, core.IsUninit(valueOf(channel1Var)))

	env.Publish(MIDITopic, core.MidiCC{Channel: 1, Controller: 7, Value: 64})
	assert.Equal(t, core.MidiCC{Channel: 1, Controller: 7, Value: 64}, valueOf(channel1Var))

	_, err := env.Create("midi_in", "16", nil, "", "")
	assert.Error(t, err)
}

func TestOSCIn(t *testing.T) {
	env := newTestEnv()
	in := create(t, env, "osc_in", "'/synth'")
	args := create(t, env, "var", "")
	path := create(t, env, "var", "")
	require.NoError(t, in.Connect(0, args, 0))
	require.NoError(t, in.Connect(1, path, 0))

	env.Publish(OSCTopic, core.OSCMessage{Path: "/synth/freq", Args: []interface{}{float32(440)}})
	assert.Equal(t, []interface{}{float32(440)}, valueOf(args))
	assert.Equal(t, "/synth/freq", valueOf(path))

	env.Publish(OSCTopic, core.OSCMessage{Path: "/synthesizer"})
	assert.Equal(t, "/synth/freq", valueOf(path))
}

func TestSpectrum(t *testing.T) {
	env := newTestEnv()
	s := create(t, env, "spectrum", "size=64, smoothing='avg', length=1")
	samples := make([]interface{}, 64)
	for i := range samples {
		samples[i] = math.Cos(2 * math.Pi * 8 * float64(i) / 64)
	}

	s.Send(samples, 0)

	require.Equal(t, proc.StatusReady, s.Status)
	spectrum := s.Outlets[0].([]interface{})
	assert.Len(t, spectrum, 32)
	peak := 0
	for i := range spectrum {
		if spectrum[i].(float64) > spectrum[peak].(float64) {
			peak = i
		}
	}
	assert.Equal(t, 8, peak)

	s.Send("noise", 0)
	assert.Equal(t, proc.StatusError, s.Status)
}

func TestDSPProxies(t *testing.T) {
	env := newTestEnv()
	backend := dsp.NewLocal()
	env.DSP = backend
	osc := create(t, env, "osc~", "440")
	mul := create(t, env, "*~", "")
	dac := create(t, env, "dac~", "")
	require.NoError(t, osc.Connect(0, mul, 0))
	require.NoError(t, mul.Connect(0, dac, 1))

	assert.Equal(t, []dsp.Edge{
		{Source: osc.DSP.ID(), Outlet: 0, Target: mul.DSP.ID(), Inlet: 0},
		{Source: mul.DSP.ID(), Outlet: 0, Target: dac.DSP.ID(), Inlet: 1},
	}, backend.Edges())
	freq, _ := backend.Param(osc.DSP.ID(), "freq")
	assert.Equal(t, 440, freq)

	osc.Send(220.0, 0)
	mul.Send(0.5, 1)
	freq, _ = backend.Param(osc.DSP.ID(), "freq")
	assert.Equal(t, 220.0, freq)
	value, _ := backend.Param(mul.DSP.ID(), "value")
	assert.Equal(t, 0.5, value)

	osc.Send("x", 0)
	assert.Equal(t, proc.StatusError, osc.Status)

	require.NoError(t, mul.Delete())
	assert.Empty(t, backend.Edges())
	assert.Equal(t, 2, backend.Count())
}

func TestSnapResponses(t *testing.T) {
	env := newTestEnv()
	backend := dsp.NewLocal()
	env.DSP = backend
	snap := create(t, env, "snap~", "")
	v := create(t, env, "var", "")
	require.NoError(t, snap.Connect(0, v, 0))

	backend.Respond(snap.DSP.ID(), "snap", 0.25)
	assert.True(t, env.DispatchDSPResponse(<-backend.Responses()))
	assert.Equal(t, 0.25, valueOf(v))

	snap.Send(proc.NewMethodCall(nil, "set_param", "value", 0.75), 0)
	snap.Send(core.Bang, 0)
	assert.Equal(t, 0.75, valueOf(v))
}

func TestDSPProxyNeedsBackend(t *testing.T) {
	env := newTestEnv()

	p, err := env.Create("osc~", "", nil, "", "")

	assert.Nil(t, p)
	assert.Error(t, err)
	assert.Equal(t, 0, env.Registry.Len())
}

func TestStateSurvivesSaveAndLoad(t *testing.T) {
	env := newTestEnv()
	patchProc, err := env.Create("patch", "", nil, "", "main")
	require.NoError(t, err)
	patch, _ := proc.AsPatch(patchProc)
	v, err := env.Create("var", "", patch, "", "v")
	require.NoError(t, err)
	v.Send(42, 0)

	record := patch.Save()
	loadEnv := newTestEnv()
	loadedProc, err := loadEnv.Create("patch", "", nil, "", "main")
	require.NoError(t, err)
	loaded, _ := proc.AsPatch(loadedProc)
	require.NoError(t, loaded.Load(record))

	loadedVar, ok := loaded.Resolve("v", nil)
	require.True(t, ok)
	assert.Equal(t, 42, valueOf(loadedVar))
}

func newTestEnv() *proc.Env {
	env := proc.NewEnv(nil, nil, nil)
	Register(env.Types)
	return env
}

func create(t *testing.T, env *proc.Env, typeName, initArgs string) *proc.Processor {
	t.Helper()
	p, err := env.Create(typeName, initArgs, nil, "", "")
	require.NoError(t, err)
	return p
}

func valueOf(p *proc.Processor) core.Value {
	return p.Element().(*variable).Value()
}
