package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/mfp/core"
)

func TestPatchForwardsThroughBoundaries(t *testing.T) {
	env := newTestEnv()
	p, patch := createPatch(t, env, "main")
	in := createIn(t, env, patch, "inlet", "")
	double := createIn(t, env, patch, "double", "")
	out := createIn(t, env, patch, "outlet", "")
	require.NoError(t, in.Connect(0, double, 0))
	require.NoError(t, double.Connect(0, out, 0))
	s := create(t, env, "sink", "")
	require.NoError(t, p.Connect(0, s, 0))

	assert.Len(t, p.Inlets, 1)
	assert.Len(t, p.Outlets, 1)
	assert.True(t, p.HotInlets[0])

	p.Send(21, 0)

	assert.Equal(t, []core.Value{42}, sinkOf(s).values)
	assert.True(t, core.IsUninit(p.Inlets[0]))
}

func TestPatchInletsAreSortedByDeclaredIndex(t *testing.T) {
	env := newTestEnv()
	p, patch := createPatch(t, env, "main")
	in1 := createIn(t, env, patch, "inlet", "1")
	in0 := createIn(t, env, patch, "inlet", "0")
	s0 := createIn(t, env, patch, "sink", "")
	s1 := createIn(t, env, patch, "sink", "")
	require.NoError(t, in0.Connect(0, s0, 0))
	require.NoError(t, in1.Connect(0, s1, 0))

	assert.Equal(t, []*Processor{in0, in1}, patch.Inlets())
	assert.True(t, p.HotInlets[1])

	p.Send("a", 0)
	p.Send("b", 1)

	assert.Equal(t, []core.Value{"a"}, sinkOf(s0).values)
	assert.Equal(t, []core.Value{"b"}, sinkOf(s1).values)
}

func TestPatchPortConnectionsFollowBoundaries(t *testing.T) {
	env := newTestEnv()
	p, patch := createPatch(t, env, "main")
	in0 := createIn(t, env, patch, "inlet", "")
	in1 := createIn(t, env, patch, "inlet", "")
	s := createIn(t, env, patch, "sink", "")
	require.NoError(t, in1.Connect(0, s, 0))
	source := create(t, env, "pass", "")
	require.NoError(t, source.Connect(0, p, 1))

	require.NoError(t, in0.Delete())

	assert.Len(t, p.Inlets, 1)
	assert.Equal(t, []Port{{Proc: p, Index: 0}}, source.ConnectionsOut(0))
	assert.Equal(t, []Port{{Proc: source, Index: 0}}, p.ConnectionsIn(0))

	source.Send("x", 0)
	assert.Equal(t, []core.Value{"x"}, sinkOf(s).values)

	require.NoError(t, in1.Delete())
	assert.Empty(t, p.Inlets)
	assert.Empty(t, source.ConnectionsOut(0))
}

func TestResolveChain(t *testing.T) {
	env := newTestEnv()
	main, patch := createPatch(t, env, "main")
	x, err := env.Create("pass", "", patch, "", "x")
	require.NoError(t, err)
	y, err := env.Create("pass", "", patch, "voices", "y")
	require.NoError(t, err)
	_, sub := createPatchIn(t, env, patch, "sub")
	w, err := env.Create("pass", "", sub, "", "w")
	require.NoError(t, err)
	_, other := createPatch(t, env, "other")
	z, err := env.Create("pass", "", other, "", "z")
	require.NoError(t, err)

	testCases := []struct {
		desc     string
		name     string
		query    *Processor
		expected *Processor
	}{
		{"default scope", "x", y, x},
		{"own scope", "y", y, y},
		{"other scope", "y", x, nil},
		{"named scope path", "voices.y", x, y},
		{"child patch path", "sub.w", x, w},
		{"application scope", "main", x, main},
		{"other patch", "z", x, z},
		{"top level path", "other.z", nil, z},
		{"nested top level path", "main.sub.w", nil, w},
		{"unknown", "nothing", x, nil},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			actual, ok := env.Resolve(tC.name, tC.query)
			if tC.expected == nil {
				assert.False(t, ok)
				assert.True(t, core.IsUnbound(env.Lookup(tC.name, tC.query)))
				return
			}
			assert.True(t, ok)
			assert.Equal(t, tC.expected, actual)
		})
	}
}

func TestPatchScopesAndLayers(t *testing.T) {
	env := newTestEnv()
	_, patch := createPatch(t, env, "main")

	voices := patch.AddScope("voices")
	assert.Equal(t, voices, patch.AddScope("voices"))
	patch.AddLayer("Layer 1", "voices")
	patch.AddLayer("Layer 2", "fx")
	patch.AddLayer("Layer 1", "voices")

	assert.Equal(t, []string{DefaultScopeName, "fx", "voices"}, patch.ScopeNames())
	assert.Equal(t, []Layer{{Name: "Layer 1", Scope: "voices"}, {Name: "Layer 2", Scope: "fx"}}, patch.Layers())
}

func TestRenameToSameNameKeepsBinding(t *testing.T) {
	env := newTestEnv()
	_, patch := createPatch(t, env, "main")
	p, err := env.Create("pass", "", patch, "", "foo")
	require.NoError(t, err)

	require.NoError(t, p.Rename("foo"))
	resolved, ok := env.Resolve("foo", p)
	assert.True(t, ok)
	assert.Equal(t, p, resolved)

	p.Send(NewMethodCall(env.Namespace, "rename", "foo"), 0)
	resolved, ok = env.Resolve("foo", p)
	assert.True(t, ok)
	assert.Equal(t, p, resolved)

	require.NoError(t, p.Rename("bar"))
	_, ok = env.Resolve("foo", p)
	assert.False(t, ok)
	resolved, ok = env.Resolve("bar", p)
	assert.True(t, ok)
	assert.Equal(t, p, resolved)
}

func TestDeletePatchDeletesChildren(t *testing.T) {
	env := newTestEnv()
	gui := &mockGUI{}
	env.GUI = gui
	main, patch := createPatch(t, env, "main")
	a := createIn(t, env, patch, "pass", "")
	b := createIn(t, env, patch, "inlet", "")
	require.NoError(t, b.Connect(0, a, 0))
	_, other := createPatch(t, env, "other")
	source := create(t, env, "pass", "")
	require.NoError(t, source.Connect(0, main, 0))

	require.NoError(t, main.Delete())

	assert.Equal(t, StatusDeleted, a.Status)
	assert.Equal(t, StatusDeleted, b.Status)
	assert.Empty(t, patch.Children())
	assert.Empty(t, source.ConnectionsOut(0))
	assert.Equal(t, []*Patch{other}, env.Patches())
	assert.Len(t, env.Registry.IDs(), 2)
	assert.Contains(t, gui.deleted, a)
	assert.Contains(t, gui.deleted, main)
}

func TestLayout(t *testing.T) {
	env := newTestEnv()
	p := create(t, env, "pass", "")
	p.SetGuiParams(map[string]interface{}{
		"position_x":   10,
		"position_y":   "20.5",
		"layername":    "Layer 1",
		"display_type": "processor",
		"other":        true,
	})

	layout, err := p.Layout()

	require.NoError(t, err)
	assert.Equal(t, GuiLayout{X: 10, Y: 20.5, Layer: "Layer 1", DisplayType: "processor"}, layout)
}

func createPatch(t *testing.T, env *Env, name string) (*Processor, *Patch) {
	t.Helper()
	p, err := env.Create("patch", "", nil, "", name)
	require.NoError(t, err)
	patch, ok := AsPatch(p)
	require.True(t, ok)
	return p, patch
}

func createPatchIn(t *testing.T, env *Env, parent *Patch, name string) (*Processor, *Patch) {
	t.Helper()
	p, err := env.Create("patch", "", parent, "", name)
	require.NoError(t, err)
	patch, ok := AsPatch(p)
	require.True(t, ok)
	return p, patch
}

func createIn(t *testing.T, env *Env, patch *Patch, typeName, initArgs string) *Processor {
	t.Helper()
	p, err := env.Create(typeName, initArgs, patch, "", "")
	require.NoError(t, err)
	return p
}
