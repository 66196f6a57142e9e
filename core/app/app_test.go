package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/builtins"
	"github.com/ftl/mfp/core/dsp"
	"github.com/ftl/mfp/core/proc"
)

func TestGUICommands(t *testing.T) {
	c, gui, _ := startController(t)

	patch, err := c.NewPatch("main")
	require.NoError(t, err)
	plus, err := c.Create("+", "", patch, "", "plus", map[string]interface{}{"position_x": 10.0})
	require.NoError(t, err)
	printer, err := c.Create("print", "'sum'", patch, "", "", nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect(plus, 0, printer, 0))

	require.NoError(t, c.Send(plus, 2, 1))
	require.NoError(t, c.Send(plus, 3, 0))
	assert.Equal(t, []string{"sum: 5"}, gui.Prints())

	require.NoError(t, c.SendMethodCall(printer, "rename", []interface{}{"out"}, nil, 0))
	require.NoError(t, c.SetParams(plus, map[string]interface{}{"position_y": 20.0}))
	require.NoError(t, c.Disconnect(plus, 0, printer, 0))
	require.NoError(t, c.Send(plus, 4, 0))
	assert.Len(t, gui.Prints(), 1)

	require.NoError(t, c.Delete(printer))
	assert.Error(t, c.Send(printer, 1, 0))

	tree, err := c.Tree()
	require.NoError(t, err)
	assert.Contains(t, tree, "main")
	assert.Contains(t, tree, "+ (plus)")
	assert.NotContains(t, tree, "print")
}

func TestCreateErrors(t *testing.T) {
	c, _, _ := startController(t)

	_, err := c.Create("nonexistent", "", 0, "", "", nil)
	assert.Error(t, err)

	v, err := c.Create("var", "", 0, "", "", nil)
	require.NoError(t, err)
	_, err = c.Create("var", "", v, "", "", nil)
	assert.Error(t, err, "a var is not a patch")

	assert.Error(t, c.Connect(v, 0, 999, 0))
}

func TestStatus(t *testing.T) {
	c, _, _ := startController(t)
	div, err := c.Create("/", "0", 0, "", "", nil)
	require.NoError(t, err)

	require.NoError(t, c.Send(div, 1, 0))

	status, diagnostic, err := c.Status(div)
	require.NoError(t, err)
	assert.Equal(t, proc.StatusError, status)
	assert.Contains(t, diagnostic, "division by zero")
}

func TestEventsArePublished(t *testing.T) {
	c, gui, _ := startController(t)
	in, err := c.Create("midi_in", "", 0, "", "", nil)
	require.NoError(t, err)
	printer, err := c.Create("print", "", 0, "", "", nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect(in, 0, printer, 0))

	c.loop.Publish(builtins.MIDITopic, core.NoteOn{Channel: 1, Key: 60, Velocity: 90})
	require.NoError(t, c.loop.do(func() error { return nil }))

	assert.Equal(t, []string{"{1 60 90}"}, gui.Prints())
}

func TestDSPResponsesReachProxies(t *testing.T) {
	c, gui, backend := startController(t)
	snap, err := c.Create("snap~", "", 0, "", "", nil)
	require.NoError(t, err)
	printer, err := c.Create("print", "", 0, "", "", nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect(snap, 0, printer, 0))

	var dspID int
	require.NoError(t, c.loop.do(func() error {
		p, err := c.processor(snap)
		dspID = p.DSP.ID()
		return err
	}))
	backend.Respond(dspID, "snap", 0.25)

	assert.Eventually(t, func() bool {
		return len(gui.Prints()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"0.25"}, gui.Prints())
}

func TestSaveAndOpenPatch(t *testing.T) {
	c, _, _ := startController(t)
	patch, err := c.NewPatch("main")
	require.NoError(t, err)
	v, err := c.Create("var", "7", patch, "", "v", nil)
	require.NoError(t, err)
	printer, err := c.Create("print", "", patch, "", "", nil)
	require.NoError(t, err)
	require.NoError(t, c.Connect(v, 0, printer, 0))

	require.NoError(t, c.SavePatch(patch, ""))
	require.NoError(t, c.Delete(patch))

	opened, err := c.OpenPatch("main")
	require.NoError(t, err)
	assert.NotEqual(t, patch, opened)

	tree, err := c.Tree()
	require.NoError(t, err)
	assert.Contains(t, tree, "var 7 (v)")
	assert.Contains(t, tree, "print")

	require.NoError(t, c.RegisterPatchType("main_type", "main"))
	_, err = c.Create("main_type", "", 0, "", "", nil)
	assert.NoError(t, err)

	_, err = c.OpenPatch("missing")
	assert.Error(t, err)
}

func startController(t *testing.T) (*Controller, *mockGUI, *dsp.Local) {
	t.Helper()
	backend := dsp.NewLocal()
	gui := new(mockGUI)
	c := NewController(core.Configuration{PatchDir: "/patches"}, nil)
	c.SetGUI(gui)
	c.SetFileSystem(afero.NewMemMapFs())
	c.SetDSPBackend(backend)
	require.NoError(t, c.Startup(context.Background()))
	t.Cleanup(c.Shutdown)
	return c, gui, backend
}

type mockGUI struct {
	proc.NullGUI
	lock   sync.Mutex
	prints []string
}

func (g *mockGUI) Command(p *proc.Processor, action string, data interface{}) {
	if action != "print" {
		return
	}
	g.lock.Lock()
	defer g.lock.Unlock()
	g.prints = append(g.prints, data.(string))
}

func (g *mockGUI) Prints() []string {
	g.lock.Lock()
	defer g.lock.Unlock()
	return append([]string{}, g.prints...)
}
