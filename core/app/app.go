package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/builtins"
	"github.com/ftl/mfp/core/dsp"
	"github.com/ftl/mfp/core/midi"
	"github.com/ftl/mfp/core/osc"
	"github.com/ftl/mfp/core/persist"
	"github.com/ftl/mfp/core/proc"
)

// NewController returns a new application controller for the given configuration.
func NewController(configuration core.Configuration, logger hclog.Logger) *Controller {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Controller{
		configuration: configuration,
		logger:        logger,
		gui:           NewLogGUI(logger),
		fs:            afero.NewOsFs(),
	}
}

// Controller for the application. All operations on the graph are executed
// on the main loop.
type Controller struct {
	configuration core.Configuration
	logger        hclog.Logger
	gui           proc.GUI
	fs            afero.Fs
	backend       dsp.Backend

	env   *proc.Env
	store *persist.Store
	loop  *mainLoop

	cancel       context.CancelFunc
	group        *errgroup.Group
	done         chan struct{}
	subProcesses *sync.WaitGroup
}

// SetGUI sets the GUI that is notified about changes of the graph. Must be called before Startup.
func (c *Controller) SetGUI(gui proc.GUI) {
	c.gui = gui
}

// SetFileSystem sets the file system for patch files. Must be called before Startup.
func (c *Controller) SetFileSystem(fs afero.Fs) {
	c.fs = fs
}

// SetDSPBackend sets the DSP backend instead of the one from the configuration. Must be called before Startup.
func (c *Controller) SetDSPBackend(backend dsp.Backend) {
	c.backend = backend
}

// Startup the application.
func (c *Controller) Startup(ctx context.Context) error {
	c.done = make(chan struct{})
	c.subProcesses = new(sync.WaitGroup)

	ctx, c.cancel = context.WithCancel(ctx)
	c.group, ctx = errgroup.WithContext(ctx)
	c.group.Go(func() error {
		<-ctx.Done()
		close(c.done)
		c.subProcesses.Wait()
		return nil
	})

	if c.backend == nil {
		backend, err := c.openDSP()
		if err != nil {
			c.Shutdown()
			return err
		}
		c.backend = backend
	}

	c.env = proc.NewEnv(c.logger, c.backend, c.gui)
	c.env.SetContext(ctx)
	builtins.Register(c.env.Types)
	c.store = persist.NewStore(c.fs, c.configuration.PatchDir)

	c.loop = newMainLoop(c.env, c.backend.Responses(), c.logger.Named("mainloop"))
	c.group.Go(func() error {
		c.loop.Run(ctx)
		return nil
	})

	if err := c.startOSC(); err != nil {
		c.Shutdown()
		return err
	}
	if err := c.startMIDI(); err != nil {
		c.Shutdown()
		return err
	}
	c.logger.Info("application started")
	return nil
}

func (c *Controller) openDSP() (dsp.Backend, error) {
	if c.configuration.DSPHost == "" {
		c.logger.Info("no DSP host configured, using the local DSP graph")
		return dsp.NewLocal(), nil
	}
	remote, err := dsp.Open(c.configuration.DSPHost, c.configuration.DSPPollInterval, c.logger)
	if err != nil {
		return nil, err
	}
	remote.Run(c.done, c.subProcesses)
	return remote, nil
}

func (c *Controller) startOSC() error {
	if c.configuration.OSCAddress == "" {
		return nil
	}
	server, err := osc.Listen(c.configuration.OSCAddress, c.logger)
	if err != nil {
		return err
	}
	server.OnMessage(func(msg core.OSCMessage) {
		c.loop.Publish(builtins.OSCTopic, msg)
	})
	server.Run(c.done, c.subProcesses)
	return nil
}

func (c *Controller) startMIDI() error {
	if c.configuration.MIDIInPort == "" {
		return nil
	}
	input, err := midi.Open(c.configuration.MIDIInPort, c.logger)
	if err != nil {
		return err
	}
	input.OnEvent(func(event core.Value) {
		c.loop.Publish(builtins.MIDITopic, event)
	})
	return input.Run(c.done, c.subProcesses)
}

// Shutdown the application.
func (c *Controller) Shutdown() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	if err := c.group.Wait(); err != nil {
		c.logger.Error("shutdown", "error", err)
	}
	if c.backend != nil {
		c.backend.Close()
	}
	c.logger.Info("application shutdown")
}

// Create a new processor. Top level processors have patch id 0.
func (c *Controller) Create(typeName, initArgs string, patchID int, scope, name string, guiParams map[string]interface{}) (int, error) {
	var id int
	err := c.loop.do(func() error {
		var parent *proc.Patch
		if patchID != 0 {
			var err error
			parent, err = c.patch(patchID)
			if err != nil {
				return err
			}
		}
		p, err := c.env.Create(typeName, initArgs, parent, scope, name)
		if err != nil {
			return err
		}
		if len(guiParams) > 0 {
			p.SetGuiParams(guiParams)
		}
		id = p.ID
		return nil
	})
	return id, err
}

// SetParams merges the given presentation parameters into those of the processor.
func (c *Controller) SetParams(id int, params map[string]interface{}) error {
	return c.loop.do(func() error {
		p, err := c.processor(id)
		if err != nil {
			return err
		}
		p.SetGuiParams(params)
		return nil
	})
}

// Send the value to the given inlet of the processor.
func (c *Controller) Send(id int, value core.Value, inlet int) error {
	return c.loop.do(func() error {
		p, err := c.processor(id)
		if err != nil {
			return err
		}
		p.Send(value, inlet)
		return nil
	})
}

// SendMethodCall sends a method call to the given inlet of the processor.
func (c *Controller) SendMethodCall(id int, method string, args []interface{}, kwargs map[string]interface{}, inlet int) error {
	return c.loop.do(func() error {
		p, err := c.processor(id)
		if err != nil {
			return err
		}
		p.Send(proc.NewMethodCall(c.env.Namespace, method, args...).WithKwargs(kwargs), inlet)
		return nil
	})
}

// Connect the outlet of the source processor with the inlet of the target processor.
func (c *Controller) Connect(sourceID, outlet, targetID, inlet int) error {
	return c.loop.do(func() error {
		source, target, err := c.edge(sourceID, targetID)
		if err != nil {
			return err
		}
		return source.Connect(outlet, target, inlet)
	})
}

// Disconnect the outlet of the source processor from the inlet of the target processor.
func (c *Controller) Disconnect(sourceID, outlet, targetID, inlet int) error {
	return c.loop.do(func() error {
		source, target, err := c.edge(sourceID, targetID)
		if err != nil {
			return err
		}
		return source.Disconnect(outlet, target, inlet)
	})
}

// Delete the processor.
func (c *Controller) Delete(id int) error {
	return c.loop.do(func() error {
		p, err := c.processor(id)
		if err != nil {
			return err
		}
		return p.Delete()
	})
}

// Status of the processor and its diagnostic message.
func (c *Controller) Status(id int) (proc.Status, string, error) {
	var status proc.Status
	var diagnostic string
	err := c.loop.do(func() error {
		p, err := c.processor(id)
		if err != nil {
			return err
		}
		status, diagnostic = p.Status, p.Diagnostic
		return nil
	})
	return status, diagnostic, err
}

// NewPatch creates a new empty top level patch.
func (c *Controller) NewPatch(name string) (int, error) {
	return c.Create("patch", "", 0, "", name, nil)
}

// OpenPatch loads the patch file with the given name as a new top level
// patch. Loading is best effort: if parts of the patch fail, the patch is
// kept and the error lists all failures.
func (c *Controller) OpenPatch(name string) (int, error) {
	record, err := c.store.Load(name)
	if err != nil {
		return 0, err
	}
	var id int
	err = c.loop.do(func() error {
		p, err := c.env.Create("patch", "", nil, "", patchName(name, record))
		if err != nil {
			return err
		}
		id = p.ID
		patch, _ := proc.AsPatch(p)
		return patch.Load(record)
	})
	if err != nil && id != 0 {
		c.logger.Warn("patch loaded with errors", "patch", name, "error", err)
	}
	return id, err
}

// SavePatch writes the patch under the given name. If the name is empty, the name of the patch is used.
func (c *Controller) SavePatch(id int, name string) error {
	var record proc.PatchRecord
	err := c.loop.do(func() error {
		patch, err := c.patch(id)
		if err != nil {
			return err
		}
		record = patch.Save()
		if name == "" {
			name = patch.Processor().Name
		}
		return nil
	})
	if err != nil {
		return err
	}
	if name == "" {
		return errors.Errorf("patch %d has no name", id)
	}
	return c.store.Save(name, record)
}

// RegisterPatchType makes the patch file with the given name available as processor type.
func (c *Controller) RegisterPatchType(typeName, name string) error {
	record, err := c.store.Load(name)
	if err != nil {
		return err
	}
	return c.loop.do(func() error {
		c.env.Types.RegisterPatch(typeName, record)
		return nil
	})
}

// Tree returns a printable tree of all top level patches.
func (c *Controller) Tree() (string, error) {
	var result string
	err := c.loop.do(func() error {
		result = Tree(c.env.Patches()).String()
		return nil
	})
	return result, err
}

func (c *Controller) processor(id int) (*proc.Processor, error) {
	p, ok := c.env.Registry.Recall(id)
	if !ok || !p.Alive() {
		return nil, errors.Errorf("no processor with id %d", id)
	}
	return p, nil
}

func (c *Controller) patch(id int) (*proc.Patch, error) {
	p, err := c.processor(id)
	if err != nil {
		return nil, err
	}
	patch, ok := proc.AsPatch(p)
	if !ok {
		return nil, errors.Errorf("%s is not a patch", p)
	}
	return patch, nil
}

func (c *Controller) edge(sourceID, targetID int) (*proc.Processor, *proc.Processor, error) {
	source, err := c.processor(sourceID)
	if err != nil {
		return nil, nil, err
	}
	target, err := c.processor(targetID)
	if err != nil {
		return nil, nil, err
	}
	return source, target, nil
}

func patchName(filename string, record proc.PatchRecord) string {
	if record.Name != "" {
		return record.Name
	}
	return strings.TrimSuffix(filepath.Base(filename), persist.Extension)
}
