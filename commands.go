package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/app"
	"github.com/ftl/mfp/core/dsp"
)

func newLogger(level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "mfp",
		Level: hclog.LevelFromString(level),
	})
}

type runCommand struct {
	ui            cli.Ui
	configuration core.Configuration
}

func (c *runCommand) Synopsis() string {
	return "Run the control engine"
}

func (c *runCommand) Help() string {
	return strings.TrimSpace(`
Usage: mfp run [options] [patch ...]

  Starts the control engine and opens the given patches.

Options:

  -dsp=host:port     Address of the DSP engine, the local DSP graph is used if empty.
  -osc=host:port     UDP address for incoming OSC messages.
  -midi=name         Name of the MIDI input port.
  -patches=dir       Directory of the patch files.
  -log-level=level   trace, debug, info, warn or error.
`)
}

func (c *runCommand) Run(args []string) int {
	configuration := c.configuration
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	flags.Usage = func() { c.ui.Output(c.Help()) }
	flags.StringVar(&configuration.DSPHost, "dsp", configuration.DSPHost, "")
	flags.StringVar(&configuration.OSCAddress, "osc", configuration.OSCAddress, "")
	flags.StringVar(&configuration.MIDIInPort, "midi", configuration.MIDIInPort, "")
	flags.StringVar(&configuration.PatchDir, "patches", configuration.PatchDir, "")
	flags.StringVar(&configuration.LogLevel, "log-level", configuration.LogLevel, "")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := app.NewController(configuration, newLogger(configuration.LogLevel))
	if err := controller.Startup(ctx); err != nil {
		c.ui.Error(err.Error())
		return 1
	}
	defer controller.Shutdown()

	for _, name := range flags.Args() {
		if _, err := controller.OpenPatch(name); err != nil {
			c.ui.Warn(err.Error())
		}
	}
	if len(flags.Args()) == 0 {
		if _, err := controller.NewPatch("default"); err != nil {
			c.ui.Error(err.Error())
			return 1
		}
	}

	<-ctx.Done()
	return 0
}

type checkCommand struct {
	ui            cli.Ui
	configuration core.Configuration
	fs            afero.Fs
}

func (c *checkCommand) Synopsis() string {
	return "Load patches without running them and print their objects"
}

func (c *checkCommand) Help() string {
	return strings.TrimSpace(`
Usage: mfp check patch ...

  Loads the given patches with a local DSP graph, prints the object tree and
  reports every object that could not be restored.
`)
}

func (c *checkCommand) Run(args []string) int {
	if len(args) == 0 {
		c.ui.Error(c.Help())
		return 1
	}

	configuration := core.Configuration{PatchDir: c.configuration.PatchDir}
	controller := app.NewController(configuration, newLogger("error"))
	controller.SetDSPBackend(dsp.NewLocal())
	if c.fs != nil {
		controller.SetFileSystem(c.fs)
	}
	if err := controller.Startup(context.Background()); err != nil {
		c.ui.Error(err.Error())
		return 1
	}
	defer controller.Shutdown()

	result := 0
	for _, name := range args {
		if _, err := controller.OpenPatch(name); err != nil {
			c.ui.Error(name + ": " + err.Error())
			result = 1
		}
	}
	tree, err := controller.Tree()
	if err != nil {
		c.ui.Error(err.Error())
		return 1
	}
	c.ui.Output(tree)
	return result
}
