package main

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/ftl/mfp/core/cfg"
)

const version = "0.1.0"

func main() {
	configuration, err := cfg.Load()
	if err != nil {
		hclog.Default().Warn("cannot load configuration, using defaults", "error", err)
		configuration = cfg.Static()
	}

	ui := &cli.BasicUi{Reader: os.Stdin, Writer: os.Stdout, ErrorWriter: os.Stderr}
	c := cli.NewCLI("mfp", version)
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return &runCommand{ui: ui, configuration: configuration}, nil
		},
		"check": func() (cli.Command, error) {
			return &checkCommand{ui: ui, configuration: configuration}, nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		ui.Error(err.Error())
	}
	os.Exit(exitStatus)
}
