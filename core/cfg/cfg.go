package cfg

import (
	"time"

	"github.com/ftl/hamradio/cfg"

	"github.com/ftl/mfp/core"
)

const (
	dspHost         cfg.Key = "mfp.dspHost"
	dspPollInterval cfg.Key = "mfp.dspPollInterval"
	oscAddress      cfg.Key = "mfp.oscAddress"
	midiInPort      cfg.Key = "mfp.midiInPort"
	patchDir        cfg.Key = "mfp.patchDir"
	logLevel        cfg.Key = "mfp.logLevel"
)

type getter func(key cfg.Key, defaultValue interface{}) interface{}

func Load() (core.Configuration, error) {
	configuration, err := cfg.LoadDefault()
	if err != nil {
		return core.Configuration{}, err
	}
	return read(configuration.Get), nil
}

func read(get getter) core.Configuration {
	return core.Configuration{
		DSPHost:         get(dspHost, "").(string),
		DSPPollInterval: time.Duration(get(dspPollInterval, 50.0).(float64)) * time.Millisecond,
		OSCAddress:      get(oscAddress, "").(string),
		MIDIInPort:      get(midiInPort, "").(string),
		PatchDir:        get(patchDir, ".").(string),
		LogLevel:        get(logLevel, "info").(string),
	}
}

func Static() core.Configuration {
	return core.Configuration{
		DSPPollInterval: 50 * time.Millisecond,
		PatchDir:        ".",
		LogLevel:        "info",
	}
}
