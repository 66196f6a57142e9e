package cfg

import (
	"testing"
	"time"

	"github.com/ftl/hamradio/cfg"
	"github.com/stretchr/testify/assert"

	"github.com/ftl/mfp/core"
)

func TestRead(t *testing.T) {
	values := map[cfg.Key]interface{}{
		dspHost:         "dsp.local:5555",
		dspPollInterval: 20.0,
		midiInPort:      "Keystation",
	}
	get := func(key cfg.Key, defaultValue interface{}) interface{} {
		if value, ok := values[key]; ok {
			return value
		}
		return defaultValue
	}

	actual := read(get)

	assert.Equal(t, core.Configuration{
		DSPHost:         "dsp.local:5555",
		DSPPollInterval: 20 * time.Millisecond,
		MIDIInPort:      "Keystation",
		PatchDir:        ".",
		LogLevel:        "info",
	}, actual)
}

func TestStaticMatchesDefaults(t *testing.T) {
	actual := read(func(key cfg.Key, defaultValue interface{}) interface{} { return defaultValue })

	assert.Equal(t, Static(), actual)
}
