package builtins

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
	"github.com/ftl/mfp/core/dsp"
	"github.com/ftl/mfp/core/proc"
)

// midiIn emits the MIDI events of the given channel, or of all channels.
type midiIn struct {
	channel int
}

func newMidiIn(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(1, 1)
	channel, err := intArg(args, kwargs, 0, "channel", -1)
	if err != nil {
		return nil, err
	}
	if channel > 15 {
		return nil, errors.Errorf("invalid MIDI channel %d", channel)
	}
	return &midiIn{channel: channel}, nil
}

func (m *midiIn) Setup(p *proc.Processor) error {
	p.Env().Subscribe(MIDITopic, p)
	return nil
}

func (m *midiIn) Trigger(p *proc.Processor) error {
	channel, ok := core.MidiChannel(p.Inlets[0])
	if !ok {
		return nil
	}
	if m.channel >= 0 && int(channel) != m.channel {
		return nil
	}
	p.Outlets[0] = p.Inlets[0]
	return nil
}

// oscIn emits the arguments and the path of the OSC messages below its path.
type oscIn struct {
	path string
}

func newOSCIn(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(1, 2)
	path, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	return &oscIn{path: path}, nil
}

func (o *oscIn) Setup(p *proc.Processor) error {
	p.Env().Subscribe(OSCTopic, p)
	return nil
}

func (o *oscIn) Trigger(p *proc.Processor) error {
	msg, ok := p.Inlets[0].(core.OSCMessage)
	if !ok || !o.matches(msg.Path) {
		return nil
	}
	p.Outlets[0] = append([]interface{}{}, msg.Args...)
	p.Outlets[1] = msg.Path
	return nil
}

func (o *oscIn) matches(path string) bool {
	if o.path == "" || path == o.path {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(o.path, "/")+"/")
}

// spectrum emits the power spectrum in dB of a list of samples.
type spectrum struct {
	calc *dsp.Spectrum
}

func newSpectrum(p *proc.Processor, args []interface{}, kwargs map[string]interface{}) (proc.Element, error) {
	p.Resize(1, 1)
	size, err := intArg(args, kwargs, 0, "size", 1024)
	if err != nil {
		return nil, err
	}
	length, err := intArg(args, kwargs, -1, "length", 4)
	if err != nil {
		return nil, err
	}
	smoothing := dsp.SmoothingNone
	if s, ok := kwargs["smoothing"]; ok {
		name, _ := s.(string)
		smoothing = dsp.Smoothing(name)
		switch smoothing {
		case dsp.SmoothingNone, dsp.SmoothingAverage, dsp.SmoothingMax:
		default:
			return nil, errors.Errorf("unknown smoothing %v", s)
		}
	}
	return &spectrum{calc: dsp.NewSpectrum(size, smoothing, length)}, nil
}

func (s *spectrum) Trigger(p *proc.Processor) error {
	list, ok := p.Inlets[0].([]interface{})
	if !ok {
		return errors.Errorf("need a list of samples, got %s", format(p.Inlets[0]))
	}
	samples := make([]float64, len(list))
	for i, v := range list {
		f, ok := core.ToFloat(v)
		if !ok {
			return errors.Errorf("sample %d is not a number: %s", i, format(v))
		}
		samples[i] = f
	}
	values := s.calc.Calculate(samples)
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	p.Outlets[0] = result
	return nil
}
