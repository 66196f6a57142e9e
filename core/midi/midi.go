// Package midi reads MIDI events from an input port and turns them into the
// event values of the control graph.
package midi

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/ftl/mfp/core"
)

// EventHandler is called for every decoded MIDI event.
type EventHandler func(event core.Value)

// Open the MIDI input port with the given name.
func Open(portName string, logger hclog.Logger) (*Input, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	port, err := midi.FindInPort(portName)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot find MIDI input %q", portName)
	}
	if err := port.Open(); err != nil {
		return nil, errors.Wrapf(err, "cannot open MIDI input %q", portName)
	}
	return &Input{
		port:   port,
		logger: logger.Named("midi").With("port", portName),
	}, nil
}

// Input is an open MIDI input port.
type Input struct {
	port     drivers.In
	logger   hclog.Logger
	handlers []EventHandler
}

// OnEvent registers the given handler to be notified about incoming events.
// The handlers are called on the listener goroutine of the driver.
func (i *Input) OnEvent(handler EventHandler) {
	i.handlers = append(i.handlers, handler)
}

// Run the listener until stop is closed.
func (i *Input) Run(stop chan struct{}, wait *sync.WaitGroup) error {
	stopListening, err := midi.ListenTo(i.port, i.receive, midi.HandleError(func(err error) {
		i.logger.Warn("MIDI listener error", "error", err)
	}))
	if err != nil {
		i.port.Close()
		return errors.Wrap(err, "cannot listen to MIDI input")
	}
	i.logger.Info("MIDI input connected")

	wait.Add(1)
	go func() {
		defer wait.Done()
		<-stop
		stopListening()
		i.port.Close()
		i.logger.Info("MIDI input closed")
	}()
	return nil
}

func (i *Input) receive(msg midi.Message, timestampms int32) {
	event, ok := Decode(msg)
	if !ok {
		i.logger.Trace("unhandled MIDI message", "msg", msg.String())
		return
	}
	for _, handler := range i.handlers {
		handler(event)
	}
}

// Decode the given MIDI message into an event value. Note on messages with
// velocity 0 are note off events.
func Decode(msg midi.Message) (core.Value, bool) {
	var channel, key, velocity, controller, value, program uint8
	var relative int16
	var absolute uint16
	switch {
	case msg.GetNoteStart(&channel, &key, &velocity):
		return core.NoteOn{Channel: channel, Key: key, Velocity: velocity}, true
	case msg.GetNoteEnd(&channel, &key):
		return core.NoteOff{Channel: channel, Key: key}, true
	case msg.GetControlChange(&channel, &controller, &value):
		return core.MidiCC{Channel: channel, Controller: controller, Value: value}, true
	case msg.GetProgramChange(&channel, &program):
		return core.MidiPgmChange{Channel: channel, Program: program}, true
	case msg.GetPitchBend(&channel, &relative, &absolute):
		return core.MidiPitchbend{Channel: channel, Value: relative}, true
	}
	return nil, false
}
