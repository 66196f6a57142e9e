package app

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core/dsp"
	"github.com/ftl/mfp/core/proc"
)

// ErrNotRunning is returned for commands sent to a main loop that does not run.
var ErrNotRunning = errors.New("main loop is not running")

func newMainLoop(env *proc.Env, responses <-chan dsp.Response, logger hclog.Logger) *mainLoop {
	return &mainLoop{
		env:       env,
		responses: responses,
		logger:    logger,
		command:   make(chan command, 64),
		stopped:   make(chan struct{}),
	}
}

type command func()

// mainLoop is the only goroutine that touches the graph. Everything else
// queues commands.
type mainLoop struct {
	env       *proc.Env
	responses <-chan dsp.Response
	logger    hclog.Logger

	command chan command
	stopped chan struct{}
}

func (m *mainLoop) Run(ctx context.Context) {
	defer m.logger.Info("main loop shutdown")
	defer close(m.stopped)
	for {
		select {
		case response, ok := <-m.responses:
			if !ok {
				m.responses = nil
				continue
			}
			m.env.DispatchDSPResponse(response)
		case command := <-m.command:
			command()
		case <-ctx.Done():
			return
		}
	}
}

func (m *mainLoop) q(cmd command) bool {
	select {
	case m.command <- cmd:
		return true
	case <-m.stopped:
		m.logger.Warn("command dropped, main loop is not running")
		return false
	}
}

// do runs f on the main loop and waits for its result.
func (m *mainLoop) do(f func() error) error {
	done := make(chan error, 1)
	if !m.q(func() { done <- f() }) {
		return ErrNotRunning
	}
	select {
	case err := <-done:
		return err
	case <-m.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrNotRunning
		}
	}
}

// Publish the given event on the main loop.
func (m *mainLoop) Publish(topic string, event interface{}) {
	m.q(func() {
		count := m.env.Publish(topic, event)
		m.logger.Trace("event published", "topic", topic, "subscribers", count)
	})
}
