// Package dsp contains the handles into the external signal processing engine
// and the spectrum analysis used by the control graph.
package dsp

import (
	"context"

	"github.com/pkg/errors"
)

// Backend creates objects in the external DSP engine.
type Backend interface {
	Create(ctx context.Context, procType string, params map[string]interface{}) (Object, error)
	Responses() <-chan Response
	Close() error
}

// Object is the handle of one object in the DSP graph. All calls cross a
// process boundary and may take a while.
type Object interface {
	ID() int
	SetParam(ctx context.Context, name string, value interface{}) error
	GetParam(ctx context.Context, name string) (interface{}, error)
	Connect(ctx context.Context, outlet int, target Object, inlet int) error
	Disconnect(ctx context.Context, outlet int, target Object, inlet int) error
	Delete(ctx context.Context) error
}

// Response is sent by the DSP engine on its own behalf, e.g. when a signal
// snapshot is ready.
type Response struct {
	ObjectID int
	Kind     string
	Value    interface{}
}

// ErrNoSuchObject is returned for operations on unknown or deleted DSP objects.
var ErrNoSuchObject = errors.New("no such DSP object")

// Edge in the DSP graph.
type Edge struct {
	Source, Outlet int
	Target, Inlet  int
}
