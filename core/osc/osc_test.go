package osc

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"

	"github.com/ftl/mfp/core"
)

func TestConvert(t *testing.T) {
	msg := osc.NewMessage("/synth/freq", float32(440), int32(1), "on")

	actual := Convert(msg)

	assert.Equal(t, core.OSCMessage{Path: "/synth/freq", Args: []interface{}{float32(440), int32(1), "on"}}, actual)
}

func TestDispatchFlattensBundles(t *testing.T) {
	server := &Server{logger: hclog.NewNullLogger()}
	var paths []string
	server.OnMessage(func(msg core.OSCMessage) {
		paths = append(paths, msg.Path)
	})
	inner := &osc.Bundle{Messages: []*osc.Message{osc.NewMessage("/c")}}
	outer := &osc.Bundle{
		Messages: []*osc.Message{osc.NewMessage("/a"), osc.NewMessage("/b")},
		Bundles:  []*osc.Bundle{inner},
	}

	dispatcher{server}.Dispatch(osc.NewMessage("/first"))
	dispatcher{server}.Dispatch(outer)

	assert.Equal(t, []string{"/first", "/a", "/b", "/c"}, paths)
}
