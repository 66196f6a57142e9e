// Package osc receives OSC messages over UDP and turns them into the event
// values of the control graph.
package osc

import (
	"net"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"

	"github.com/ftl/mfp/core"
)

// MessageHandler is called for every received OSC message.
type MessageHandler func(msg core.OSCMessage)

// Listen for OSC packets at the given UDP address. If address is empty, localhost:5556 is used.
func Listen(address string, logger hclog.Logger) (*Server, error) {
	if address == "" {
		address = "localhost:5556"
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open OSC port")
	}

	result := &Server{
		conn:   conn,
		logger: logger.Named("osc").With("address", conn.LocalAddr().String()),
	}
	result.server = &osc.Server{Dispatcher: dispatcher{result}}
	return result, nil
}

// Server for incoming OSC messages.
type Server struct {
	conn     net.PacketConn
	server   *osc.Server
	logger   hclog.Logger
	handlers []MessageHandler
}

// Addr returns the local address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.conn.LocalAddr()
}

// OnMessage registers the given handler to be notified about incoming
// messages. The handlers are called on the goroutine of the server.
func (s *Server) OnMessage(handler MessageHandler) {
	s.handlers = append(s.handlers, handler)
}

// Run the server until stop is closed.
func (s *Server) Run(stop chan struct{}, wait *sync.WaitGroup) {
	wait.Add(2)
	go func() {
		defer wait.Done()
		err := s.server.Serve(s.conn)
		select {
		case <-stop:
		default:
			s.logger.Error("OSC server stopped", "error", err)
		}
	}()
	go func() {
		defer wait.Done()
		<-stop
		s.conn.Close()
		s.logger.Info("OSC server shutdown")
	}()
}

func (s *Server) receive(msg *osc.Message) {
	converted := Convert(msg)
	s.logger.Trace("OSC message", "path", converted.Path, "args", len(converted.Args))
	for _, handler := range s.handlers {
		handler(converted)
	}
}

// Convert an OSC message into an event value.
func Convert(msg *osc.Message) core.OSCMessage {
	return core.OSCMessage{
		Path: msg.Address,
		Args: append([]interface{}{}, msg.Arguments...),
	}
}

// dispatcher hands every message to the server, bundles are flattened in order.
type dispatcher struct {
	server *Server
}

func (d dispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		d.server.receive(p)
	case *osc.Bundle:
		for _, msg := range p.Messages {
			d.server.receive(msg)
		}
		for _, bundle := range p.Bundles {
			d.Dispatch(bundle)
		}
	}
}
