package dsp

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ftl/rigproxy/pkg/protocol"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Open a connection to a DSP engine at the given network address. If address is empty, localhost:5555 is used.
func Open(address string, pollingInterval time.Duration, logger hclog.Logger) (*Remote, error) {
	if address == "" {
		address = "localhost:5555"
	}
	if pollingInterval == 0 {
		pollingInterval = 50 * time.Millisecond
	}
	out, err := net.Dial("tcp", address)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open DSP connection")
	}

	trx := protocol.NewTransceiver(out)
	trx.WhenDone(func() {
		out.Close()
	})

	result := Remote{
		trx:             trx,
		pollingInterval: pollingInterval,
		responses:       make(chan Response, 64),
		logger:          logger.Named("dsp"),
	}
	return &result, nil
}

// Remote DSP backend. Every call is a request/response round trip to the DSP process.
type Remote struct {
	trx             *protocol.Transceiver
	pollingInterval time.Duration
	responses       chan Response
	logger          hclog.Logger
}

type remoteObject struct {
	remote *Remote
	id     int
}

// Run the polling for asynchronous responses of the DSP engine.
func (r *Remote) Run(stop chan struct{}, wait *sync.WaitGroup) {
	wait.Add(1)
	go func() {
		defer wait.Done()

		for {
			select {
			case <-time.After(r.pollingInterval):
				r.pollResponses()
			case <-stop:
				return
			}
		}
	}()
}

// Close the connection to the DSP engine.
func (r *Remote) Close() error {
	r.trx.Close()
	r.logger.Info("DSP connection shutdown")
	return nil
}

// Responses from the DSP engine.
func (r *Remote) Responses() <-chan Response {
	return r.responses
}

func (r *Remote) pollResponses() {
	response, err := r.send(context.Background(), "responses")
	if err != nil {
		r.logger.Warn("polling DSP responses failed", "error", err)
		return
	}
	for _, line := range response {
		resp, err := parseResponse(line)
		if err != nil {
			r.logger.Warn("wrong response format", "line", line, "error", err)
			continue
		}
		select {
		case r.responses <- resp:
		default:
			r.logger.Warn("DSP responses hang")
		}
	}
}

func (r *Remote) send(ctx context.Context, command string, args ...string) ([]string, error) {
	request := protocol.Request{Command: protocol.ShortCommand(command), Args: args}
	response, err := r.trx.Send(ctx, request)
	if err != nil {
		return nil, errors.Wrapf(err, "DSP %s failed", command)
	}
	return response.Data, nil
}

// Create a new object of the given type in the DSP engine.
func (r *Remote) Create(ctx context.Context, procType string, params map[string]interface{}) (Object, error) {
	encodedParams, err := encodeValue(params)
	if err != nil {
		return nil, err
	}
	data, err := r.send(ctx, "create", procType, encodedParams)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.Errorf("DSP create %s: empty response", procType)
	}
	id, err := strconv.Atoi(data[0])
	if err != nil {
		return nil, errors.Wrapf(err, "DSP create %s: invalid object id %q", procType, data[0])
	}
	return &remoteObject{remote: r, id: id}, nil
}

func (o *remoteObject) ID() int {
	return o.id
}

func (o *remoteObject) SetParam(ctx context.Context, name string, value interface{}) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}
	_, err = o.remote.send(ctx, "setparam", itoa(o.id), name, encoded)
	return err
}

func (o *remoteObject) GetParam(ctx context.Context, name string) (interface{}, error) {
	data, err := o.remote.send(ctx, "getparam", itoa(o.id), name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeValue(data[0])
}

func (o *remoteObject) Connect(ctx context.Context, outlet int, target Object, inlet int) error {
	_, err := o.remote.send(ctx, "connect", itoa(o.id), itoa(outlet), itoa(target.ID()), itoa(inlet))
	return err
}

func (o *remoteObject) Disconnect(ctx context.Context, outlet int, target Object, inlet int) error {
	_, err := o.remote.send(ctx, "disconnect", itoa(o.id), itoa(outlet), itoa(target.ID()), itoa(inlet))
	return err
}

func (o *remoteObject) Delete(ctx context.Context) error {
	_, err := o.remote.send(ctx, "delete", itoa(o.id))
	return err
}

func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}

func encodeValue(v interface{}) (string, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "cannot encode DSP value")
	}
	return string(bytes), nil
}

func decodeValue(s string) (interface{}, error) {
	var result interface{}
	err := json.Unmarshal([]byte(s), &result)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode DSP value %q", s)
	}
	return result, nil
}

// parseResponse parses a line of the form "<object id> <kind> <json value>".
func parseResponse(line string) (Response, error) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) < 2 {
		return Response{}, errors.New("expected at least object id and kind")
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return Response{}, errors.Wrap(err, "invalid object id")
	}
	result := Response{ObjectID: id, Kind: fields[1]}
	if len(fields) == 3 {
		result.Value, err = decodeValue(fields[2])
		if err != nil {
			return Response{}, err
		}
	}
	return result, nil
}
