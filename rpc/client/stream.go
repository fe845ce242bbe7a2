package client

import (
	"errors"
	"io"

	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
)

// duplex is a handle backed by a bidirectional transport stream.
// Each call writes one request and, unless the response is omitted, reads one response.
type duplex struct {
	handle
	stream transport.IDuplexStream
}

// open binds the handle to d and opens the transport stream. Without a
// channel, or if opening fails, the handle starts out unhealthy.
func (x *duplex) open(kind, method string, d *RemoteDBM) {
	x.init(kind, d)

	if err := d.acquire(); err != nil {
		x.leave(stateBroken)
		return
	}
	defer d.mu.RUnlock()

	countCall(method)
	stop := x.arm(d.timeout)
	stream, err := d.channel.NewDuplexStream(x.ctx, method)
	stop()
	if err != nil {
		x.fail("Open failed", err)
		return
	}
	x.stream = stream
}

// roundTrip writes the request built for the selected database and reads the
// answer into resp. With a nil resp only the request is written.
func (x *duplex) roundTrip(build func(dbmIndex int32) any, resp any) error {
	d, err := x.begin()
	if err != nil {
		return err
	}
	defer d.mu.RUnlock()

	stop := x.arm(d.timeout)
	defer stop()

	if err := x.stream.Send(build(d.dbmIndex)); err != nil {
		return x.fail("Write failed", x.finalOutcome(err))
	}
	if resp == nil {
		return nil
	}
	if err := x.stream.Recv(resp); err != nil {
		return x.fail("Read failed", x.finalOutcome(err))
	}
	return nil
}

// finalOutcome returns the final status of the stream after a failed write or read
func (x *duplex) finalOutcome(err error) error {
	if errors.Is(err, io.EOF) {
		// the server ended the call, its outcome is only known after draining
		return x.stream.Finish()
	}
	return err
}

// closeSend half-closes the stream and waits for the server to finish
func (x *duplex) closeSend(*RemoteDBM) error {
	if err := x.stream.CloseSend(); err != nil {
		return err
	}
	return x.stream.Finish()
}

// --------------------------------------------------------------------------
// Stream
// --------------------------------------------------------------------------

// Stream pipelines point operations over one long-lived channel.
// A Stream must not be used by several goroutines at once, except for Cancel.
type Stream struct {
	duplex
}

// MakeStream opens a stream. If the session is not connected the stream is
// unhealthy and every operation fails with a precondition error.
func (d *RemoteDBM) MakeStream() *Stream {
	s := &Stream{}
	s.open("stream", common.MethodStream, d)
	return s
}

// Close half-closes a healthy stream, waits for the server and releases the handle
func (s *Stream) Close() error {
	return s.release(s.closeSend)
}

// exchange performs one operation. With ignoreResult the server is told not
// to answer and the call returns after the write.
func (s *Stream) exchange(build func(dbmIndex int32) *common.StreamRequest, ignoreResult bool) (*common.StreamResponse, error) {
	frame := func(idx int32) any {
		req := build(idx)
		req.OmitResponse = ignoreResult
		return req
	}
	if ignoreResult {
		return nil, s.roundTrip(frame, nil)
	}
	resp := &common.StreamResponse{}
	if err := s.roundTrip(frame, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Echo sends a message and returns the echoed message
func (s *Stream) Echo(message string) (string, error) {
	resp, err := s.exchange(func(int32) *common.StreamRequest {
		return &common.StreamRequest{Echo: &common.EchoRequest{Message: message}}
	}, false)
	if err != nil {
		return "", err
	}
	if resp.Echo == nil {
		return "", errMissingResponse()
	}
	return resp.Echo.Echo, nil
}

// Get returns the value of a record
func (s *Stream) Get(key []byte) ([]byte, error) {
	return s.get(key, false)
}

// Check reports whether a record exists without transferring its value
func (s *Stream) Check(key []byte) error {
	_, err := s.get(key, true)
	return err
}

func (s *Stream) get(key []byte, omitValue bool) ([]byte, error) {
	resp, err := s.exchange(func(idx int32) *common.StreamRequest {
		return &common.StreamRequest{Get: &common.GetRequest{DBMIndex: idx, Key: key, OmitValue: omitValue}}
	}, false)
	if err != nil {
		return nil, err
	}
	if resp.Get == nil {
		return nil, errMissingResponse()
	}
	if err := resp.Get.Status.Err(); err != nil {
		return nil, err
	}
	if omitValue {
		return nil, nil
	}
	return nonNil(resp.Get.Value), nil
}

// Set stores a record, see RemoteDBM.Set
func (s *Stream) Set(key, value []byte, overwrite, ignoreResult bool) error {
	resp, err := s.exchange(func(idx int32) *common.StreamRequest {
		return &common.StreamRequest{Set: &common.SetRequest{DBMIndex: idx, Key: key, Value: value, Overwrite: overwrite}}
	}, ignoreResult)
	if err != nil || ignoreResult {
		return err
	}
	if resp.Set == nil {
		return errMissingResponse()
	}
	return resp.Set.Status.Err()
}

// Remove removes a record
func (s *Stream) Remove(key []byte, ignoreResult bool) error {
	resp, err := s.exchange(func(idx int32) *common.StreamRequest {
		return &common.StreamRequest{Remove: &common.RemoveRequest{DBMIndex: idx, Key: key}}
	}, ignoreResult)
	if err != nil || ignoreResult {
		return err
	}
	if resp.Remove == nil {
		return errMissingResponse()
	}
	return resp.Remove.Status.Err()
}

// Append appends a value to a record, see RemoteDBM.Append
func (s *Stream) Append(key, value, delim []byte, ignoreResult bool) error {
	resp, err := s.exchange(func(idx int32) *common.StreamRequest {
		return &common.StreamRequest{Append: &common.AppendRequest{DBMIndex: idx, Key: key, Value: value, Delim: delim}}
	}, ignoreResult)
	if err != nil || ignoreResult {
		return err
	}
	if resp.Append == nil {
		return errMissingResponse()
	}
	return resp.Append.Status.Err()
}

// CompareExchange replaces a record conditionally, see RemoteDBM.CompareExchange
func (s *Stream) CompareExchange(key, expected, desired []byte) error {
	resp, err := s.exchange(func(idx int32) *common.StreamRequest {
		return &common.StreamRequest{CompareExchange: &common.CompareExchangeRequest{
			DBMIndex:          idx,
			Key:               key,
			ExpectedExistence: existence(expected),
			ExpectedValue:     expected,
			DesiredExistence:  existence(desired),
			DesiredValue:      desired,
		}}
	}, false)
	if err != nil {
		return err
	}
	if resp.CompareExchange == nil {
		return errMissingResponse()
	}
	return resp.CompareExchange.Status.Err()
}

// Increment adds increment to a numeric record, see RemoteDBM.Increment.
// With ignoreResult the returned value is always 0.
func (s *Stream) Increment(key []byte, increment, initial int64, ignoreResult bool) (int64, error) {
	resp, err := s.exchange(func(idx int32) *common.StreamRequest {
		return &common.StreamRequest{Increment: &common.IncrementRequest{DBMIndex: idx, Key: key, Increment: increment, Initial: initial}}
	}, ignoreResult)
	if err != nil || ignoreResult {
		return 0, err
	}
	if resp.Increment == nil {
		return 0, errMissingResponse()
	}
	return resp.Increment.Current, resp.Increment.Status.Err()
}
