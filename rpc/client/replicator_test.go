package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Fake transport
// --------------------------------------------------------------------------

// fakeTransport hands out a single channel
type fakeTransport struct {
	channel *fakeChannel
}

func (f *fakeTransport) Dial(context.Context, string, common.ClientConfig) (transport.IClientChannel, error) {
	return f.channel, nil
}

func (f *fakeTransport) GetName() string { return "fake" }

// fakeChannel answers every server stream with the frames in first
type fakeChannel struct {
	first   common.ReplicateResponse
	streams []context.Context
}

func (c *fakeChannel) Invoke(context.Context, string, any, any) error {
	return errors.New("not supported")
}

func (c *fakeChannel) NewDuplexStream(context.Context, string) (transport.IDuplexStream, error) {
	return nil, errors.New("not supported")
}

func (c *fakeChannel) NewServerStream(ctx context.Context, _ string, _ any) (transport.IServerStreamReader, error) {
	c.streams = append(c.streams, ctx)
	return &fakeReader{frame: c.first}, nil
}

func (c *fakeChannel) Close() error { return nil }

type fakeReader struct {
	frame common.ReplicateResponse
}

func (r *fakeReader) Recv(msg any) error {
	*msg.(*common.ReplicateResponse) = r.frame
	return nil
}

func (r *fakeReader) Finish() error { return nil }

func connectFake(t *testing.T, first common.ReplicateResponse) (*RemoteDBM, *fakeChannel) {
	t.Helper()
	channel := &fakeChannel{first: first}
	d := NewRemoteDBM(common.ClientConfig{}, &fakeTransport{channel: channel})
	require.NoError(t, d.Connect("fake", 5))
	t.Cleanup(func() { _ = d.Close() })
	return d, channel
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestReplicatorRejectsBadFirstFrame(t *testing.T) {
	d, channel := connectFake(t, common.ReplicateResponse{Op: common.ReplicateOpSet, ServerID: 3})
	rep := d.MakeReplicator()
	defer rep.Close()

	err := rep.Start(0, 0, 1)
	require.Equal(t, status.CodeBrokenData, status.CodeOf(err))
	require.False(t, rep.Healthy())
	require.Equal(t, int32(-1), rep.GetMasterServerID())

	err = rep.Start(0, 0, 1)
	require.EqualError(t, err, "PRECONDITION_ERROR: started replicator")

	require.Len(t, channel.streams, 1)
	require.Error(t, channel.streams[0].Err(), "the stream of the failed handshake must be cancelled")

	var entry ReplicateLog
	_, err = rep.Read(&entry)
	require.EqualError(t, err, "PRECONDITION_ERROR: unhealthy replicator")
}

func TestReplicatorHandshake(t *testing.T) {
	d, channel := connectFake(t, common.ReplicateResponse{Op: common.ReplicateOpNoop, ServerID: 7})
	rep := d.MakeReplicator()
	defer rep.Close()

	require.NoError(t, rep.Start(0, 0, 1))
	require.True(t, rep.Healthy())
	require.Equal(t, int32(7), rep.GetMasterServerID())
	require.Len(t, channel.streams, 1)
	require.NoError(t, channel.streams[0].Err())
}

func TestArmBreaksHandleWhenDeadlineFired(t *testing.T) {
	h := &handle{kind: "stream"}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	stop := h.arm(time.Millisecond)
	require.Eventually(t, func() bool { return h.ctx.Err() != nil }, time.Second, time.Millisecond)
	stop()

	require.False(t, h.Healthy())
	require.Equal(t, stateBroken, h.getState())
}

func TestArmKeepsHandleBeforeDeadline(t *testing.T) {
	h := &handle{kind: "stream"}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	defer h.cancel()

	stop := h.arm(time.Hour)
	stop()

	require.True(t, h.Healthy())
	require.NoError(t, h.ctx.Err())
}
