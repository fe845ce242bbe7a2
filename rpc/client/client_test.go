package client_test

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/rpc/client"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/serializer"
	"github.com/ValentinKolb/rDBM/rpc/server"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"github.com/ValentinKolb/rDBM/rpc/transport/tcp"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// startServer starts an in-process server on a random local port
func startServer(t *testing.T, config common.ServerConfig) server.IRPCServer {
	t.Helper()

	config.Transport.Endpoint = "127.0.0.1:0"
	config.Transport.TCPLingerSec = -1
	if config.LogLevel == "" {
		config.LogLevel = "error"
	}

	s := server.NewRPCServer(
		config,
		tcp.NewTCPServerTransport(serializer.NewGOBSerializer()),
		tcp.NewTCPClientTransport(serializer.NewGOBSerializer()),
	)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// connect opens a session with the server at addr
func connect(t *testing.T, addr string) *client.RemoteDBM {
	t.Helper()

	config := common.ClientConfig{
		Transport: common.ClientTransportConfig{TCPConf: common.TCPConf{TCPLingerSec: -1}},
	}
	dbm := client.NewRemoteDBM(config, tcp.NewTCPClientTransport(serializer.NewGOBSerializer()))
	require.NoError(t, dbm.Connect(addr, 5))
	t.Cleanup(func() { _ = dbm.Close() })
	return dbm
}

func requireCode(t *testing.T, want status.Code, err error) {
	t.Helper()
	require.Equal(t, want, status.CodeOf(err), "error: %v", err)
}

// --------------------------------------------------------------------------
// Point Operations
// --------------------------------------------------------------------------

func TestBasicScenario(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	echo, err := dbm.Echo("hello")
	require.NoError(t, err)
	require.Equal(t, "hello", echo)

	require.NoError(t, dbm.Set([]byte("one"), []byte("first"), true))
	require.NoError(t, dbm.Append([]byte("one"), []byte("1"), []byte(":")))

	value, err := dbm.Get([]byte("one"))
	require.NoError(t, err)
	require.Equal(t, "first:1", string(value))

	count, err := dbm.Count()
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	require.NoError(t, dbm.Check([]byte("one")))
	require.NoError(t, dbm.Remove([]byte("one")))

	count, err = dbm.Count()
	require.NoError(t, err)
	require.EqualValues(t, 0, count)

	_, err = dbm.Get([]byte("one"))
	require.ErrorIs(t, err, status.ErrNotFound)
	require.ErrorIs(t, dbm.Check([]byte("one")), status.ErrNotFound)
	require.ErrorIs(t, dbm.Remove([]byte("one")), status.ErrNotFound)
}

func TestSetAndGet(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	tests := []struct {
		key   string
		value []byte
	}{
		{"a", []byte("value")},
		{"empty", []byte{}},
		{"binary", []byte{0, 1, 2, 255}},
		{"", []byte("empty key")},
		{"a", []byte("overwritten")},
	}

	for _, tt := range tests {
		require.NoError(t, dbm.Set([]byte(tt.key), tt.value, true))
		value, err := dbm.Get([]byte(tt.key))
		require.NoError(t, err)
		require.Equal(t, tt.value, value, "key %q", tt.key)
	}
}

func TestSetWithoutOverwrite(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	require.NoError(t, dbm.Set([]byte("k"), []byte("v1"), false))
	err := dbm.Set([]byte("k"), []byte("v2"), false)
	requireCode(t, status.CodeDuplication, err)

	value, err := dbm.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(value))
}

func TestMultiOperations(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	require.NoError(t, dbm.SetMulti(map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}, true))

	records, err := dbm.GetMulti([][]byte{[]byte("a"), []byte("c")})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"a": []byte("1"), "c": []byte("3")}, records)

	// missing keys are reported, the found records are still returned
	records, err = dbm.GetMulti([][]byte{[]byte("a"), []byte("x")})
	require.ErrorIs(t, err, status.ErrNotFound)
	require.Equal(t, map[string][]byte{"a": []byte("1")}, records)

	require.NoError(t, dbm.AppendMulti(map[string][]byte{"a": []byte("x"), "d": []byte("y")}, []byte(",")))
	records, err = dbm.GetMulti([][]byte{[]byte("a"), []byte("d")})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"a": []byte("1,x"), "d": []byte("y")}, records)

	require.NoError(t, dbm.RemoveMulti([][]byte{[]byte("a"), []byte("b")}))
	count, err := dbm.Count()
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	requireCode(t, status.CodeDuplication, dbm.SetMulti(map[string][]byte{"c": []byte("new")}, false))
}

func TestCompareExchange(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())
	key := []byte("k")

	// nil expects the record to be absent
	require.NoError(t, dbm.CompareExchange(key, nil, []byte("v1")))
	requireCode(t, status.CodeInfeasible, dbm.CompareExchange(key, nil, []byte("v2")))

	requireCode(t, status.CodeInfeasible, dbm.CompareExchange(key, []byte("wrong"), []byte("v2")))
	require.NoError(t, dbm.CompareExchange(key, []byte("v1"), []byte{}))

	// an empty value is not an absent record
	requireCode(t, status.CodeInfeasible, dbm.CompareExchange(key, nil, []byte("v3")))
	require.NoError(t, dbm.CompareExchange(key, []byte{}, []byte("v3")))

	// a nil desired value removes the record
	require.NoError(t, dbm.CompareExchange(key, []byte("v3"), nil))
	_, err := dbm.Get(key)
	require.ErrorIs(t, err, status.ErrNotFound)
}

func TestCompareExchangeMulti(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	require.NoError(t, dbm.Set([]byte("a"), []byte("1"), true))
	require.NoError(t, dbm.Set([]byte("b"), []byte("2"), true))

	desired := []client.KeyState{
		{Key: []byte("a"), Value: []byte("10")},
		{Key: []byte("b"), Value: nil},
		{Key: []byte("c"), Value: []byte("30")},
	}

	// one mismatch: nothing is applied
	mismatch := []client.KeyState{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("wrong")},
	}
	requireCode(t, status.CodeInfeasible, dbm.CompareExchangeMulti(mismatch, desired))

	records, err := dbm.GetMulti([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, records)
	require.ErrorIs(t, dbm.Check([]byte("c")), status.ErrNotFound)

	// all match: everything is applied
	match := []client.KeyState{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: nil},
	}
	require.NoError(t, dbm.CompareExchangeMulti(match, desired))

	records, err = dbm.GetMulti([][]byte{[]byte("a"), []byte("c")})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"a": []byte("10"), "c": []byte("30")}, records)
	require.ErrorIs(t, dbm.Check([]byte("b")), status.ErrNotFound)
}

func TestIncrement(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	tests := []struct {
		increment int64
		initial   int64
		want      int64
	}{
		{5, 100, 105},
		{5, 100, 110},
		{-20, 0, 90},
		{0, 0, 90},
	}

	for i, tt := range tests {
		current, err := dbm.Increment([]byte("counter"), tt.increment, tt.initial)
		require.NoError(t, err)
		require.Equal(t, tt.want, current, "step %d", i)
	}
}

func TestDatabaseOperations(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	for i := 0; i < 10; i++ {
		require.NoError(t, dbm.Set([]byte(fmt.Sprintf("key-%02d", i)), []byte("value"), true))
	}

	size, err := dbm.GetFileSize()
	require.NoError(t, err)
	require.Greater(t, size, int64(0))

	matched, err := dbm.SearchModal("begin", []byte("key-0"), 0)
	require.NoError(t, err)
	require.Len(t, matched, 10)

	matched, err = dbm.SearchModal("regex", []byte("[5-9]$"), 2)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("key-05"), []byte("key-06")}, matched)

	_, err = dbm.SearchModal("nope", nil, 0)
	requireCode(t, status.CodeInvalidArgument, err)

	// removing most records makes a rebuild worthwhile
	for i := 0; i < 8; i++ {
		require.NoError(t, dbm.Remove([]byte(fmt.Sprintf("key-%02d", i))))
	}
	tobe, err := dbm.ShouldBeRebuilt()
	require.NoError(t, err)
	require.True(t, tobe)

	require.NoError(t, dbm.Rebuild(map[string]string{"unused": "param"}))
	tobe, err = dbm.ShouldBeRebuilt()
	require.NoError(t, err)
	require.False(t, tobe)

	require.NoError(t, dbm.Clear())
	count, err := dbm.Count()
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestInspectAndDBMIndex(t *testing.T) {
	s := startServer(t, common.ServerConfig{NumDBMs: 2, ServerID: 3})
	dbm := connect(t, s.Addr())

	require.NoError(t, dbm.SetDBMIndex(1))
	require.NoError(t, dbm.Set([]byte("k"), []byte("in 1"), true))

	props, err := dbm.Inspect()
	require.NoError(t, err)
	require.Contains(t, props, store.Property{Name: "class", Value: "tree"})
	require.Contains(t, props, store.Property{Name: "num_records", Value: "1"})

	require.NoError(t, dbm.SetDBMIndex(0))
	require.ErrorIs(t, dbm.Check([]byte("k")), status.ErrNotFound)

	require.NoError(t, dbm.SetDBMIndex(-1))
	props, err = dbm.Inspect()
	require.NoError(t, err)
	require.Contains(t, props, store.Property{Name: "num_dbms", Value: "2"})
	require.Contains(t, props, store.Property{Name: "server_id", Value: "3"})
	require.Contains(t, props, store.Property{Name: "dbm_0_count", Value: "0"})
	require.Contains(t, props, store.Property{Name: "dbm_1_count", Value: "1"})

	// an invalid index is rejected by the transport
	require.NoError(t, dbm.SetDBMIndex(5))
	_, err = dbm.Get([]byte("k"))
	requireCode(t, status.CodeNetwork, err)
	require.Contains(t, err.Error(), "INVALID_ARGUMENT: dbm_index is out of range")
}

func TestSynchronizeAndRestore(t *testing.T) {
	dir := t.TempDir()

	s := startServer(t, common.ServerConfig{DataDir: dir})
	dbm := connect(t, s.Addr())
	require.NoError(t, dbm.Set([]byte("persisted"), []byte("yes"), true))
	require.NoError(t, dbm.Synchronize(true, nil))
	require.NoError(t, dbm.Close())
	require.NoError(t, s.Stop())

	s = startServer(t, common.ServerConfig{DataDir: dir})
	dbm = connect(t, s.Addr())
	value, err := dbm.Get([]byte("persisted"))
	require.NoError(t, err)
	require.Equal(t, "yes", string(value))
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

func TestSessionPreconditions(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := client.NewRemoteDBM(common.ClientConfig{}, tcp.NewTCPClientTransport(serializer.NewGOBSerializer()))
	defer dbm.Close()

	// not connected
	_, err := dbm.Get([]byte("k"))
	requireCode(t, status.CodePrecondition, err)
	require.EqualError(t, err, "PRECONDITION_ERROR: not connected database")
	requireCode(t, status.CodePrecondition, dbm.Disconnect())
	requireCode(t, status.CodePrecondition, dbm.SetDBMIndex(1))

	// connected
	require.NoError(t, dbm.Connect(s.Addr(), 5))
	err = dbm.Connect(s.Addr(), 5)
	require.EqualError(t, err, "PRECONDITION_ERROR: connected database")
	require.NoError(t, dbm.Set([]byte("k"), []byte("v"), true))

	// disconnected again
	require.NoError(t, dbm.Disconnect())
	requireCode(t, status.CodePrecondition, dbm.Set([]byte("k"), []byte("v"), true))

	// the session can be connected again
	require.NoError(t, dbm.Connect(s.Addr(), -1))
	value, err := dbm.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v", string(value))
}

func TestConnectFailure(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	addr := s.Addr()
	require.NoError(t, s.Stop())

	dbm := client.NewRemoteDBM(common.ClientConfig{}, tcp.NewTCPClientTransport(serializer.NewGOBSerializer()))
	err := dbm.Connect(addr, 0.5)
	require.EqualError(t, err, "NETWORK_ERROR: connection failed")

	// still disconnected
	requireCode(t, status.CodePrecondition, dbm.Disconnect())
}

func TestConcurrentPointOperations(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	const workers, perWorker = 8, 50
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			for i := 0; i < perWorker; i++ {
				if _, err := dbm.Increment([]byte("shared"), 1, 0); err != nil {
					errs <- err
					return
				}
				if err := dbm.Set([]byte(fmt.Sprintf("w%d-%d", w, i)), []byte("v"), true); err != nil {
					errs <- err
					return
				}
			}
			errs <- nil
		}(w)
	}
	for w := 0; w < workers; w++ {
		require.NoError(t, <-errs)
	}

	current, err := dbm.Increment([]byte("shared"), 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, workers*perWorker, current)
}

// --------------------------------------------------------------------------
// Stream
// --------------------------------------------------------------------------

func TestStream(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	stream := dbm.MakeStream()
	defer stream.Close()

	echo, err := stream.Echo("ping")
	require.NoError(t, err)
	require.Equal(t, "ping", echo)

	require.NoError(t, stream.Set([]byte("a"), []byte("1"), true, false))
	requireCode(t, status.CodeDuplication, stream.Set([]byte("a"), []byte("2"), false, false))
	require.NoError(t, stream.Append([]byte("a"), []byte("2"), []byte("+"), false))

	value, err := stream.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "1+2", string(value))
	require.NoError(t, stream.Check([]byte("a")))

	require.NoError(t, stream.CompareExchange([]byte("a"), []byte("1+2"), []byte("3")))
	requireCode(t, status.CodeInfeasible, stream.CompareExchange([]byte("a"), nil, []byte("4")))

	current, err := stream.Increment([]byte("n"), 2, 10, false)
	require.NoError(t, err)
	require.EqualValues(t, 12, current)

	require.NoError(t, stream.Remove([]byte("a"), false))
	require.ErrorIs(t, stream.Remove([]byte("a"), false), status.ErrNotFound)
	_, err = stream.Get([]byte("a"))
	require.ErrorIs(t, err, status.ErrNotFound)
}

func TestStreamIgnoreResult(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	stream := dbm.MakeStream()
	for i := 0; i < 100; i++ {
		require.NoError(t, stream.Set([]byte(fmt.Sprintf("k%03d", i)), []byte("v"), true, true))
	}
	_, err := stream.Increment([]byte("n"), 1, 0, true)
	require.NoError(t, err)
	require.NoError(t, stream.Append([]byte("k000"), []byte("w"), nil, true))
	require.NoError(t, stream.Remove([]byte("k099"), true))

	// the next answered call proves that the stream is still frame aligned
	value, err := stream.Get([]byte("k000"))
	require.NoError(t, err)
	require.Equal(t, "vw", string(value))
	current, err := stream.Increment([]byte("n"), 1, 0, false)
	require.NoError(t, err)
	require.EqualValues(t, 2, current)
	require.NoError(t, stream.Close())

	count, err := dbm.Count()
	require.NoError(t, err)
	require.EqualValues(t, 100, count)
}

func TestStreamAfterDisconnect(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	stream := dbm.MakeStream()
	defer stream.Close()
	_, err := stream.Echo("before")
	require.NoError(t, err)

	require.NoError(t, dbm.Disconnect())
	_, err = stream.Echo("after")
	require.EqualError(t, err, "PRECONDITION_ERROR: not connected database")

	// a stream made while disconnected is unhealthy
	unhealthy := dbm.MakeStream()
	defer unhealthy.Close()
	require.False(t, unhealthy.Healthy())
}

func TestHandlesAfterSessionClose(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	stream := dbm.MakeStream()
	it := dbm.MakeIterator()
	rep := dbm.MakeReplicator()

	require.NoError(t, dbm.Close())

	_, err := stream.Echo("x")
	requireCode(t, status.CodePrecondition, err)
	requireCode(t, status.CodePrecondition, it.First())
	requireCode(t, status.CodePrecondition, rep.Start(0, 0, 1))

	// releasing detached handles must not block or fail
	require.NoError(t, stream.Close())
	require.NoError(t, it.Close())
	require.NoError(t, rep.Close())
}

func TestCancel(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())
	require.NoError(t, dbm.Set([]byte("k"), []byte("v"), true))

	stream := dbm.MakeStream()
	defer stream.Close()
	it := dbm.MakeIterator()
	defer it.Close()
	rep := dbm.MakeReplicator()
	defer rep.Close()
	require.NoError(t, rep.Start(0, 0, 1))

	stream.Cancel()
	it.Cancel()
	rep.Cancel()
	stream.Cancel() // idempotent

	var entry client.ReplicateLog
	for i := 0; i < 3; i++ {
		_, err := stream.Get([]byte("k"))
		require.EqualError(t, err, "PRECONDITION_ERROR: unhealthy stream")
		requireCode(t, status.CodePrecondition, stream.Set([]byte("k"), []byte("v"), true, true))
		requireCode(t, status.CodePrecondition, it.First())
		_, err = rep.Read(&entry)
		requireCode(t, status.CodePrecondition, err)
	}

	// the session is not affected
	value, err := dbm.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v", string(value))
}

func TestStreamPoisonedByServerShutdown(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	stream := dbm.MakeStream()
	defer stream.Close()
	_, err := stream.Echo("alive")
	require.NoError(t, err)

	require.NoError(t, s.Stop())

	_, err = stream.Echo("dead")
	requireCode(t, status.CodeNetwork, err)
	require.False(t, stream.Healthy())

	// poisoned for good, and reported as misuse from now on
	_, err = stream.Echo("dead")
	requireCode(t, status.CodePrecondition, err)
}

// silentServer starts a transport whose stream reads requests but never answers
func silentServer(t *testing.T) string {
	t.Helper()

	st := tcp.NewTCPServerTransport(serializer.NewGOBSerializer())
	st.RegisterStream(common.MethodStream, func(stream transport.IServerStream) error {
		for {
			var req common.StreamRequest
			if err := stream.RecvMsg(&req); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	}, true)
	require.NoError(t, st.Listen(common.ServerConfig{
		Transport: common.ServerTransportConfig{Endpoint: "127.0.0.1:0", TCPConf: common.TCPConf{TCPLingerSec: -1}},
	}))
	t.Cleanup(st.Stop)
	return st.Addr()
}

func TestStreamDeadline(t *testing.T) {
	addr := silentServer(t)

	dbm := client.NewRemoteDBM(common.ClientConfig{}, tcp.NewTCPClientTransport(serializer.NewGOBSerializer()))
	require.NoError(t, dbm.Connect(addr, 0.2))
	defer dbm.Close()

	stream := dbm.MakeStream()
	defer stream.Close()

	start := time.Now()
	_, err := stream.Echo("no answer")
	requireCode(t, status.CodeNetwork, err)
	require.True(t, strings.HasPrefix(status.MessageOf(err), "Read failed: DEADLINE_EXCEEDED"), "error: %v", err)
	require.Less(t, time.Since(start), 5*time.Second)

	_, err = stream.Echo("again")
	requireCode(t, status.CodePrecondition, err)
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

func TestIteratorWalk(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())

	keys := []string{"d", "b", "e", "a", "c"}
	for _, k := range keys {
		require.NoError(t, dbm.Set([]byte(k), []byte("value-"+k), true))
	}

	it := dbm.MakeIterator()
	defer it.Close()

	var visited []string
	require.NoError(t, it.First())
	for {
		key, value, err := it.Get(true, true)
		if errors.Is(err, status.ErrNotFound) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, "value-"+string(key), string(value))
		visited = append(visited, string(key))

		if err := it.Next(); errors.Is(err, status.ErrNotFound) {
			break
		}
	}

	require.Len(t, visited, len(keys))
	require.True(t, sort.StringsAreSorted(visited), "visited %v", visited)

	// past the end the iterator is not positioned
	requireCode(t, status.CodeNotFound, it.Next())
}

func TestIteratorPositioning(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, dbm.Set([]byte(k), []byte(k), true))
	}

	it := dbm.MakeIterator()
	defer it.Close()

	currentKey := func() string {
		t.Helper()
		key, value, err := it.Get(true, false)
		require.NoError(t, err)
		require.Nil(t, value)
		return string(key)
	}

	tests := []struct {
		name string
		move func() error
		want string
	}{
		{"Last", it.Last, "e"},
		{"Previous", it.Previous, "d"},
		{"Jump", func() error { return it.Jump([]byte("bb")) }, "c"},
		{"JumpLower inclusive", func() error { return it.JumpLower([]byte("c"), true) }, "c"},
		{"JumpLower exclusive", func() error { return it.JumpLower([]byte("c"), false) }, "b"},
		{"JumpUpper inclusive", func() error { return it.JumpUpper([]byte("c"), true) }, "c"},
		{"JumpUpper exclusive", func() error { return it.JumpUpper([]byte("c"), false) }, "d"},
		{"First", it.First, "a"},
		{"Next", it.Next, "b"},
	}

	for _, tt := range tests {
		require.NoError(t, tt.move(), tt.name)
		require.Equal(t, tt.want, currentKey(), tt.name)
	}

	// only the value
	key, value, err := it.Get(false, true)
	require.NoError(t, err)
	require.Nil(t, key)
	require.Equal(t, "b", string(value))

	// in place update
	require.NoError(t, it.Set([]byte("B")))
	value, err = dbm.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, "B", string(value))

	// remove moves to the following record
	require.NoError(t, it.Remove())
	require.Equal(t, "c", currentKey())
	require.ErrorIs(t, dbm.Check([]byte("b")), status.ErrNotFound)

	// nothing below the first key
	require.NoError(t, it.JumpLower([]byte("a"), false))
	_, _, err = it.Get(true, true)
	require.ErrorIs(t, err, status.ErrNotFound)
}

func TestIteratorSwitchesDatabase(t *testing.T) {
	s := startServer(t, common.ServerConfig{NumDBMs: 2})
	dbm := connect(t, s.Addr())

	require.NoError(t, dbm.Set([]byte("zero"), nil, true))
	require.NoError(t, dbm.SetDBMIndex(1))
	require.NoError(t, dbm.Set([]byte("one"), nil, true))

	it := dbm.MakeIterator()
	defer it.Close()

	require.NoError(t, it.First())
	key, _, err := it.Get(true, false)
	require.NoError(t, err)
	require.Equal(t, "one", string(key))

	require.NoError(t, dbm.SetDBMIndex(0))
	require.NoError(t, it.First())
	key, _, err = it.Get(true, false)
	require.NoError(t, err)
	require.Equal(t, "zero", string(key))
}

// --------------------------------------------------------------------------
// Replicator
// --------------------------------------------------------------------------

func TestReplicator(t *testing.T) {
	s := startServer(t, common.ServerConfig{ServerID: 7, NumDBMs: 2})
	dbm := connect(t, s.Addr())

	start := time.Now().UnixMilli()
	require.NoError(t, dbm.Set([]byte("a"), []byte("1"), true))
	require.NoError(t, dbm.Set([]byte("b"), []byte("22"), true))
	require.NoError(t, dbm.Remove([]byte("a")))
	require.NoError(t, dbm.SetDBMIndex(1))
	require.NoError(t, dbm.Clear())

	rep := dbm.MakeReplicator()
	defer rep.Close()
	require.EqualValues(t, -1, rep.GetMasterServerID())

	var entry client.ReplicateLog
	_, err := rep.Read(&entry)
	require.EqualError(t, err, "PRECONDITION_ERROR: not started replicator")

	require.NoError(t, rep.Start(start, 0, 0.2))
	require.EqualValues(t, 7, rep.GetMasterServerID())
	require.EqualError(t, rep.Start(start, 0, 0.2), "PRECONDITION_ERROR: started replicator")

	want := []struct {
		op       client.OpType
		dbmIndex int32
		key      string
		value    string
	}{
		{client.OpSet, 0, "a", "1"},
		{client.OpSet, 0, "b", "22"},
		{client.OpRemove, 0, "a", ""},
		{client.OpClear, 1, "", ""},
	}

	last := start
	for i, w := range want {
		timestamp, err := rep.Read(&entry)
		require.NoError(t, err)
		require.GreaterOrEqual(t, timestamp, last, "entry %d", i)
		last = timestamp

		require.Equal(t, w.op, entry.Op, "entry %d", i)
		require.EqualValues(t, 7, entry.ServerID)
		require.Equal(t, w.dbmIndex, entry.DBMIndex, "entry %d", i)
		require.Equal(t, w.key, string(entry.Key), "entry %d", i)
		require.Equal(t, w.value, string(entry.Value), "entry %d", i)
	}

	// without updates the server sends a heartbeat
	_, err = rep.Read(&entry)
	require.ErrorIs(t, err, status.ErrInfeasible)
	require.Equal(t, client.OpVoid, entry.Op)

	// live updates arrive after the heartbeat
	require.NoError(t, dbm.Set([]byte("live"), []byte("x"), true))
	for {
		_, err = rep.Read(&entry)
		if !errors.Is(err, status.ErrInfeasible) {
			break
		}
	}
	require.NoError(t, err)
	require.Equal(t, client.OpSet, entry.Op)
	require.Equal(t, "live", string(entry.Key))
	require.True(t, rep.Healthy())
}

func TestReplicatorSkipsOwnServer(t *testing.T) {
	s := startServer(t, common.ServerConfig{ServerID: 1})
	dbm := connect(t, s.Addr())
	require.NoError(t, dbm.Set([]byte("k"), []byte("v"), true))

	rep := dbm.MakeReplicator()
	defer rep.Close()

	// asking as server 1 skips everything that originated there
	require.NoError(t, rep.Start(0, 1, 0.1))
	var entry client.ReplicateLog
	_, err := rep.Read(&entry)
	require.ErrorIs(t, err, status.ErrInfeasible)
}

func TestReplicaFollowsMaster(t *testing.T) {
	master := startServer(t, common.ServerConfig{ServerID: 1, TimeoutSecond: 5})
	replica := startServer(t, common.ServerConfig{ServerID: 2, TimeoutSecond: 5})

	masterDBM := connect(t, master.Addr())
	replicaDBM := connect(t, replica.Addr())

	require.NoError(t, masterDBM.Set([]byte("before"), []byte("1"), true))
	require.NoError(t, replicaDBM.ChangeMaster(master.Addr(), 0))
	require.NoError(t, masterDBM.Set([]byte("after"), []byte("2"), true))
	require.NoError(t, masterDBM.Remove([]byte("before")))

	require.Eventually(t, func() bool {
		value, err := replicaDBM.Get([]byte("after"))
		return err == nil && string(value) == "2" && errors.Is(replicaDBM.Check([]byte("before")), status.ErrNotFound)
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, replicaDBM.SetDBMIndex(-1))
	props, err := replicaDBM.Inspect()
	require.NoError(t, err)
	require.Contains(t, props, store.Property{Name: "master", Value: master.Addr()})

	// stop following
	require.NoError(t, replicaDBM.ChangeMaster("", 0))
	props, err = replicaDBM.Inspect()
	require.NoError(t, err)
	require.Contains(t, props, store.Property{Name: "master", Value: ""})
}

func TestReplicateLogBuffer(t *testing.T) {
	s := startServer(t, common.ServerConfig{})
	dbm := connect(t, s.Addr())
	require.NoError(t, dbm.Set([]byte("key"), []byte("value"), true))
	require.NoError(t, dbm.Set([]byte("k2"), []byte("v2"), true))

	rep := dbm.MakeReplicator()
	defer rep.Close()
	require.NoError(t, rep.Start(0, 0, 1))

	var entry client.ReplicateLog
	_, err := rep.Read(&entry)
	require.NoError(t, err)
	key, value := entry.Key, entry.Value

	// key and value may not grow into each other
	require.Equal(t, len(key), cap(key))

	// the next read does not touch the previous buffer
	_, err = rep.Read(&entry)
	require.NoError(t, err)
	require.Equal(t, "key", string(key))
	require.Equal(t, "value", string(value))
	require.Equal(t, "k2", string(entry.Key))
}

func TestTwoServersInOneProcess(t *testing.T) {
	first := startServer(t, common.ServerConfig{ServerID: 1})
	second := startServer(t, common.ServerConfig{ServerID: 2})
	a := connect(t, first.Addr())
	b := connect(t, second.Addr())

	require.NoError(t, a.Set([]byte("k"), []byte("first"), true))
	require.NoError(t, b.Set([]byte("k"), []byte("second"), true))

	value, err := a.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("first"), value)
	value, err = b.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("second"), value)
}
