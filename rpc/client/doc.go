// Package client implements the remote DBM client. A RemoteDBM is a session
// with one server; all point operations are sent through it as unary calls,
// while Stream, Iterator and Replicator handles keep a long-lived transport
// stream each.
//
// The package focuses on:
//   - The same operation surface as a local database (get/set/remove, batches,
//     compare-exchange, increment, iteration, update log tailing)
//   - A fresh deadline for every call, derived from the session timeout
//   - One unified error type (*status.Error) for transport and application failures
//
// Key Components:
//
//   - RemoteDBM: The session. Connect, Disconnect and SetDBMIndex take its lock
//     exclusively, every other call (including all handle calls) holds it shared.
//     Calling a point operation while disconnected fails with PRECONDITION_ERROR.
//
//   - Stream: Pipelines point operations over one duplex stream. Set, Remove,
//     Append and Increment can ignore the result, then the call returns after
//     the request is written and the server sends no answer.
//
//   - Iterator: A cursor kept by the server. The position is never cached by
//     the client. After Remove the cursor points to the following record.
//
//   - Replicator: Reads the update log of a server from a given timestamp. The
//     first frame of the server identifies it (GetMasterServerID).
//
// Handle Lifecycle:
//
// A handle is healthy when created on a connected session. Any failed write or
// read makes it unhealthy for good, as does Cancel; from then on every call
// fails with PRECONDITION_ERROR, never with NETWORK_ERROR. Failures of one
// handle never affect the session or other handles. Handles register with
// their session; closing the session clears their back-reference, after which
// their calls fail with PRECONDITION_ERROR as well. Close a handle when done:
// a healthy handle is half-closed gracefully, an unhealthy one only released.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport:     common.ClientTransportConfig{Endpoint: "localhost:1978"},
//	}
//
//	dbm, err := client.Dial(config, tcp.NewTCPClientTransport(serializer.NewGOBSerializer()))
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer dbm.Close()
//
//	_ = dbm.Set([]byte("one"), []byte("first"), true)
//	value, err := dbm.Get([]byte("one"))
//
//	// bulk load without waiting for answers
//	s := dbm.MakeStream()
//	for i := 0; i < 1000; i++ {
//	  _ = s.Set([]byte(strconv.Itoa(i)), []byte("v"), true, true)
//	}
//	_ = s.Close()
//
// Errors:
//
// Transport failures are returned as NETWORK_ERROR with the rendered transport
// status (e.g. "Read failed: UNAVAILABLE: connection reset"). Statuses sent by
// the server are returned as they are and can be compared with errors.Is
// against the sentinels of the status package, e.g. status.ErrNotFound.
// There are no automatic retries.
//
// Thread Safety:
//
//	A RemoteDBM can be used from many goroutines. A single handle must not be
//	used concurrently, except for Cancel which is safe at any time.
package client
