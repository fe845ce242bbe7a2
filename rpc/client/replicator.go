package client

import (
	"errors"
	"io"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
)

// OpType is the kind of change of a ReplicateLog
type OpType int32

const (
	OpVoid   OpType = iota // no change, or an unknown kind
	OpSet                  // a record was set
	OpRemove               // a record was removed
	OpClear                // all records were removed
)

func (o OpType) String() string {
	switch o {
	case OpSet:
		return "SET"
	case OpRemove:
		return "REMOVE"
	case OpClear:
		return "CLEAR"
	default:
		return "VOID"
	}
}

// opTypeOf maps a wire operation. Unknown kinds become OpVoid.
func opTypeOf(op common.ReplicateOp) OpType {
	switch op {
	case common.ReplicateOpSet:
		return OpSet
	case common.ReplicateOpRemove:
		return OpRemove
	case common.ReplicateOpClear:
		return OpClear
	default:
		return OpVoid
	}
}

// ReplicateLog is one entry of the update log of a server.
// Key and Value share one buffer owned by the entry, which is replaced by
// every Read. Keep copies if they must outlive the next Read.
type ReplicateLog struct {
	Op       OpType
	ServerID int32
	DBMIndex int32
	Key      []byte
	Value    []byte
}

// fill replaces the content of the entry with a fresh buffer holding key and value
func (l *ReplicateLog) fill(op OpType, serverID, dbmIndex int32, key, value []byte) {
	buf := make([]byte, len(key)+len(value))
	n := copy(buf, key)
	copy(buf[n:], value)

	l.Op = op
	l.ServerID = serverID
	l.DBMIndex = dbmIndex
	l.Key = buf[:n:n]
	l.Value = buf[n:]
}

// Replicator reads the update log of a server.
// A Replicator must not be used by several goroutines at once, except for Cancel.
type Replicator struct {
	handle
	stream         transport.IServerStreamReader
	started        bool
	masterServerID int32
}

// MakeReplicator creates a replicator. It opens no stream until Start.
func (d *RemoteDBM) MakeReplicator() *Replicator {
	r := &Replicator{masterServerID: -1}
	r.init("replicator", d)
	return r
}

// Close releases the replicator. The stream of a started replicator is cancelled.
func (r *Replicator) Close() error {
	return r.release(nil)
}

// GetMasterServerID returns the server id of the master, or -1 before Start
func (r *Replicator) GetMasterServerID() int32 {
	return r.masterServerID
}

// Start opens the log stream at minTimestamp (unix milliseconds). Entries
// originating from serverID are skipped by the server. If no update arrives
// for waitTime seconds the server sends an empty entry with an INFEASIBLE
// status; a non-positive waitTime waits forever.
func (r *Replicator) Start(minTimestamp int64, serverID int32, waitTime float64) error {
	d := r.dbm.Load()
	if d == nil {
		return errNotConnected()
	}
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.mu.RUnlock()

	if r.started {
		return status.NewError(status.CodePrecondition, "started replicator")
	}
	if !r.Healthy() {
		return r.errUnhealthy()
	}

	countCall(common.MethodReplicate)
	stop := r.arm(d.timeout)
	defer stop()

	req := &common.ReplicateRequest{MinTimestamp: minTimestamp, ServerID: serverID, WaitTime: waitTime}
	stream, err := d.channel.NewServerStream(r.ctx, common.MethodReplicate, req)
	if err != nil {
		return r.fail("Open failed", err)
	}
	r.stream = stream
	r.started = true

	var first common.ReplicateResponse
	if err := stream.Recv(&first); err != nil {
		return r.fail("Read failed", r.finalOutcome(err))
	}
	if first.Op != common.ReplicateOpNoop {
		if r.leave(stateBroken) {
			poisonedHandles.Inc()
		}
		r.cancel()
		return status.NewError(status.CodeBrokenData, "invalid operation type")
	}

	r.masterServerID = first.ServerID
	Logger.Debugf("replicator started at %d, master server id %d", minTimestamp, first.ServerID)
	return nil
}

// Read waits for the next log entry and fills entry with it. It returns the
// timestamp of the entry and its embedded status: INFEASIBLE when the wait
// time passed without an update (the entry is then OpVoid).
func (r *Replicator) Read(entry *ReplicateLog) (int64, error) {
	d := r.dbm.Load()
	if d == nil {
		return 0, errNotConnected()
	}
	if err := d.acquire(); err != nil {
		return 0, err
	}
	defer d.mu.RUnlock()

	if !r.started {
		return 0, status.NewError(status.CodePrecondition, "not started replicator")
	}
	if !r.Healthy() {
		return 0, r.errUnhealthy()
	}

	stop := r.arm(d.timeout)
	defer stop()

	var resp common.ReplicateResponse
	if err := r.stream.Recv(&resp); err != nil {
		return 0, r.fail("Read failed", r.finalOutcome(err))
	}

	entry.fill(opTypeOf(resp.Op), resp.ServerID, resp.DBMIndex, resp.Key, resp.Value)
	return resp.Timestamp, resp.Status.Err()
}

// finalOutcome returns the final status of the stream after a failed read
func (r *Replicator) finalOutcome(err error) error {
	if errors.Is(err, io.EOF) {
		return r.stream.Finish()
	}
	return err
}
