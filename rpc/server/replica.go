package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/rpc/client"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var replicaLogger = logger.GetLogger("replica")

const (
	// retryInterval is the pause before reconnecting to the master
	retryInterval = time.Second
	// heartbeatSeconds is the wait time requested from the master
	heartbeatSeconds = 1.0
	// defaultReplicaTimeout is used if the server has no timeout configured
	defaultReplicaTimeout = 10 * time.Second
)

// replica follows the update log of a master and applies it to the local databases
type replica struct {
	server    *rpcServer
	transport transport.IRPCClientTransport

	mu     sync.Mutex
	master string
	cancel context.CancelFunc
	done   chan struct{}

	// applied is the timestamp of the last applied entry of the master
	applied atomic.Int64
}

func newReplica(s *rpcServer, t transport.IRPCClientTransport) *replica {
	return &replica{server: s, transport: t}
}

// status returns the current master (empty if none) and the last applied timestamp
func (r *replica) status() (string, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.master, r.applied.Load()
}

// changeMaster stops following the current master and starts following the
// new one. An empty master only stops.
func (r *replica) changeMaster(master string, timestampSkew float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		<-r.done
		r.cancel = nil
		replicaLogger.Infof("stopped following %s", r.master)
	}

	r.master = master
	if master == "" {
		return
	}
	if r.transport == nil {
		replicaLogger.Errorf("cannot follow %s: no client transport configured", master)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.follow(ctx, master, timestampSkew, r.done)
}

// follow replicates from master until ctx is done, reconnecting after failures
func (r *replica) follow(ctx context.Context, master string, timestampSkew float64, done chan struct{}) {
	defer close(done)
	replicaLogger.Infof("following %s", master)

	for {
		err := r.replicate(ctx, master, timestampSkew)
		if ctx.Err() != nil {
			return
		}
		replicaLogger.Warningf("replication from %s interrupted: %v", master, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryInterval):
		}
	}
}

// replicate runs one session with the master. It returns when the session fails.
func (r *replica) replicate(ctx context.Context, master string, timestampSkew float64) error {
	timeout := r.server.config.Timeout()
	if timeout <= 0 {
		timeout = defaultReplicaTimeout
	}

	config := common.ClientConfig{
		TimeoutSecond: timeout.Seconds(),
		Transport:     common.ClientTransportConfig{Endpoint: master},
	}
	dbm, err := client.Dial(config, r.transport)
	if err != nil {
		return err
	}
	defer dbm.Close()

	rep := dbm.MakeReplicator()
	defer rep.Close()
	stop := context.AfterFunc(ctx, rep.Cancel)
	defer stop()

	minTimestamp := r.applied.Load() - int64(timestampSkew*1000)
	if minTimestamp < 0 {
		minTimestamp = 0
	}
	if err := rep.Start(minTimestamp, r.server.config.ServerID, heartbeatSeconds); err != nil {
		return err
	}
	replicaLogger.Infof("replicating from %s (server %d) since %d", master, rep.GetMasterServerID(), minTimestamp)

	var entry client.ReplicateLog
	for {
		timestamp, err := rep.Read(&entry)
		if errors.Is(err, status.ErrInfeasible) {
			continue
		}
		if err != nil {
			return err
		}
		if err := r.apply(&entry); err != nil {
			return err
		}
		r.applied.Store(timestamp)
	}
}

// apply applies one entry of the master to the local database it belongs to
func (r *replica) apply(entry *client.ReplicateLog) error {
	var op store.LogOp
	switch entry.Op {
	case client.OpSet:
		op = store.LogOpSet
	case client.OpRemove:
		op = store.LogOpRemove
	case client.OpClear:
		op = store.LogOpClear
	default:
		return nil
	}

	dbm, err := r.server.dbm(entry.DBMIndex)
	if err != nil {
		return status.NewError(status.CodeBrokenData, fmt.Sprintf("update for unknown dbm %d", entry.DBMIndex))
	}
	return dbm.Apply(store.LogEntry{
		ServerID: entry.ServerID,
		DBMIndex: entry.DBMIndex,
		Op:       op,
		Key:      entry.Key,
		Value:    entry.Value,
	})
}
