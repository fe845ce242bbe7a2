package server

import (
	"math"
	"time"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
)

// replicateOpOf maps an update log operation to the wire
func replicateOpOf(op store.LogOp) common.ReplicateOp {
	switch op {
	case store.LogOpSet:
		return common.ReplicateOpSet
	case store.LogOpRemove:
		return common.ReplicateOpRemove
	case store.LogOpClear:
		return common.ReplicateOpClear
	default:
		return common.ReplicateOpNoop
	}
}

// handleReplicate streams the update log from the requested timestamp.
// The first frame is a NOOP with the id of this server. Whenever the wait
// time passes without an update, a NOOP with an INFEASIBLE status is sent.
// The call ends when the client cancels it.
func (s *rpcServer) handleReplicate(stream transport.IServerStream) error {
	s.countCall(common.MethodReplicate)

	var req common.ReplicateRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	defer s.openSession("replicator")()

	heartbeat := func() *common.ReplicateResponse {
		return &common.ReplicateResponse{
			Op:        common.ReplicateOpNoop,
			ServerID:  s.config.ServerID,
			Timestamp: s.updateLog.LastTimestamp(),
		}
	}
	if err := stream.SendMsg(heartbeat()); err != nil {
		return err
	}

	wait := time.Duration(req.WaitTime * float64(time.Second))
	if wait <= 0 {
		wait = time.Duration(math.MaxInt64)
	}

	Logger.Debugf("replication to server %d started at %d", req.ServerID, req.MinTimestamp)
	reader := s.updateLog.NewReader(req.MinTimestamp, req.ServerID)
	ctx := stream.Context()

	for {
		entry, ok, err := reader.Read(ctx, wait)
		if err != nil {
			Logger.Debugf("replication to server %d ended: %v", req.ServerID, err)
			return nil
		}

		resp := heartbeat()
		if ok {
			resp = &common.ReplicateResponse{
				Timestamp: entry.Timestamp,
				ServerID:  entry.ServerID,
				DBMIndex:  entry.DBMIndex,
				Op:        replicateOpOf(entry.Op),
				Key:       entry.Key,
				Value:     entry.Value,
			}
		} else {
			resp.Status = common.StatusOf(status.NewError(status.CodeInfeasible, "no update"))
		}

		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
}
