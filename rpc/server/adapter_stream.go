package server

import (
	"errors"
	"io"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"github.com/ValentinKolb/rDBM/rpc/transport"
	"google.golang.org/grpc/codes"
)

// recv reads the next request. done is true when the client half-closed the stream.
func recv(stream transport.IServerStream, req any) (done bool, err error) {
	if err := stream.RecvMsg(req); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// --------------------------------------------------------------------------
// Stream
// --------------------------------------------------------------------------

// handleStream answers point operations in the order they arrive until the
// client half-closes. Requests with OmitResponse are not answered.
func (s *rpcServer) handleStream(stream transport.IServerStream) error {
	s.countCall(common.MethodStream)
	defer s.openSession("stream")()

	for {
		var req common.StreamRequest
		if done, err := recv(stream, &req); done || err != nil {
			return err
		}

		resp, err := s.streamOp(&req)
		if err != nil {
			return err
		}
		if req.OmitResponse {
			continue
		}
		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
}

// streamOp runs the one operation of a stream request
func (s *rpcServer) streamOp(req *common.StreamRequest) (*common.StreamResponse, error) {
	resp := &common.StreamResponse{}
	var err error

	switch {
	case req.Echo != nil:
		resp.Echo, err = s.echo(req.Echo)
	case req.Get != nil:
		resp.Get, err = s.get(req.Get)
	case req.Set != nil:
		resp.Set, err = s.set(req.Set)
	case req.Remove != nil:
		resp.Remove, err = s.remove(req.Remove)
	case req.Append != nil:
		resp.Append, err = s.append(req.Append)
	case req.CompareExchange != nil:
		resp.CompareExchange, err = s.compareExchange(req.CompareExchange)
	case req.Increment != nil:
		resp.Increment, err = s.increment(req.Increment)
	default:
		return nil, status.NewTransportError(codes.InvalidArgument, "no operation in stream request")
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

// --------------------------------------------------------------------------
// Iterate
// --------------------------------------------------------------------------

// handleIterate keeps one cursor per call. The cursor is created on the first
// request and again whenever the client switches the database.
func (s *rpcServer) handleIterate(stream transport.IServerStream) error {
	s.countCall(common.MethodIterate)
	defer s.openSession("iterator")()

	var cur store.ICursor
	curIndex := int32(-1)

	for {
		var req common.IterateRequest
		if done, err := recv(stream, &req); done || err != nil {
			return err
		}

		if cur == nil || req.DBMIndex != curIndex {
			dbm, err := s.dbm(req.DBMIndex)
			if err != nil {
				return err
			}
			c, err := dbm.NewCursor()
			if err != nil {
				if err := stream.SendMsg(&common.IterateResponse{Status: common.StatusOf(err)}); err != nil {
					return err
				}
				continue
			}
			cur, curIndex = c, req.DBMIndex
		}

		if err := stream.SendMsg(iterateOp(cur, &req)); err != nil {
			return err
		}
	}
}

// iterateOp runs one cursor operation
func iterateOp(cur store.ICursor, req *common.IterateRequest) *common.IterateResponse {
	resp := &common.IterateResponse{}
	var err error

	switch req.Operation {
	case common.IterateOpFirst:
		err = cur.First()
	case common.IterateOpLast:
		err = cur.Last()
	case common.IterateOpJump:
		err = cur.Jump(req.Key)
	case common.IterateOpJumpLower:
		err = cur.JumpLower(req.Key, req.JumpInclusive)
	case common.IterateOpJumpUpper:
		err = cur.JumpUpper(req.Key, req.JumpInclusive)
	case common.IterateOpNext:
		err = cur.Next()
	case common.IterateOpPrevious:
		err = cur.Previous()
	case common.IterateOpGet:
		var key, value []byte
		key, value, err = cur.Get()
		if err == nil {
			if !req.OmitKey {
				resp.Key = key
			}
			if !req.OmitValue {
				resp.Value = value
			}
		}
	case common.IterateOpSet:
		err = cur.Set(req.Value)
	case common.IterateOpRemove:
		err = cur.Remove()
	default:
		err = status.Errorf(status.CodeInvalidArgument, "invalid operation: %s", req.Operation)
	}

	resp.Status = common.StatusOf(err)
	return resp
}
