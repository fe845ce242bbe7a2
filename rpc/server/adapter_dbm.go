package server

import (
	"context"
	"strconv"

	"github.com/ValentinKolb/rDBM/lib/status"
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/rpc/common"
	"google.golang.org/grpc/codes"
)

// unary registers a typed handler for a unary method
func unary[Req any](s *rpcServer, method string, handle func(ctx context.Context, req *Req) (any, error)) {
	s.transport.RegisterUnary(method, func(ctx context.Context, decode func(any) error) (any, error) {
		req := new(Req)
		if err := decode(req); err != nil {
			return nil, err
		}
		s.countCall(method)
		return handle(ctx, req)
	})
}

// withoutCtx adapts a handler that does not need the call context
func withoutCtx[Req any, Resp any](f func(req *Req) (*Resp, error)) func(context.Context, *Req) (any, error) {
	return func(_ context.Context, req *Req) (any, error) {
		return f(req)
	}
}

func (s *rpcServer) registerHandlers() {
	unary(s, common.MethodEcho, withoutCtx(s.echo))
	unary(s, common.MethodInspect, withoutCtx(s.inspect))
	unary(s, common.MethodGet, withoutCtx(s.get))
	unary(s, common.MethodGetMulti, withoutCtx(s.getMulti))
	unary(s, common.MethodSet, withoutCtx(s.set))
	unary(s, common.MethodSetMulti, withoutCtx(s.setMulti))
	unary(s, common.MethodRemove, withoutCtx(s.remove))
	unary(s, common.MethodRemoveMulti, withoutCtx(s.removeMulti))
	unary(s, common.MethodAppend, withoutCtx(s.append))
	unary(s, common.MethodAppendMulti, withoutCtx(s.appendMulti))
	unary(s, common.MethodCompareExchange, withoutCtx(s.compareExchange))
	unary(s, common.MethodIncrement, withoutCtx(s.increment))
	unary(s, common.MethodCompareExchangeMulti, withoutCtx(s.compareExchangeMulti))
	unary(s, common.MethodCount, withoutCtx(s.count))
	unary(s, common.MethodGetFileSize, withoutCtx(s.getFileSize))
	unary(s, common.MethodClear, withoutCtx(s.clear))
	unary(s, common.MethodRebuild, withoutCtx(s.rebuild))
	unary(s, common.MethodShouldBeRebuilt, withoutCtx(s.shouldBeRebuilt))
	unary(s, common.MethodSynchronize, withoutCtx(s.synchronize))
	unary(s, common.MethodSearch, withoutCtx(s.search))
	unary(s, common.MethodChangeMaster, withoutCtx(s.changeMaster))

	s.transport.RegisterStream(common.MethodStream, s.handleStream, true)
	s.transport.RegisterStream(common.MethodIterate, s.handleIterate, true)
	s.transport.RegisterStream(common.MethodReplicate, s.handleReplicate, false)
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// dbm returns the database with the given index. An invalid index is
// rejected as transport outcome, like any other malformed request.
func (s *rpcServer) dbm(index int32) (store.IStore, error) {
	if index < 0 || int(index) >= len(s.dbms) {
		return nil, status.NewTransportError(codes.InvalidArgument, "dbm_index is out of range")
	}
	return s.dbms[index], nil
}

func toRecords(pairs []common.BytesPair) []store.Record {
	records := make([]store.Record, len(pairs))
	for i, p := range pairs {
		records[i] = store.Record{Key: p.First, Value: p.Second}
	}
	return records
}

func toRecordStates(states []common.RecordState) []store.RecordState {
	out := make([]store.RecordState, len(states))
	for i, st := range states {
		out[i] = store.RecordState{Key: st.Key, State: store.State{Existence: st.Existence, Value: st.Value}}
	}
	return out
}

func toParams(pairs []common.StringPair) map[string]string {
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		params[p.First] = p.Second
	}
	return params
}

func toStringPairs(props []store.Property) []common.StringPair {
	pairs := make([]common.StringPair, len(props))
	for i, p := range props {
		pairs[i] = common.StringPair{First: p.Name, Second: p.Value}
	}
	return pairs
}

// --------------------------------------------------------------------------
// Server Methods
// --------------------------------------------------------------------------

func (s *rpcServer) echo(req *common.EchoRequest) (*common.EchoResponse, error) {
	return &common.EchoResponse{Echo: req.Message}, nil
}

func (s *rpcServer) inspect(req *common.InspectRequest) (*common.InspectResponse, error) {
	if req.DBMIndex < 0 {
		return &common.InspectResponse{Records: toStringPairs(s.serverProperties())}, nil
	}

	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	props, err := dbm.Inspect()
	return &common.InspectResponse{Status: common.StatusOf(err), Records: toStringPairs(props)}, nil
}

// serverProperties describes the whole server
func (s *rpcServer) serverProperties() []store.Property {
	props := []store.Property{
		{Name: "version", Value: Version},
		{Name: "server_id", Value: strconv.Itoa(int(s.config.ServerID))},
		{Name: "num_dbms", Value: strconv.Itoa(len(s.dbms))},
	}
	for i, dbm := range s.dbms {
		count, _ := dbm.Count()
		props = append(props, store.Property{Name: "dbm_" + strconv.Itoa(i) + "_count", Value: strconv.FormatInt(count, 10)})
	}

	master, applied := s.replica.status()
	props = append(props,
		store.Property{Name: "master", Value: master},
		store.Property{Name: "replica_timestamp", Value: strconv.FormatInt(applied, 10)},
		store.Property{Name: "update_log_size", Value: strconv.Itoa(s.updateLog.Len())},
		store.Property{Name: "last_timestamp", Value: strconv.FormatInt(s.updateLog.LastTimestamp(), 10)},
		store.Property{Name: "num_sessions", Value: strconv.Itoa(s.sessions.Size())},
	)
	return props
}

func (s *rpcServer) changeMaster(req *common.ChangeMasterRequest) (*common.ChangeMasterResponse, error) {
	s.replica.changeMaster(req.Master, req.TimestampSkew)
	return &common.ChangeMasterResponse{}, nil
}

// --------------------------------------------------------------------------
// Record Methods
// --------------------------------------------------------------------------

func (s *rpcServer) get(req *common.GetRequest) (*common.GetResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	value, err := dbm.Get(req.Key)
	resp := &common.GetResponse{Status: common.StatusOf(err)}
	if err == nil && !req.OmitValue {
		resp.Value = value
	}
	return resp, nil
}

func (s *rpcServer) getMulti(req *common.GetMultiRequest) (*common.GetMultiResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	records, err := dbm.GetMulti(req.Keys)
	resp := &common.GetMultiResponse{Status: common.StatusOf(err)}
	for _, r := range records {
		resp.Records = append(resp.Records, common.BytesPair{First: r.Key, Second: r.Value})
	}
	return resp, nil
}

func (s *rpcServer) set(req *common.SetRequest) (*common.SetResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.Set(req.Key, req.Value, req.Overwrite)
	return &common.SetResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) setMulti(req *common.SetMultiRequest) (*common.SetMultiResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.SetMulti(toRecords(req.Records), req.Overwrite)
	return &common.SetMultiResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) remove(req *common.RemoveRequest) (*common.RemoveResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.Remove(req.Key)
	return &common.RemoveResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) removeMulti(req *common.RemoveMultiRequest) (*common.RemoveMultiResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.RemoveMulti(req.Keys)
	return &common.RemoveMultiResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) append(req *common.AppendRequest) (*common.AppendResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.Append(req.Key, req.Value, req.Delim)
	return &common.AppendResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) appendMulti(req *common.AppendMultiRequest) (*common.AppendMultiResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.AppendMulti(toRecords(req.Records), req.Delim)
	return &common.AppendMultiResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) compareExchange(req *common.CompareExchangeRequest) (*common.CompareExchangeResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.CompareExchange(req.Key,
		store.State{Existence: req.ExpectedExistence, Value: req.ExpectedValue},
		store.State{Existence: req.DesiredExistence, Value: req.DesiredValue},
	)
	return &common.CompareExchangeResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) increment(req *common.IncrementRequest) (*common.IncrementResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	current, err := dbm.Increment(req.Key, req.Increment, req.Initial)
	return &common.IncrementResponse{Status: common.StatusOf(err), Current: current}, nil
}

func (s *rpcServer) compareExchangeMulti(req *common.CompareExchangeMultiRequest) (*common.CompareExchangeMultiResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.CompareExchangeMulti(toRecordStates(req.Expected), toRecordStates(req.Desired))
	return &common.CompareExchangeMultiResponse{Status: common.StatusOf(err)}, nil
}

// --------------------------------------------------------------------------
// Database Methods
// --------------------------------------------------------------------------

func (s *rpcServer) count(req *common.CountRequest) (*common.CountResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	n, err := dbm.Count()
	return &common.CountResponse{Status: common.StatusOf(err), Count: n}, nil
}

func (s *rpcServer) getFileSize(req *common.GetFileSizeRequest) (*common.GetFileSizeResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	size, err := dbm.GetFileSize()
	return &common.GetFileSizeResponse{Status: common.StatusOf(err), FileSize: size}, nil
}

func (s *rpcServer) clear(req *common.ClearRequest) (*common.ClearResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.Clear()
	return &common.ClearResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) rebuild(req *common.RebuildRequest) (*common.RebuildResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.Rebuild(toParams(req.Params))
	return &common.RebuildResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) shouldBeRebuilt(req *common.ShouldBeRebuiltRequest) (*common.ShouldBeRebuiltResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	tobe, err := dbm.ShouldBeRebuilt()
	return &common.ShouldBeRebuiltResponse{Status: common.StatusOf(err), Tobe: tobe}, nil
}

func (s *rpcServer) synchronize(req *common.SynchronizeRequest) (*common.SynchronizeResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	err = dbm.Synchronize(req.Hard, toParams(req.Params))
	return &common.SynchronizeResponse{Status: common.StatusOf(err)}, nil
}

func (s *rpcServer) search(req *common.SearchRequest) (*common.SearchResponse, error) {
	dbm, err := s.dbm(req.DBMIndex)
	if err != nil {
		return nil, err
	}
	matched, err := dbm.Search(req.Mode, req.Pattern, int(req.Capacity))
	return &common.SearchResponse{Status: common.StatusOf(err), Matched: matched}, nil
}
