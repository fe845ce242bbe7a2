package client

import (
	"github.com/ValentinKolb/rDBM/lib/store"
	"github.com/ValentinKolb/rDBM/rpc/common"
)

// KeyState is a key with an expected or desired value for compare-exchange.
// A nil Value means the record is absent, an empty non-nil Value is an empty record.
type KeyState struct {
	Key   []byte
	Value []byte
}

// existence reports whether a value stands for an existing record
func existence(value []byte) bool {
	return value != nil
}

// nonNil turns a missing value of an existing record into an empty one
func nonNil(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	return value
}

func toBytesPairs(records map[string][]byte) []common.BytesPair {
	pairs := make([]common.BytesPair, 0, len(records))
	for k, v := range records {
		pairs = append(pairs, common.BytesPair{First: []byte(k), Second: v})
	}
	return pairs
}

func toStringPairs(params map[string]string) []common.StringPair {
	if len(params) == 0 {
		return nil
	}
	pairs := make([]common.StringPair, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, common.StringPair{First: k, Second: v})
	}
	return pairs
}

func toRecordStates(states []KeyState) []common.RecordState {
	out := make([]common.RecordState, len(states))
	for i, s := range states {
		out[i] = common.RecordState{Key: s.Key, Existence: existence(s.Value), Value: s.Value}
	}
	return out
}

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Echo sends a message to the server and returns the echoed message
func (d *RemoteDBM) Echo(message string) (string, error) {
	var resp common.EchoResponse
	err := d.unary(common.MethodEcho, func(int32) any {
		return &common.EchoRequest{Message: message}
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Echo, nil
}

// Inspect returns the properties of the selected database, or of the whole
// server when the selected index is negative.
func (d *RemoteDBM) Inspect() ([]store.Property, error) {
	var resp common.InspectResponse
	err := d.unary(common.MethodInspect, func(idx int32) any {
		return &common.InspectRequest{DBMIndex: idx}
	}, &resp)
	if err != nil {
		return nil, err
	}

	props := make([]store.Property, 0, len(resp.Records))
	for _, r := range resp.Records {
		props = append(props, store.Property{Name: r.First, Value: r.Second})
	}
	return props, nil
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Get returns the value of a record
func (d *RemoteDBM) Get(key []byte) ([]byte, error) {
	var resp common.GetResponse
	err := d.unary(common.MethodGet, func(idx int32) any {
		return &common.GetRequest{DBMIndex: idx, Key: key}
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.Status.Err(); err != nil {
		return nil, err
	}
	return nonNil(resp.Value), nil
}

// Check reports whether a record exists (nil) without transferring its value
func (d *RemoteDBM) Check(key []byte) error {
	var resp common.GetResponse
	err := d.unary(common.MethodGet, func(idx int32) any {
		return &common.GetRequest{DBMIndex: idx, Key: key, OmitValue: true}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// GetMulti returns the records of the given keys. Missing keys are left out
// of the result and reported with a NOT_FOUND status along with the found records.
func (d *RemoteDBM) GetMulti(keys [][]byte) (map[string][]byte, error) {
	var resp common.GetMultiResponse
	err := d.unary(common.MethodGetMulti, func(idx int32) any {
		return &common.GetMultiRequest{DBMIndex: idx, Keys: keys}
	}, &resp)
	if err != nil {
		return nil, err
	}

	records := make(map[string][]byte, len(resp.Records))
	for _, r := range resp.Records {
		records[string(r.First)] = nonNil(r.Second)
	}
	return records, resp.Status.Err()
}

// Set stores a record. If overwrite is false and the record exists, a
// DUPLICATION status is returned and the record is kept.
func (d *RemoteDBM) Set(key, value []byte, overwrite bool) error {
	var resp common.SetResponse
	err := d.unary(common.MethodSet, func(idx int32) any {
		return &common.SetRequest{DBMIndex: idx, Key: key, Value: value, Overwrite: overwrite}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// SetMulti stores several records, see Set
func (d *RemoteDBM) SetMulti(records map[string][]byte, overwrite bool) error {
	var resp common.SetMultiResponse
	err := d.unary(common.MethodSetMulti, func(idx int32) any {
		return &common.SetMultiRequest{DBMIndex: idx, Records: toBytesPairs(records), Overwrite: overwrite}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// Remove removes a record
func (d *RemoteDBM) Remove(key []byte) error {
	var resp common.RemoveResponse
	err := d.unary(common.MethodRemove, func(idx int32) any {
		return &common.RemoveRequest{DBMIndex: idx, Key: key}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// RemoveMulti removes several records
func (d *RemoteDBM) RemoveMulti(keys [][]byte) error {
	var resp common.RemoveMultiResponse
	err := d.unary(common.MethodRemoveMulti, func(idx int32) any {
		return &common.RemoveMultiRequest{DBMIndex: idx, Keys: keys}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// Append appends a value to a record, separated by delim if the record exists
func (d *RemoteDBM) Append(key, value, delim []byte) error {
	var resp common.AppendResponse
	err := d.unary(common.MethodAppend, func(idx int32) any {
		return &common.AppendRequest{DBMIndex: idx, Key: key, Value: value, Delim: delim}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// AppendMulti appends to several records, see Append
func (d *RemoteDBM) AppendMulti(records map[string][]byte, delim []byte) error {
	var resp common.AppendMultiResponse
	err := d.unary(common.MethodAppendMulti, func(idx int32) any {
		return &common.AppendMultiRequest{DBMIndex: idx, Records: toBytesPairs(records), Delim: delim}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// CompareExchange replaces the record if its current state equals expected.
// A nil expected value expects the record to be absent, a nil desired value
// removes it. On mismatch an INFEASIBLE status is returned.
func (d *RemoteDBM) CompareExchange(key, expected, desired []byte) error {
	var resp common.CompareExchangeResponse
	err := d.unary(common.MethodCompareExchange, func(idx int32) any {
		return &common.CompareExchangeRequest{
			DBMIndex:          idx,
			Key:               key,
			ExpectedExistence: existence(expected),
			ExpectedValue:     expected,
			DesiredExistence:  existence(desired),
			DesiredValue:      desired,
		}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// Increment adds increment to the numeric record and returns the new value.
// initial is used when the record does not exist. The current value is
// returned even when the status is an error.
func (d *RemoteDBM) Increment(key []byte, increment, initial int64) (int64, error) {
	var resp common.IncrementResponse
	err := d.unary(common.MethodIncrement, func(idx int32) any {
		return &common.IncrementRequest{DBMIndex: idx, Key: key, Increment: increment, Initial: initial}
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Current, resp.Status.Err()
}

// CompareExchangeMulti applies all desired states if all expected states
// match, otherwise nothing is changed and an INFEASIBLE status is returned.
func (d *RemoteDBM) CompareExchangeMulti(expected, desired []KeyState) error {
	var resp common.CompareExchangeMultiResponse
	err := d.unary(common.MethodCompareExchangeMulti, func(idx int32) any {
		return &common.CompareExchangeMultiRequest{
			DBMIndex: idx,
			Expected: toRecordStates(expected),
			Desired:  toRecordStates(desired),
		}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

// Count returns the number of records
func (d *RemoteDBM) Count() (int64, error) {
	var resp common.CountResponse
	err := d.unary(common.MethodCount, func(idx int32) any {
		return &common.CountRequest{DBMIndex: idx}
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Count, resp.Status.Err()
}

// GetFileSize returns the size of the database in bytes
func (d *RemoteDBM) GetFileSize() (int64, error) {
	var resp common.GetFileSizeResponse
	err := d.unary(common.MethodGetFileSize, func(idx int32) any {
		return &common.GetFileSizeRequest{DBMIndex: idx}
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.FileSize, resp.Status.Err()
}

// Clear removes all records
func (d *RemoteDBM) Clear() error {
	var resp common.ClearResponse
	err := d.unary(common.MethodClear, func(idx int32) any {
		return &common.ClearRequest{DBMIndex: idx}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// Rebuild rebuilds the database. The params are passed to the server as is.
func (d *RemoteDBM) Rebuild(params map[string]string) error {
	var resp common.RebuildResponse
	err := d.unary(common.MethodRebuild, func(idx int32) any {
		return &common.RebuildRequest{DBMIndex: idx, Params: toStringPairs(params)}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// ShouldBeRebuilt reports whether a rebuild would improve the database
func (d *RemoteDBM) ShouldBeRebuilt() (bool, error) {
	var resp common.ShouldBeRebuiltResponse
	err := d.unary(common.MethodShouldBeRebuilt, func(idx int32) any {
		return &common.ShouldBeRebuiltRequest{DBMIndex: idx}
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Tobe, resp.Status.Err()
}

// Synchronize persists the database. The params are passed to the server as is.
func (d *RemoteDBM) Synchronize(hard bool, params map[string]string) error {
	var resp common.SynchronizeResponse
	err := d.unary(common.MethodSynchronize, func(idx int32) any {
		return &common.SynchronizeRequest{DBMIndex: idx, Hard: hard, Params: toStringPairs(params)}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}

// SearchModal returns up to capacity keys matching the pattern in the given
// mode (e.g. "begin", "regex"). A capacity of 0 means no limit.
func (d *RemoteDBM) SearchModal(mode string, pattern []byte, capacity int) ([][]byte, error) {
	var resp common.SearchResponse
	err := d.unary(common.MethodSearch, func(idx int32) any {
		return &common.SearchRequest{DBMIndex: idx, Mode: mode, Pattern: pattern, Capacity: int32(capacity)}
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := resp.Status.Err(); err != nil {
		return nil, err
	}
	return resp.Matched, nil
}

// ChangeMaster makes the server a replica of master, or a master if master is empty.
// The timestamp skew in seconds is subtracted from the resume point.
func (d *RemoteDBM) ChangeMaster(master string, timestampSkew float64) error {
	var resp common.ChangeMasterResponse
	err := d.unary(common.MethodChangeMaster, func(int32) any {
		return &common.ChangeMasterRequest{Master: master, TimestampSkew: timestampSkew}
	}, &resp)
	if err != nil {
		return err
	}
	return resp.Status.Err()
}
