package common

import (
	"fmt"

	"github.com/ValentinKolb/rDBM/lib/status"
)

// --------------------------------------------------------------------------
// Service Definition
// --------------------------------------------------------------------------

// ServiceName is the fully qualified name of the DBM service
const ServiceName = "rdbm.DBMService"

// Method names of the DBM service
const (
	MethodEcho                 = "Echo"
	MethodInspect              = "Inspect"
	MethodGet                  = "Get"
	MethodGetMulti             = "GetMulti"
	MethodSet                  = "Set"
	MethodSetMulti             = "SetMulti"
	MethodRemove               = "Remove"
	MethodRemoveMulti          = "RemoveMulti"
	MethodAppend               = "Append"
	MethodAppendMulti          = "AppendMulti"
	MethodCompareExchange      = "CompareExchange"
	MethodIncrement            = "Increment"
	MethodCompareExchangeMulti = "CompareExchangeMulti"
	MethodCount                = "Count"
	MethodGetFileSize          = "GetFileSize"
	MethodClear                = "Clear"
	MethodRebuild              = "Rebuild"
	MethodShouldBeRebuilt      = "ShouldBeRebuilt"
	MethodSynchronize          = "Synchronize"
	MethodSearch               = "Search"
	MethodChangeMaster         = "ChangeMaster"
	MethodStream               = "Stream"
	MethodIterate              = "Iterate"
	MethodReplicate            = "Replicate"
)

// FullMethod returns the path of a method as used on the wire (e.g. "/rdbm.DBMService/Get")
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// --------------------------------------------------------------------------
// Shared Message Parts
// --------------------------------------------------------------------------

// StatusProto is the application status embedded in every response.
// Code 0 means success.
type StatusProto struct {
	Code    int32  `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Err converts the embedded status to an error (nil on success)
func (s StatusProto) Err() error {
	return status.FromCode(status.Code(s.Code), s.Message)
}

// StatusOf converts an error to an embedded status
func StatusOf(err error) StatusProto {
	if err == nil {
		return StatusProto{}
	}
	return StatusProto{
		Code:    int32(status.CodeOf(err)),
		Message: status.MessageOf(err),
	}
}

// StringPair is a generic string key/value pair (inspection records, parameters)
type StringPair struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// BytesPair is a key/value record
type BytesPair struct {
	First  []byte `json:"first"`
	Second []byte `json:"second"`
}

// RecordState is a key with an optional value.
// Existence=false means the record is absent, which is different from an empty value.
type RecordState struct {
	Key       []byte `json:"key"`
	Existence bool   `json:"existence,omitempty"`
	Value     []byte `json:"value,omitempty"`
}

// --------------------------------------------------------------------------
// Unary Messages
// --------------------------------------------------------------------------

type EchoRequest struct {
	Message string `json:"message"`
}

type EchoResponse struct {
	Echo string `json:"echo"`
}

type InspectRequest struct {
	DBMIndex int32 `json:"dbm_index"`
}

type InspectResponse struct {
	Status  StatusProto  `json:"status"`
	Records []StringPair `json:"records,omitempty"`
}

type GetRequest struct {
	DBMIndex  int32  `json:"dbm_index"`
	Key       []byte `json:"key"`
	OmitValue bool   `json:"omit_value,omitempty"`
}

type GetResponse struct {
	Status StatusProto `json:"status"`
	Value  []byte      `json:"value,omitempty"`
}

type GetMultiRequest struct {
	DBMIndex int32    `json:"dbm_index"`
	Keys     [][]byte `json:"keys"`
}

type GetMultiResponse struct {
	Status  StatusProto `json:"status"`
	Records []BytesPair `json:"records,omitempty"`
}

type SetRequest struct {
	DBMIndex  int32  `json:"dbm_index"`
	Key       []byte `json:"key"`
	Value     []byte `json:"value"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

type SetResponse struct {
	Status StatusProto `json:"status"`
}

type SetMultiRequest struct {
	DBMIndex  int32       `json:"dbm_index"`
	Records   []BytesPair `json:"records"`
	Overwrite bool        `json:"overwrite,omitempty"`
}

type SetMultiResponse struct {
	Status StatusProto `json:"status"`
}

type RemoveRequest struct {
	DBMIndex int32  `json:"dbm_index"`
	Key      []byte `json:"key"`
}

type RemoveResponse struct {
	Status StatusProto `json:"status"`
}

type RemoveMultiRequest struct {
	DBMIndex int32    `json:"dbm_index"`
	Keys     [][]byte `json:"keys"`
}

type RemoveMultiResponse struct {
	Status StatusProto `json:"status"`
}

type AppendRequest struct {
	DBMIndex int32  `json:"dbm_index"`
	Key      []byte `json:"key"`
	Value    []byte `json:"value"`
	Delim    []byte `json:"delim,omitempty"`
}

type AppendResponse struct {
	Status StatusProto `json:"status"`
}

type AppendMultiRequest struct {
	DBMIndex int32       `json:"dbm_index"`
	Records  []BytesPair `json:"records"`
	Delim    []byte      `json:"delim,omitempty"`
}

type AppendMultiResponse struct {
	Status StatusProto `json:"status"`
}

type CompareExchangeRequest struct {
	DBMIndex          int32  `json:"dbm_index"`
	Key               []byte `json:"key"`
	ExpectedExistence bool   `json:"expected_existence,omitempty"`
	ExpectedValue     []byte `json:"expected_value,omitempty"`
	DesiredExistence  bool   `json:"desired_existence,omitempty"`
	DesiredValue      []byte `json:"desired_value,omitempty"`
}

type CompareExchangeResponse struct {
	Status StatusProto `json:"status"`
}

type IncrementRequest struct {
	DBMIndex  int32  `json:"dbm_index"`
	Key       []byte `json:"key"`
	Increment int64  `json:"increment"`
	Initial   int64  `json:"initial"`
}

type IncrementResponse struct {
	Status  StatusProto `json:"status"`
	Current int64       `json:"current"`
}

type CompareExchangeMultiRequest struct {
	DBMIndex int32         `json:"dbm_index"`
	Expected []RecordState `json:"expected"`
	Desired  []RecordState `json:"desired"`
}

type CompareExchangeMultiResponse struct {
	Status StatusProto `json:"status"`
}

type CountRequest struct {
	DBMIndex int32 `json:"dbm_index"`
}

type CountResponse struct {
	Status StatusProto `json:"status"`
	Count  int64       `json:"count"`
}

type GetFileSizeRequest struct {
	DBMIndex int32 `json:"dbm_index"`
}

type GetFileSizeResponse struct {
	Status   StatusProto `json:"status"`
	FileSize int64       `json:"file_size"`
}

type ClearRequest struct {
	DBMIndex int32 `json:"dbm_index"`
}

type ClearResponse struct {
	Status StatusProto `json:"status"`
}

type RebuildRequest struct {
	DBMIndex int32        `json:"dbm_index"`
	Params   []StringPair `json:"params,omitempty"`
}

type RebuildResponse struct {
	Status StatusProto `json:"status"`
}

type ShouldBeRebuiltRequest struct {
	DBMIndex int32 `json:"dbm_index"`
}

type ShouldBeRebuiltResponse struct {
	Status StatusProto `json:"status"`
	Tobe   bool        `json:"tobe"`
}

type SynchronizeRequest struct {
	DBMIndex int32        `json:"dbm_index"`
	Hard     bool         `json:"hard,omitempty"`
	Params   []StringPair `json:"params,omitempty"`
}

type SynchronizeResponse struct {
	Status StatusProto `json:"status"`
}

type SearchRequest struct {
	DBMIndex int32  `json:"dbm_index"`
	Mode     string `json:"mode"`
	Pattern  []byte `json:"pattern"`
	Capacity int32  `json:"capacity,omitempty"`
}

type SearchResponse struct {
	Status  StatusProto `json:"status"`
	Matched [][]byte    `json:"matched,omitempty"`
}

type ChangeMasterRequest struct {
	Master        string  `json:"master"`
	TimestampSkew float64 `json:"timestamp_skew,omitempty"`
}

type ChangeMasterResponse struct {
	Status StatusProto `json:"status"`
}

// --------------------------------------------------------------------------
// Stream Messages
// --------------------------------------------------------------------------

// StreamRequest carries exactly one operation of a pipelined stream.
// If OmitResponse is set, the server must not send a response frame.
type StreamRequest struct {
	Echo            *EchoRequest            `json:"echo,omitempty"`
	Get             *GetRequest             `json:"get,omitempty"`
	Set             *SetRequest             `json:"set,omitempty"`
	Remove          *RemoveRequest          `json:"remove,omitempty"`
	Append          *AppendRequest          `json:"append,omitempty"`
	CompareExchange *CompareExchangeRequest `json:"compare_exchange,omitempty"`
	Increment       *IncrementRequest       `json:"increment,omitempty"`
	OmitResponse    bool                    `json:"omit_response,omitempty"`
}

// StreamResponse carries the result of the operation of the matching StreamRequest
type StreamResponse struct {
	Echo            *EchoResponse            `json:"echo,omitempty"`
	Get             *GetResponse             `json:"get,omitempty"`
	Set             *SetResponse             `json:"set,omitempty"`
	Remove          *RemoveResponse          `json:"remove,omitempty"`
	Append          *AppendResponse          `json:"append,omitempty"`
	CompareExchange *CompareExchangeResponse `json:"compare_exchange,omitempty"`
	Increment       *IncrementResponse       `json:"increment,omitempty"`
}

// --------------------------------------------------------------------------
// Iterator Messages
// --------------------------------------------------------------------------

// IterateOp is the cursor operation of an IterateRequest
type IterateOp int32

const (
	IterateOpNone IterateOp = iota
	IterateOpFirst
	IterateOpLast
	IterateOpJump
	IterateOpJumpLower
	IterateOpJumpUpper
	IterateOpNext
	IterateOpPrevious
	IterateOpGet
	IterateOpSet
	IterateOpRemove
)

func (o IterateOp) String() string {
	switch o {
	case IterateOpNone:
		return "NONE"
	case IterateOpFirst:
		return "FIRST"
	case IterateOpLast:
		return "LAST"
	case IterateOpJump:
		return "JUMP"
	case IterateOpJumpLower:
		return "JUMP_LOWER"
	case IterateOpJumpUpper:
		return "JUMP_UPPER"
	case IterateOpNext:
		return "NEXT"
	case IterateOpPrevious:
		return "PREVIOUS"
	case IterateOpGet:
		return "GET"
	case IterateOpSet:
		return "SET"
	case IterateOpRemove:
		return "REMOVE"
	default:
		return fmt.Sprintf("IterateOp(%d)", int32(o))
	}
}

type IterateRequest struct {
	DBMIndex      int32     `json:"dbm_index"`
	Operation     IterateOp `json:"operation"`
	Key           []byte    `json:"key,omitempty"`
	Value         []byte    `json:"value,omitempty"`
	JumpInclusive bool      `json:"jump_inclusive,omitempty"`
	OmitKey       bool      `json:"omit_key,omitempty"`
	OmitValue     bool      `json:"omit_value,omitempty"`
}

type IterateResponse struct {
	Status StatusProto `json:"status"`
	Key    []byte      `json:"key,omitempty"`
	Value  []byte      `json:"value,omitempty"`
}

// --------------------------------------------------------------------------
// Replication Messages
// --------------------------------------------------------------------------

// ReplicateOp is the kind of change carried by a ReplicateResponse
type ReplicateOp int32

const (
	ReplicateOpNoop ReplicateOp = iota
	ReplicateOpSet
	ReplicateOpRemove
	ReplicateOpClear
)

func (o ReplicateOp) String() string {
	switch o {
	case ReplicateOpNoop:
		return "NOOP"
	case ReplicateOpSet:
		return "SET"
	case ReplicateOpRemove:
		return "REMOVE"
	case ReplicateOpClear:
		return "CLEAR"
	default:
		return fmt.Sprintf("ReplicateOp(%d)", int32(o))
	}
}

type ReplicateRequest struct {
	MinTimestamp int64   `json:"min_timestamp"`
	ServerID     int32   `json:"server_id"`
	WaitTime     float64 `json:"wait_time,omitempty"`
}

type ReplicateResponse struct {
	Status    StatusProto `json:"status"`
	Timestamp int64       `json:"timestamp"`
	ServerID  int32       `json:"server_id"`
	DBMIndex  int32       `json:"dbm_index"`
	Op        ReplicateOp `json:"op_type"`
	Key       []byte      `json:"key,omitempty"`
	Value     []byte      `json:"value,omitempty"`
}
