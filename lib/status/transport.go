package status

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// --------------------------------------------------------------------------
// Transport outcome mapping
// --------------------------------------------------------------------------

// transportCodeNames holds the canonical upper-case names of the transport codes.
var transportCodeNames = map[codes.Code]string{
	codes.OK:                 "OK",
	codes.Canceled:           "CANCELLED",
	codes.Unknown:            "UNKNOWN",
	codes.InvalidArgument:    "INVALID_ARGUMENT",
	codes.DeadlineExceeded:   "DEADLINE_EXCEEDED",
	codes.NotFound:           "NOT_FOUND",
	codes.AlreadyExists:      "ALREADY_EXISTS",
	codes.PermissionDenied:   "PERMISSION_DENIED",
	codes.Unauthenticated:    "UNAUTHENTICATED",
	codes.ResourceExhausted:  "RESOURCE_EXHAUSTED",
	codes.FailedPrecondition: "FAILED_PRECONDITION",
	codes.Aborted:            "ABORTED",
	codes.OutOfRange:         "OUT_OF_RANGE",
	codes.Unimplemented:      "UNIMPLEMENTED",
	codes.Internal:           "INTERNAL",
	codes.Unavailable:        "UNAVAILABLE",
	codes.DataLoss:           "DATA_LOSS",
}

// TransportCodeName returns the upper-case name of a transport code.
func TransportCodeName(code codes.Code) string {
	if name, ok := transportCodeNames[code]; ok {
		return name
	}
	return "UNKNOWN"
}

// TransportString renders a transport outcome as "<CODE>: <message>" or just "<CODE>"
// when the message is empty. A nil error renders as "OK".
func TransportString(err error) string {
	if err == nil {
		return transportCodeNames[codes.OK]
	}
	st := transportStatus(err)
	name := TransportCodeName(st.Code())
	if st.Message() == "" {
		return name
	}
	return fmt.Sprintf("%s: %s", name, st.Message())
}

// FromTransport converts a failed transport call to a NETWORK error.
// A nil error yields nil.
func FromTransport(err error) error {
	if err == nil {
		return nil
	}
	return NewError(CodeNetwork, TransportString(err))
}

// FromTransportPrefixed converts a failed transport call to a NETWORK error whose
// message is prefixed, e.g. "Read failed: UNAVAILABLE: connection reset".
func FromTransportPrefixed(prefix string, err error) *Error {
	return NewError(CodeNetwork, fmt.Sprintf("%s: %s", prefix, TransportString(err)))
}

// NewTransportError creates an error that travels as a transport outcome instead
// of an application status. Server handlers use it to reject malformed calls.
func NewTransportError(code codes.Code, msg string) error {
	return grpcstatus.Error(code, msg)
}

// transportStatus extracts the transport status from an error.
// Plain context errors are mapped to their transport counterparts.
func transportStatus(err error) *grpcstatus.Status {
	if st, ok := grpcstatus.FromError(err); ok {
		return st
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.New(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.New(codes.Canceled, err.Error())
	}
	return grpcstatus.New(codes.Unknown, err.Error())
}
