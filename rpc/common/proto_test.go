package common

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/rDBM/lib/status"
)

func TestStatusProtoConversion(t *testing.T) {
	if err := (StatusProto{}).Err(); err != nil {
		t.Errorf("expected nil error for code 0, got %v", err)
	}

	sp := StatusOf(status.NewError(status.CodeNotFound, "missing"))
	if sp.Code != int32(status.CodeNotFound) || sp.Message != "missing" {
		t.Errorf("unexpected status proto %+v", sp)
	}

	err := sp.Err()
	if !errors.Is(err, status.ErrNotFound) {
		t.Errorf("expected NOT_FOUND after round trip, got %v", err)
	}

	if StatusOf(nil) != (StatusProto{}) {
		t.Errorf("expected zero status for nil error")
	}

	foreign := StatusOf(errors.New("disk on fire"))
	if foreign.Code != int32(status.CodeUnknown) || foreign.Message != "disk on fire" {
		t.Errorf("unexpected status for foreign error %+v", foreign)
	}
}

func TestFullMethod(t *testing.T) {
	if got := FullMethod(MethodGet); got != "/rdbm.DBMService/Get" {
		t.Errorf("unexpected method path %q", got)
	}
}

func TestOpStrings(t *testing.T) {
	if IterateOpJumpLower.String() != "JUMP_LOWER" {
		t.Errorf("unexpected name %s", IterateOpJumpLower)
	}
	if ReplicateOpNoop.String() != "NOOP" {
		t.Errorf("unexpected name %s", ReplicateOpNoop)
	}
	if IterateOp(42).String() != "IterateOp(42)" {
		t.Errorf("unexpected name %s", IterateOp(42))
	}
}
