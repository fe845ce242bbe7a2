package kv

import (
	"reflect"
	"testing"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"a=1", "b=", "c=x=y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]string{"a": "1", "b": "", "c": "x=y"}
	if !reflect.DeepEqual(params, want) {
		t.Errorf("expected %v, got %v", want, params)
	}

	if _, err := parseParams([]string{"novalue"}); err == nil {
		t.Error("expected an error for a parameter without '='")
	}
}
