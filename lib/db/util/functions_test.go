package util

import "testing"

func TestHashString(t *testing.T) {
	// FNV-1a reference values with a zero seed
	tests := []struct {
		in   string
		want UintKey
	}{
		{"", 14695981039346656037},
		{"a", 0xaf63dc4c8601ec8c},
	}
	for _, tt := range tests {
		if got := HashString(tt.in, 0); got != tt.want {
			t.Errorf("HashString(%q) = %#x, want %#x", tt.in, uint64(got), uint64(tt.want))
		}
	}

	if HashString("node-1", 0) == HashString("node-1", 1) {
		t.Error("expected the seed to change the hash")
	}
}
