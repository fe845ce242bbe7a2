package serve

import "testing"

func TestParseServerID(t *testing.T) {
	tests := []struct {
		id       string
		endpoint string
		want     int32
		wantErr  bool
	}{
		{"7", "", 7, false},
		{"0", "", 0, false},
		{"-3", "", 0, true},
	}
	for _, tt := range tests {
		got, err := parseServerID(tt.id, tt.endpoint)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseServerID(%q): unexpected error %v", tt.id, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseServerID(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}

	// names are hashed into a stable positive id
	a, _ := parseServerID("node-1", "")
	b, _ := parseServerID("node-1", "")
	c, _ := parseServerID("node-2", "")
	if a <= 0 || a != b {
		t.Errorf("expected a stable positive id, got %d and %d", a, b)
	}
	if a == c {
		t.Errorf("expected different ids for different names, got %d", a)
	}

	// the endpoint is used without an id
	e, _ := parseServerID("", "0.0.0.0:1978")
	if e <= 0 {
		t.Errorf("expected a positive id for the endpoint, got %d", e)
	}
}
