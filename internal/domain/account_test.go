package domain

import (
	"encoding/json"
	"testing"
)

func TestAccountID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    AccountID
		wantErr bool
	}{
		{name: "integer", input: `42`, want: "42"},
		{name: "numeric string", input: `"42"`, want: "42"},
		{name: "uuid string", input: `"6f1c2a9e-0b7d-4c52-9d57-1c1e3b3f0a11"`, want: "6f1c2a9e-0b7d-4c52-9d57-1c1e3b3f0a11"},
		{name: "fraction rejected", input: `4.2`, wantErr: true},
		{name: "object rejected", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id AccountID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got id %q", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, id)
			}
		})
	}
}

func TestAccountID_Int64(t *testing.T) {
	if got, ok := AccountID("42").Int64(); !ok || got != 42 {
		t.Fatalf("expected 42, got %d (ok=%v)", got, ok)
	}

	for _, id := range []AccountID{"042", "+42", "acc-1", "6f1c2a9e-0b7d-4c52-9d57-1c1e3b3f0a11"} {
		if _, ok := id.Int64(); ok {
			t.Fatalf("expected %q not to be an integer id", id)
		}
	}
}

func TestAccountID_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		A AccountID `json:"a"`
		B AccountID `json:"b"`
	}{A: "7", B: "acc-7"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if string(out) != `{"a":7,"b":"acc-7"}` {
		t.Fatalf("unexpected json: %s", out)
	}
}
