package encoding

import (
	"errors"
	"testing"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 700)
	}
	in = append(in, 9, 10, 10, 10)

	out, err := DecodeRLE(EncodeRLE(in), len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRuns(t *testing.T) {
	got := Runs([]uint16{4, 4, 0, 4})
	want := []Run{{ID: 4, Len: 2}, {ID: 0, Len: 1}, {ID: 4, Len: 1}}
	if len(got) != len(want) {
		t.Fatalf("runs: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("run %d: got %v want %v", i, got[i], want[i])
		}
	}
	if Runs(nil) != nil {
		t.Fatalf("empty input should have no runs")
	}
}

func TestDecodeRLE_RejectsWrongLength(t *testing.T) {
	enc := EncodeRLE([]uint16{1, 1, 1, 2})
	if _, err := DecodeRLE(enc, 3); !errors.Is(err, ErrLength) {
		t.Fatalf("short grid: got %v", err)
	}
	if _, err := DecodeRLE(enc, 5); !errors.Is(err, ErrLength) {
		t.Fatalf("long grid: got %v", err)
	}
	if _, err := DecodeRLE("!!", 1); err == nil {
		t.Fatalf("expected base64 error")
	}
}
