package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrBadRequest,
		ErrBusy,
		ErrRateLimit,
		ErrContradiction,
		ErrAttemptsExhausted,
		ErrCanceled,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := DecodeBase([]byte(`{"type":"GENERATE","protocol_version":"1.0","seed":4}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if b.Type != TypeGenerate || b.ProtocolVersion != Version {
		t.Fatalf("base mismatch: %+v", b)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
