package jdwp

import "testing"

func TestCommandHeaderEncode(t *testing.T) {
	h := CommandHeader{Length: 11, ID: 42, Flags: 0, CommandSet: 1, Command: 7}
	got := h.Encode()
	want := []byte{0, 0, 0, 11, 0, 0, 0, 42, 0, 1, 7}
	if len(got) != len(want) {
		t.Fatalf("Encode() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Encode()[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestDecodeReplyHeader(t *testing.T) {
	buf := []byte{0, 0, 0, 20, 0, 0, 0, 7, 0x80, 0, 0}
	h, err := DecodeReplyHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Length != 20 || h.ID != 7 {
		t.Fatalf("h = %+v", h)
	}
	if !h.Flags.IsReply() {
		t.Fatalf("expected FlagReply to be set")
	}
	if h.IsError() {
		t.Fatalf("expected no error code")
	}
	if h.BodyLength() != 9 {
		t.Fatalf("BodyLength() = %d, want 9", h.BodyLength())
	}
}

func TestDecodeReplyHeaderErrorCode(t *testing.T) {
	buf := []byte{0, 0, 0, 11, 0, 0, 0, 1, 0x80, 0, 100}
	h, err := DecodeReplyHeader(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.IsError() {
		t.Fatalf("expected nonzero error code to be reported")
	}
	if h.ErrorCode != 100 {
		t.Fatalf("ErrorCode = %d, want 100", h.ErrorCode)
	}
}

func TestDecodeReplyHeaderTruncated(t *testing.T) {
	_, err := DecodeReplyHeader([]byte{0, 0, 0})
	if err == nil {
		t.Fatalf("expected error for truncated header")
	}
}
