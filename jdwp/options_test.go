package jdwp

import "testing"

func TestClientOptionsTimeoutDefault(t *testing.T) {
	var opts *ClientOptions
	if got := opts.timeout(); got != DefaultTimeout {
		t.Fatalf("nil opts timeout = %v, want %v", got, DefaultTimeout)
	}

	opts = &ClientOptions{}
	if got := opts.timeout(); got != DefaultTimeout {
		t.Fatalf("zero-value opts timeout = %v, want %v", got, DefaultTimeout)
	}
}

func TestClientOptionsTimeoutOverride(t *testing.T) {
	opts := &ClientOptions{Timeout: 2}
	if got := opts.timeout(); got != 2 {
		t.Fatalf("timeout = %v, want 2", got)
	}
}
