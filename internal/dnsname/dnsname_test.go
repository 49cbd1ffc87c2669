package dnsname

import (
	"context"
	"testing"
	"time"
)

func TestStripSuffixFrom(t *testing.T) {
	tests := []struct {
		name     string
		suffix   string
		hostname string
		want     string
	}{
		{"no suffix configured", "", "host.example.lan", "host.example.lan"},
		{"suffix present", ".example.lan", "host.example.lan", "host"},
		{"suffix absent", ".example.lan", "host.other.lan", "host.other.lan"},
		{"suffix equals whole name", "host.example.lan", "host.example.lan", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.suffix, time.Second, nil)
			if got := r.stripSuffixFrom(tt.hostname); got != tt.want {
				t.Errorf("stripSuffixFrom(%q) = %q, want %q", tt.hostname, got, tt.want)
			}
		})
	}
}

func TestNameFallsBackToAddressWithoutResolver(t *testing.T) {
	r := NewResolver("", 200*time.Millisecond, nil)
	// 192.0.2.0/24 is reserved (TEST-NET-1); PTR lookups for it never
	// resolve, so this exercises the no-match fallback deterministically.
	got := r.Name(context.Background(), "192.0.2.1")
	if got != "192.0.2.1" {
		t.Errorf("Name() = %q, want address fallback", got)
	}
}
