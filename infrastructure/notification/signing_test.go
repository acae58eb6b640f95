package notification

import (
	"strconv"
	"testing"
	"time"
)

func TestSigner_SignAndVerify(t *testing.T) {
	t.Parallel()

	s := NewSigner()
	payload := []byte(`{"id":"e-1"}`)

	sig := s.Sign(payload, "secret")
	if len(sig) != len("sha256=")+64 {
		t.Errorf("signature length = %d", len(sig))
	}
	if !s.Verify(payload, "secret", sig) {
		t.Error("expected signature to verify")
	}
	if s.Verify(payload, "other", sig) {
		t.Error("wrong secret should not verify")
	}
	if s.Verify([]byte(`{"id":"e-2"}`), "secret", sig) {
		t.Error("tampered payload should not verify")
	}
}

func TestSigner_Timestamped(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	s := &Signer{now: func() time.Time { return now }}
	payload := []byte("body")

	headers := s.Headers(payload, "k", now)
	ts, err := strconv.ParseInt(headers[HeaderTimestamp], 10, 64)
	if err != nil {
		t.Fatalf("timestamp header = %q", headers[HeaderTimestamp])
	}
	if headers[HeaderSignature] != s.Sign(payload, "k") {
		t.Error("plain signature header mismatch")
	}

	tests := []struct {
		name string
		ts   int64
		sig  string
		want bool
	}{
		{"valid", ts, headers[HeaderTimestampSignature], true},
		{"stale", ts - 600, headers[HeaderTimestampSignature], false},
		{"future", ts + 600, headers[HeaderTimestampSignature], false},
		{"wrong signature", ts, headers[HeaderSignature], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := s.VerifyTimestamped(payload, "k", tt.sig, tt.ts, 5*time.Minute); got != tt.want {
				t.Errorf("VerifyTimestamped() = %v, want %v", got, tt.want)
			}
		})
	}
}
