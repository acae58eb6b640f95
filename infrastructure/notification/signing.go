package notification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Signature headers set on signed webhook requests.
const (
	HeaderSignature          = "X-Ledger-Signature"
	HeaderTimestamp          = "X-Ledger-Timestamp"
	HeaderTimestampSignature = "X-Ledger-Signature-V2"
)

// Signer computes HMAC-SHA256 signatures over webhook bodies.
type Signer struct {
	now func() time.Time
}

// NewSigner creates a payload signer.
func NewSigner() *Signer {
	return &Signer{now: time.Now}
}

// Sign returns "sha256=<hex>" for payload under secret.
func (s *Signer) Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload.
func (s *Signer) Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload, secret)), []byte(signature))
}

// Headers returns the signature headers for payload signed at ts.
// The V2 signature covers "<unix>.<payload>" so receivers can reject replays.
func (s *Signer) Headers(payload []byte, secret string, ts time.Time) map[string]string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return map[string]string{
		HeaderSignature:          s.Sign(payload, secret),
		HeaderTimestamp:          unix,
		HeaderTimestampSignature: s.Sign(timestamped(unix, payload), secret),
	}
}

// VerifyTimestamped checks a V2 signature and that ts lies within tolerance of now.
func (s *Signer) VerifyTimestamped(payload []byte, secret, signature string, ts int64, tolerance time.Duration) bool {
	now := s.now().Unix()
	window := int64(tolerance.Seconds())
	if ts < now-window || ts > now+window {
		return false
	}
	expected := s.Sign(timestamped(strconv.FormatInt(ts, 10), payload), secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func timestamped(unix string, payload []byte) []byte {
	out := make([]byte, 0, len(unix)+1+len(payload))
	out = append(out, unix...)
	out = append(out, '.')
	return append(out, payload...)
}
