package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
)

// SignatureHeader carries "t=<unix>,v1=<hex>" signed by the gateway
const SignatureHeader = "Gateway-Signature"

// DefaultTolerance bounds how old a signed timestamp may be
const DefaultTolerance = 5 * time.Minute

// Sign returns the v1 signature of payload at timestamp t
func Sign(secret string, t int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(t, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignedHeader builds a complete header value, used by tests and tooling
func SignedHeader(secret string, t time.Time, payload []byte) string {
	ts := t.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, Sign(secret, ts, payload))
}

// VerifySignature checks header against payload. Any v1 entry may match so
// the gateway can roll its secret. A zero tolerance skips the age check.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	if secret == "" {
		return invalidSignature("secret not configured")
	}
	if header == "" {
		return invalidSignature("missing signature header")
	}

	var ts int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return invalidSignature("malformed timestamp")
			}
			ts = parsed
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if ts == 0 {
		return invalidSignature("missing timestamp")
	}
	if len(candidates) == 0 {
		return invalidSignature("missing v1 signature")
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance {
			return invalidSignature("timestamp outside tolerance")
		}
		if age < -tolerance {
			return invalidSignature("timestamp in the future")
		}
	}

	expected := []byte(Sign(secret, ts, payload))
	for _, c := range candidates {
		if hmac.Equal(expected, []byte(c)) {
			return nil
		}
	}
	return invalidSignature("signature mismatch")
}

func invalidSignature(reason string) error {
	return domain.ErrInvalidSignature.WithDetail("reason", reason)
}
