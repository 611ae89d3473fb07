package webhook

import (
	"fmt"
	"testing"
	"time"

	"github.com/kevin07696/subscription-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	const secret = "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	ts := now.Unix()

	tests := []struct {
		name    string
		header  string
		secret  string
		payload []byte
		wantErr bool
	}{
		{
			name:   "valid",
			header: SignedHeader(secret, now, payload),
			secret: secret,
		},
		{
			name:   "rotated secret second entry matches",
			header: fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, Sign("whsec_old", ts, payload), Sign(secret, ts, payload)),
			secret: secret,
		},
		{
			name:   "small clock skew",
			header: SignedHeader(secret, now.Add(30*time.Second), payload),
			secret: secret,
		},
		{
			name:    "wrong secret",
			header:  SignedHeader("whsec_other", now, payload),
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "tampered body",
			header:  SignedHeader(secret, now, payload),
			secret:  secret,
			payload: []byte(`{"id":"evt_1","type":"payment_intent.succeeded","x":1}`),
			wantErr: true,
		},
		{
			name:    "too old",
			header:  SignedHeader(secret, now.Add(-6*time.Minute), payload),
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "from the future",
			header:  SignedHeader(secret, now.Add(6*time.Minute), payload),
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "missing header",
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "missing v1",
			header:  fmt.Sprintf("t=%d", ts),
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "malformed timestamp",
			header:  "t=abc,v1=00",
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "no secret configured",
			header:  SignedHeader(secret, now, payload),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := payload
			if tt.payload != nil {
				body = tt.payload
			}

			err := VerifySignature(body, tt.header, tt.secret, now, DefaultTolerance)

			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVerifySignature_ZeroToleranceSkipsAge(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	err := VerifySignature(payload, SignedHeader("s", signedAt, payload), "s", time.Now(), 0)

	assert.NoError(t, err)
}
