package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func fixedVerifier(at time.Time) *RequestVerifier {
	v := NewRequestVerifier(testSigningSecret)
	v.now = func() time.Time { return at }
	return v
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := []byte("token=xyz&team_id=T1000&command=%2Fwhoami")

	tests := []struct {
		name      string
		timestamp string
		signature func(timestamp string) string
		wantErr   bool
	}{
		{
			name:      "valid signature",
			timestamp: strconv.FormatInt(now.Unix(), 10),
			signature: func(ts string) string { return sign(testSigningSecret, ts, body) },
		},
		{
			name:      "wrong secret",
			timestamp: strconv.FormatInt(now.Unix(), 10),
			signature: func(ts string) string { return sign("other-secret", ts, body) },
			wantErr:   true,
		},
		{
			name:      "stale timestamp",
			timestamp: strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10),
			signature: func(ts string) string { return sign(testSigningSecret, ts, body) },
			wantErr:   true,
		},
		{
			name:      "future timestamp",
			timestamp: strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10),
			signature: func(ts string) string { return sign(testSigningSecret, ts, body) },
			wantErr:   true,
		},
		{
			name:      "garbage timestamp",
			timestamp: "not-a-number",
			signature: func(ts string) string { return sign(testSigningSecret, ts, body) },
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := fixedVerifier(now)
			err := v.Verify(tt.timestamp, tt.signature(tt.timestamp), body)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMiddlewareRestoresBody(t *testing.T) {
	now := time.Now()
	v := NewRequestVerifier(testSigningSecret)
	body := "team_id=T1000&command=%2Fwhoami"
	timestamp := strconv.FormatInt(now.Unix(), 10)

	var seen string
	handler := v.Middleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = r.FormValue("team_id")
	}))

	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(timestampHeader, timestamp)
	req.Header.Set(signatureHeader, sign(testSigningSecret, timestamp, []byte(body)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T1000", seen)
}

func TestMiddlewareRejectsBadSignature(t *testing.T) {
	v := NewRequestVerifier(testSigningSecret)
	handler := v.Middleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/slack/commands", strings.NewReader("body"))
	req.Header.Set(timestampHeader, strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set(signatureHeader, "v0=deadbeef")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
