package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signPayload computes the widget hash the way Telegram does, so the
// verifier can be tested against a known-good signature.
func signPayload(payload map[string]interface{}, botToken string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+payloadString(payload, k))
	}
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyTelegramAuth(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	token := "123456:bot-secret"

	payload := map[string]interface{}{
		"id":         float64(987654321),
		"first_name": "Ivanov",
		"username":   "ivanov_af",
		"auth_date":  float64(now.Add(-time.Minute).Unix()),
	}
	payload["hash"] = signPayload(payload, token)

	require.NoError(t, verifyTelegramAuth(payload, token, now))
}

func TestVerifyTelegramAuthRejectsTampering(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	token := "123456:bot-secret"

	payload := map[string]interface{}{
		"id":        float64(987654321),
		"auth_date": float64(now.Unix()),
	}
	payload["hash"] = signPayload(payload, token)
	payload["id"] = float64(111)

	err := verifyTelegramAuth(payload, token, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature")
}

func TestVerifyTelegramAuthRejectsWrongToken(t *testing.T) {
	now := time.Now().UTC()
	payload := map[string]interface{}{
		"id":        float64(1),
		"auth_date": float64(now.Unix()),
	}
	payload["hash"] = signPayload(payload, "other-token")
	assert.Error(t, verifyTelegramAuth(payload, "123456:bot-secret", now))
}

func TestVerifyTelegramAuthRejectsStalePayload(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	token := "123456:bot-secret"

	payload := map[string]interface{}{
		"id":        float64(1),
		"auth_date": float64(now.Add(-25 * time.Hour).Unix()),
	}
	payload["hash"] = signPayload(payload, token)

	err := verifyTelegramAuth(payload, token, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyTelegramAuthMissingHash(t *testing.T) {
	assert.Error(t, verifyTelegramAuth(map[string]interface{}{"id": float64(1)}, "t", time.Now()))
}

func TestPayloadString(t *testing.T) {
	payload := map[string]interface{}{
		"id":    float64(987654321),
		"ratio": 1.5,
		"name":  "Ivanov",
		"nilv":  nil,
	}
	// Integral floats must not grow a fractional suffix: the check
	// string has to byte-match what Telegram signed.
	assert.Equal(t, "987654321", payloadString(payload, "id"))
	assert.Equal(t, "1.5", payloadString(payload, "ratio"))
	assert.Equal(t, "Ivanov", payloadString(payload, "name"))
	assert.Equal(t, "", payloadString(payload, "nilv"))
	assert.Equal(t, "", payloadString(payload, "absent"))
}
