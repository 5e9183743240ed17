package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyDevToken(t *testing.T) {
	v := NewVerifier("dev", "")
	p, err := v.Verify("admin")
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, p.Role)

	p, err = v.Verify("driver:d-42")
	require.NoError(t, err)
	require.Equal(t, RoleDriver, p.Role)
	require.Equal(t, "d-42", p.DriverID)

	p, err = v.Verify("manager::Worcester")
	require.NoError(t, err)
	require.Equal(t, "Worcester", p.City)

	_, err = v.Verify("")
	require.Error(t, err)
}

func signHS256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	enc := base64.RawURLEncoding
	hdr, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	require.NoError(t, err)
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	signing := enc.EncodeToString(hdr) + "." + enc.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signing))
	return signing + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMACToken(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")
	tok := signHS256(t, "s3cret", map[string]any{"role": "Driver", "driver_id": "d-42", "city": "Boston"})

	p, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, RoleDriver, p.Role)
	require.Equal(t, "d-42", p.DriverID)
	require.Equal(t, "Boston", p.City)
}

func TestVerifyHMACRejects(t *testing.T) {
	v := NewVerifier("hmac", "s3cret")

	_, err := v.Verify("not.a.jwt")
	require.Error(t, err)

	// Wrong key.
	tok := signHS256(t, "other", map[string]any{"role": "admin"})
	_, err = v.Verify(tok)
	require.Error(t, err)

	// Missing role claim.
	tok = signHS256(t, "s3cret", map[string]any{"sub": "x"})
	_, err = v.Verify(tok)
	require.Error(t, err)
}
