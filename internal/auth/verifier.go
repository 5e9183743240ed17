// Package auth provides JWT verification helpers.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Verifier validates bearer tokens and extracts role/scope claims.
// Supports modes: dev (no verify), hmac (HS256).
type Verifier struct {
	Mode       string
	HMACSecret []byte
}

// Principal is the caller identity attached to each request. Admins see
// everything; drivers are scoped to their own journeys; city managers to
// their city's routes.
type Principal struct {
	Role     string
	DriverID string
	City     string
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleDriver  = "driver"
)

func NewVerifier(mode, hmacSecret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, HMACSecret: []byte(hmacSecret)}
}

// Verify parses and checks a token. Dev tokens are "role[:driverID[:city]]";
// hmac tokens are HS256 JWTs carrying role/driver_id/city claims.
func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		parts := strings.Split(token, ":")
		if parts[0] == "" {
			return Principal{}, errors.New("invalid dev token; expected role[:driverID[:city]]")
		}
		p := Principal{Role: strings.ToLower(parts[0])}
		if len(parts) > 1 {
			p.DriverID = parts[1]
		}
		if len(parts) > 2 {
			p.City = parts[2]
		}
		return p, nil
	}
	if v.Mode != "hmac" {
		return Principal{}, errors.New("unsupported auth mode")
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr map[string]any
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	if alg, _ := hdr["alg"].(string); alg != "HS256" {
		return Principal{}, errors.New("unsupported alg for hmac")
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, errors.New("bad signature")
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return Principal{}, errors.New("missing role claim")
	}
	driver, _ := claims["driver_id"].(string)
	city, _ := claims["city"].(string)
	return Principal{Role: strings.ToLower(role), DriverID: driver, City: city}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
