package security

import (
	"crypto/subtle"
	"net"
	"strings"
)

// AdminToken is the shared secret guarding the admin API. The zero value
// disables the check.
type AdminToken string

// Enabled reports whether requests must present the token.
func (t AdminToken) Enabled() bool { return t != "" }

// Authorize reports whether an Authorization header carries the token as a
// bearer credential. A disabled token authorizes every request.
func (t AdminToken) Authorize(authHeader string) bool {
	if !t.Enabled() {
		return true
	}
	provided := bearerCredential(authHeader)
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(t)) == 1
}

// bearerCredential returns the credential of a "Bearer <token>" header. The
// scheme is case-insensitive.
func bearerCredential(authHeader string) string {
	scheme, cred, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(cred)
}

// ClientIP returns the host part of an http.Request RemoteAddr, for logging
// rejected admin calls.
func ClientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return strings.Trim(remoteAddr, "[]")
}
