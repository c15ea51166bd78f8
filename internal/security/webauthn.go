package security

import (
	"net/url"
	"strings"

	"github.com/antarr/jordan-sub000/internal/config"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Default WebAuthn relying party configuration.
const (
	// webAuthnRPName is the default relying party display name.
	webAuthnRPName = "Jordan"
	// webAuthnOrigin is the default WebAuthn origin.
	webAuthnOrigin = "http://localhost:8317"
)

// NewWebAuthn builds a WebAuthn relying party from configuration.
func NewWebAuthn(cfg config.WebAuthnConfig) (*webauthn.WebAuthn, error) {
	rpName := strings.TrimSpace(cfg.RPName)
	if rpName == "" {
		rpName = webAuthnRPName
	}

	origins := normalizeOrigins(cfg.Origins)
	if len(origins) == 0 {
		origins = []string{webAuthnOrigin}
	}

	rpID := strings.TrimSpace(cfg.RPID)
	if rpID == "" {
		rpID = deriveRPIDFromOrigins(origins)
	}

	return webauthn.New(&webauthn.Config{
		RPID:          rpID,
		RPDisplayName: rpName,
		RPOrigins:     origins,
	})
}

// deriveRPIDFromOrigins extracts an RP ID from the configured origins.
func deriveRPIDFromOrigins(origins []string) string {
	for _, origin := range origins {
		if host := originHost(origin); host != "" {
			return host
		}
	}
	return ""
}

// originHost parses an origin string and returns its hostname.
func originHost(origin string) string {
	trimmed := strings.TrimSpace(origin)
	if trimmed == "" {
		return ""
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimSpace(parsed.Hostname())
}

// normalizeOrigins trims and filters empty origin entries.
func normalizeOrigins(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
