// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lelloman/quentin/internal/api/ctxkeys"
	"github.com/lelloman/quentin/internal/domain"
)

// Identity resolves a request's caller identity according to the
// configured auth method and stores it on the request context. §6 treats
// authentication mechanics beyond this identity abstraction as an external
// collaborator's concern: for oidc/cert/plugin the verification itself is
// assumed to happen upstream (a reverse proxy terminating OIDC, a TLS
// terminator presenting the client cert, a plugin's own gate); this
// middleware only extracts the identity the upstream collaborator already
// vouched for.
func Identity(cfg *domain.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := resolveIdentity(cfg, r)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxkeys.Identity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveIdentity(cfg *domain.AuthConfig, r *http.Request) (string, bool) {
	if cfg == nil {
		return "", false
	}
	switch cfg.Method {
	case domain.AuthNone:
		return "anonymous", true

	case domain.AuthAPIKey:
		key := r.Header.Get("X-API-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) != 1 {
			return "", false
		}
		return "api_key", true

	case domain.AuthAddr:
		addr, err := parseRemoteAddrIP(r.RemoteAddr)
		if err != nil {
			log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("auth: failed to parse remote address")
			return "", false
		}
		if !addressAllowed(cfg.AllowedAddresses, addr) {
			return "", false
		}
		return addr.String(), true

	case domain.AuthOIDC:
		user := r.Header.Get("X-Forwarded-User")
		if user == "" {
			return "", false
		}
		return user, true

	case domain.AuthCert:
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			return "", false
		}
		cn := r.TLS.PeerCertificates[0].Subject.CommonName
		if cn == "" {
			return "", false
		}
		return cn, true

	case domain.AuthPlugin:
		identity := r.Header.Get("X-Quentin-Identity")
		if identity == "" {
			return "", false
		}
		return identity, true

	default:
		return "", false
	}
}

func addressAllowed(allowed []string, addr netip.Addr) bool {
	for _, raw := range allowed {
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			if prefix.Contains(addr) {
				return true
			}
			continue
		}
		if single, err := netip.ParseAddr(raw); err == nil && single == addr {
			return true
		}
	}
	return false
}

func parseRemoteAddrIP(remoteAddr string) (netip.Addr, error) {
	trimmed := strings.TrimSpace(remoteAddr)
	if addr, err := netip.ParseAddr(strings.Trim(trimmed, "[]")); err == nil {
		return addr.Unmap(), nil
	}
	host, _, err := net.SplitHostPort(trimmed)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

// IdentityFrom returns the identity Identity stashed on the request
// context, or "" if the middleware did not run.
func IdentityFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxkeys.Identity).(string)
	return v
}
