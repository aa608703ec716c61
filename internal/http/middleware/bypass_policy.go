package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/allresumeservices/client-intake/internal/security"
)

// BypassEvaluator reports whether a request skips rate limiting, and why.
type BypassEvaluator func(r *http.Request) (bool, string)

const (
	BypassReasonProbe          = "probe"
	BypassReasonTrustedNetwork = "trusted_network"
	BypassReasonTrustedSubject = "trusted_subject"
)

// BypassPolicy names the callers that skip limiting: health probes, the
// payment relay's network and trusted service subjects.
type BypassPolicy struct {
	Probes          bool
	TrustedCIDRs    []string
	TrustedSubjects []string
}

// NewBypassEvaluator returns nil when the policy lets nothing through.
// A malformed CIDR is a configuration error.
func NewBypassEvaluator(p BypassPolicy, jwtMgr *security.JWTManager) (BypassEvaluator, error) {
	var networks []netip.Prefix
	for _, raw := range p.TrustedCIDRs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted cidr %q: %w", raw, err)
		}
		networks = append(networks, prefix.Masked())
	}
	subjects := map[string]bool{}
	for _, s := range p.TrustedSubjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects[s] = true
		}
	}
	if !p.Probes && len(networks) == 0 && len(subjects) == 0 {
		return nil, nil
	}

	return func(r *http.Request) (bool, string) {
		if r == nil {
			return false, ""
		}
		if p.Probes && isProbePath(r.URL.Path) {
			return true, BypassReasonProbe
		}
		if addr, ok := remoteAddr(r); ok {
			for _, n := range networks {
				if n.Contains(addr) {
					return true, BypassReasonTrustedNetwork
				}
			}
		}
		if len(subjects) > 0 && subjects[requestSubject(r, jwtMgr)] {
			return true, BypassReasonTrustedSubject
		}
		return false, ""
	}, nil
}

func isProbePath(path string) bool {
	switch strings.ToLower(strings.TrimSuffix(path, "/")) {
	case "/health/live", "/health/ready":
		return true
	}
	return false
}

// requestSubject prefers claims set by Authenticate and otherwise parses the
// bearer token. It returns "" when neither yields a subject.
func requestSubject(r *http.Request, jwtMgr *security.JWTManager) string {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return strings.TrimSpace(claims.Subject)
	}
	if jwtMgr == nil {
		return ""
	}
	raw := bearerToken(r)
	if raw == "" {
		return ""
	}
	claims, err := jwtMgr.ParseAccessToken(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(claims.Subject)
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func remoteAddr(r *http.Request) (netip.Addr, bool) {
	raw := strings.TrimSpace(r.RemoteAddr)
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().Unmap(), true
	}
	if a, err := netip.ParseAddr(raw); err == nil {
		return a.Unmap(), true
	}
	return netip.Addr{}, false
}
