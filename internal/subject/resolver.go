// Package subject resolves the caller identity behind an inbound request,
// trying API key, authenticated principal, and peer address in turn (§4.8).
package subject

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/riftlabs/interlock/internal/credentials"
	"github.com/riftlabs/interlock/internal/domain"
)

// Request is the subset of an inbound HTTP request the resolver needs.
// Kept transport-agnostic so it can be filled in from gin.Context without
// this package importing gin.
type Request struct {
	APIKey          string
	AuthenticatedAs string
	ForwardedFor    string
	RealIP          string
	PeerAddr        string
}

// Resolver resolves a Request to a domain.Subject.
type Resolver struct {
	credentials credentials.Store
	pepper      string
	algorithm   string
}

// NewResolver creates a Resolver. algorithm is stored but not consulted:
// the digest is always SHA-256, matching the config default, whatever
// value is passed.
func NewResolver(store credentials.Store, pepper, algorithm string) *Resolver {
	return &Resolver{credentials: store, pepper: pepper, algorithm: algorithm}
}

// Resolve returns the first subject the resolve order (§4.8) produces.
// Context is accepted for the credential lookup but resolution never
// fails: every step has a fallback, terminating at domain.Unknown.
func (r *Resolver) Resolve(ctx context.Context, req Request) domain.Subject {
	if key := strings.TrimSpace(req.APIKey); key != "" {
		hash := r.hashAPIKey(key)
		// The credential lookup is performed for its own sake (future
		// enrichment, e.g. logging the resolved client name) — an
		// unrecognized key still resolves and still gets its own rate-limit
		// bucket, so the outcome never changes the subject key (§4.8).
		_, _, _ = r.credentials.FindActiveByHash(ctx, hash)
		return domain.Subject{Kind: domain.SubjectAPIKey, Value: hash}
	}

	if user := strings.TrimSpace(req.AuthenticatedAs); user != "" {
		return domain.Subject{Kind: domain.SubjectUser, Value: user}
	}

	if addr := firstForwardedFor(req.ForwardedFor); addr != "" {
		return domain.Subject{Kind: domain.SubjectIP, Value: addr}
	}
	if addr := strings.TrimSpace(req.RealIP); addr != "" {
		return domain.Subject{Kind: domain.SubjectIP, Value: addr}
	}
	if addr := strings.TrimSpace(req.PeerAddr); addr != "" {
		return domain.Subject{Kind: domain.SubjectIP, Value: addr}
	}

	return domain.Unknown
}

// hashAPIKey computes the salted digest used as the subject's Value.
func (r *Resolver) hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(r.pepper + key))
	return hex.EncodeToString(sum[:])
}

func firstForwardedFor(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Split(header, ",")
	return strings.TrimSpace(parts[0])
}
