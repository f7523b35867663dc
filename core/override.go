package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Override is a time-boxed, administrator-issued exception that forces
// entitlement for one (tenant, feature_key) pair regardless of billing
// state. Expiry is mandatory; there are no permanent overrides. Expired
// rows become inert but are retained for audit replay.
type Override struct {
	ID         uuid.UUID `json:"id"`
	TenantID   string    `json:"tenant_id"`
	FeatureKey string    `json:"feature_key"` // category or legacy feature name
	ExpiresAt  time.Time `json:"expires_at"`
	Reason     string    `json:"reason"`
	ActorID    string    `json:"actor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Active reports whether the override is still in force at the instant.
func (o *Override) Active(now time.Time) bool {
	return o != nil && o.ExpiresAt.After(now)
}

// InvalidOverrideError rejects an override write at issuance time. It is
// surfaced to the issuing caller, never silently accepted.
type InvalidOverrideError struct {
	Field  string
	Detail string
}

func (e *InvalidOverrideError) Error() string {
	return fmt.Sprintf("invalid override: %s: %s", e.Field, e.Detail)
}

// OverrideInput is the payload for create-or-replace.
type OverrideInput struct {
	TenantID   string
	FeatureKey string
	ExpiresAt  time.Time
	Reason     string
	ActorID    string
}

// Validate enforces the issuance invariants: all fields present and the
// expiry strictly in the future relative to issuance time.
func (in *OverrideInput) Validate(now time.Time) error {
	if strings.TrimSpace(in.TenantID) == "" {
		return &InvalidOverrideError{Field: "tenant_id", Detail: "required"}
	}
	if strings.TrimSpace(in.FeatureKey) == "" {
		return &InvalidOverrideError{Field: "feature_key", Detail: "required"}
	}
	if strings.TrimSpace(in.ActorID) == "" {
		return &InvalidOverrideError{Field: "actor_id", Detail: "required"}
	}
	if strings.TrimSpace(in.Reason) == "" {
		return &InvalidOverrideError{Field: "reason", Detail: "required"}
	}
	if in.ExpiresAt.IsZero() {
		return &InvalidOverrideError{Field: "expires_at", Detail: "required, no permanent overrides"}
	}
	if !in.ExpiresAt.After(now) {
		return &InvalidOverrideError{Field: "expires_at", Detail: "must be in the future"}
	}
	return nil
}

// OverrideStore persists overrides. Implementations enforce uniqueness on
// (tenant_id, feature_key): a new override for the same pair replaces the
// prior one. Authorization of the writing actor is the caller's concern;
// the store persists what it is told.
type OverrideStore interface {
	// Upsert creates or replaces the override for (tenant_id, feature_key).
	// created is false when an existing row was replaced.
	Upsert(ctx context.Context, in OverrideInput) (ov Override, created bool, err error)

	// GetActive returns the override for the pair only if expires_at > now.
	// Expired rows stay in storage but are invisible here.
	GetActive(ctx context.Context, tenantID, featureKey string, now time.Time) (*Override, error)

	// List returns all overrides for the tenant, including expired ones.
	List(ctx context.Context, tenantID string) ([]Override, error)

	// Expire stamps the override's expiry to now, making it inert while
	// keeping the row for audit. Returns false when no live row existed.
	Expire(ctx context.Context, tenantID, featureKey string, now time.Time) (bool, error)

	// ClaimExpired returns overrides whose expiry has passed and marks
	// them swept, so the reconciliation sweep reports each lapse once.
	// Re-issuing an override clears its swept mark.
	ClaimExpired(ctx context.Context, now time.Time) ([]Override, error)
}
