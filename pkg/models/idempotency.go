package models

import "time"

// DefaultIdempotencyTTL is how long a reported idempotency key
// deduplicates repeated events for the same trigger.
const DefaultIdempotencyTTL = 7 * 24 * time.Hour

// IdempotencyRecord remembers the activations produced for a client
// supplied key so a repeated report within the TTL is a no-op returning
// the prior result.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	AppID         string    `json:"app_id"`
	TriggerKey    string    `json:"trigger_key"`
	ActivationIDs []string  `json:"activation_ids"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Expired reports whether the record no longer deduplicates.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
