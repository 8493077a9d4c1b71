// Package store persists issued credential records, revocation handles and the
// per-holder latest-credential cache.
package store

import (
	"fmt"

	"proofbridge/pkg/platform/sentinel"
)

// LatestKeyPrefix is the fixed cache key the relying party reads the most
// recent revocable credential from.
const LatestKeyPrefix = "revokableCredential"

// LatestKey scopes the latest-credential key to one holder.
func LatestKey(holder string) string {
	return LatestKeyPrefix + ":" + holder
}

func errDuplicateKey(key string) error {
	return fmt.Errorf("idempotency key %q already recorded: %w", key, sentinel.ErrConflict)
}
