package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// confirmationTTL bounds how long an armed destructive operation stays
// valid before it must be re-confirmed.
const confirmationTTL = 10 * time.Minute

// ConfirmationStore arms and consumes per-session confirmation flags for
// destructive snapshot operations, backed by Redis so the flag survives
// across API instances.
type ConfirmationStore struct {
	client *redis.Client
}

// NewConfirmationStore constructs a ConfirmationStore.
func NewConfirmationStore(client *redis.Client) *ConfirmationStore {
	return &ConfirmationStore{client: client}
}

func confirmationKey(sessionID string) string {
	return fmt.Sprintf("delete_confirmation:%s", sessionID)
}

// Arm records that the session holder approved the next destructive
// operation.
func (s *ConfirmationStore) Arm(ctx context.Context, sessionID string) error {
	if err := s.client.Set(ctx, confirmationKey(sessionID), "1", confirmationTTL).Err(); err != nil {
		return fmt.Errorf("arm delete confirmation: %w", err)
	}
	return nil
}

// Consume reports whether the session was armed, clearing the flag so a
// single confirmation covers exactly one operation.
func (s *ConfirmationStore) Consume(ctx context.Context, sessionID string) (bool, error) {
	removed, err := s.client.Del(ctx, confirmationKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("consume delete confirmation: %w", err)
	}
	return removed > 0, nil
}
