// Package redisclaims implements the notification claim ledger on Redis.
// SET NX provides the same atomic first-writer-wins arbitration as the SQL
// unique constraint, at the cost of weaker audit querying; a capped recent
// list backs the ops endpoint.
package redisclaims

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/database/models"
)

const (
	keyPrefix     = "ringdesk:claim:"
	recentListKey = "ringdesk:claims:recent"
	recentListCap = 500
)

// Store implements database.ClaimLedger using Redis.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	slog.Info("redis claim ledger connected", "addr", addr)
	return &Store{client: client, logger: logger.With("component", "redisclaims")}, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func claimKey(callID, scope string) string {
	return keyPrefix + callID + ":" + scope
}

// Claim atomically records the claim via SET NX and reports whether this
// caller won it.
func (s *Store) Claim(ctx context.Context, claim *models.NotificationClaim) (bool, error) {
	claim.Scope = models.ClaimScope(claim.SMSType)
	claim.ClaimedAt = time.Now().UTC()

	payload, err := json.Marshal(claim)
	if err != nil {
		return false, fmt.Errorf("marshalling claim: %w", err)
	}

	won, err := s.client.SetNX(ctx, claimKey(claim.CallID, claim.Scope), payload, 0).Result()
	if err != nil {
		return false, fmt.Errorf("setting claim key: %w", err)
	}
	if !won {
		return false, nil
	}

	// Best-effort audit trail; losing it never invalidates the claim.
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, recentListKey, payload)
	pipe.LTrim(ctx, recentListKey, 0, recentListCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("failed to record claim in recent list", "call_id", claim.CallID, "error", err)
	}

	return true, nil
}

// ListByCall returns the claims recorded for a call by probing the known
// claim scopes.
func (s *Store) ListByCall(ctx context.Context, callID string) ([]models.NotificationClaim, error) {
	scopes := []string{models.ClaimScopeCaller, models.SMSTypeOwnerAlert}

	var claims []models.NotificationClaim
	for _, scope := range scopes {
		val, err := s.client.Get(ctx, claimKey(callID, scope)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting claim key: %w", err)
		}
		var c models.NotificationClaim
		if err := json.Unmarshal([]byte(val), &c); err != nil {
			return nil, fmt.Errorf("unmarshalling claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, nil
}

// ListRecent returns the most recent claims from the capped audit list.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.NotificationClaim, error) {
	if limit <= 0 || limit > recentListCap {
		limit = 50
	}

	vals, err := s.client.LRange(ctx, recentListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading recent claims: %w", err)
	}

	claims := make([]models.NotificationClaim, 0, len(vals))
	for _, val := range vals {
		var c models.NotificationClaim
		if err := json.Unmarshal([]byte(val), &c); err != nil {
			return nil, fmt.Errorf("unmarshalling claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, nil
}

// Ensure Store satisfies the ClaimLedger interface.
var _ database.ClaimLedger = (*Store)(nil)
