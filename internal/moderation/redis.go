// Package moderation implements the injected moderation state: the blocked
// client address list and the per-address comment trail. Backed by redis so
// blocking an address takes effect without a process restart.
package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	blockedKey       = "moderation:blocked"
	commentKeyPrefix = "moderation:comments:"
)

// Store implements domain.ModerationState on redis.
type Store struct {
	client *redis.Client
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// IsBlocked reports whether the address is on the block list.
func (s *Store) IsBlocked(ctx context.Context, addr string) (bool, error) {
	blocked, err := s.client.SIsMember(ctx, blockedKey, addr).Result()
	if err != nil {
		return false, fmt.Errorf("check blocked address: %w", err)
	}
	return blocked, nil
}

// Block adds an address to the block list.
func (s *Store) Block(ctx context.Context, addr string) error {
	return s.client.SAdd(ctx, blockedKey, addr).Err()
}

// Unblock removes an address from the block list.
func (s *Store) Unblock(ctx context.Context, addr string) error {
	return s.client.SRem(ctx, blockedKey, addr).Err()
}

// commentEntry is one recorded comment in an address trail.
type commentEntry struct {
	PostID  int64     `json:"post_id"`
	At      time.Time `json:"at"`
	Comment string    `json:"comment"`
}

// RecordComment appends a comment to the address's trail. The trail is what
// moderators read before deciding to block an address.
func (s *Store) RecordComment(ctx context.Context, addr string, postID int64, at time.Time, comment string) error {
	entry, err := json.Marshal(commentEntry{PostID: postID, At: at, Comment: comment})
	if err != nil {
		return fmt.Errorf("marshal comment entry: %w", err)
	}
	if err := s.client.RPush(ctx, commentKeyPrefix+addr, entry).Err(); err != nil {
		return fmt.Errorf("record comment: %w", err)
	}
	return nil
}

// CommentTrail returns the recorded comments for an address, oldest first.
func (s *Store) CommentTrail(ctx context.Context, addr string) ([]string, error) {
	entries, err := s.client.LRange(ctx, commentKeyPrefix+addr, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read comment trail: %w", err)
	}
	return entries, nil
}
