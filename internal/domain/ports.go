package domain

import (
	"context"
	"io"
	"time"
)

// PostingStore defines persistence operations for postings. Inserts are
// atomic per posting: either the full row (geometry included) is persisted or
// nothing is.
type PostingStore interface {
	// Insert stores a geocoded posting and returns the assigned id.
	Insert(ctx context.Context, posting *GeocodedPosting) (int64, error)

	// Get retrieves a posting by id. Returns ErrPostingNotFound if absent.
	Get(ctx context.Context, id int64) (*Posting, error)

	// Query returns postings matching the criteria in stable storage
	// order, capped at MaxResults.
	Query(ctx context.Context, criteria FilterCriteria) ([]Posting, error)

	// Archive moves a posting to the deleted-records area, stamped with
	// the deletion time and mode, and returns the archived row.
	Archive(ctx context.Context, id int64, mode DeletionMode) (*DeletedPosting, error)

	// ArchiveExpired archives every temporary posting whose expiration
	// date is on or before the given day. Returns the archived rows.
	ArchiveExpired(ctx context.Context, now time.Time) ([]DeletedPosting, error)

	// GetDeleted retrieves an archived posting by its original id. Returns
	// ErrPostingNotFound if the id was never archived.
	GetDeleted(ctx context.Context, id int64) (*DeletedPosting, error)
}

// CursorStore persists per-stream consumption cursors so ingestion can resume
// after a restart.
type CursorStore interface {
	// GetCursor returns the last saved cursor for the stream, 0 if none.
	GetCursor(ctx context.Context, stream string) (int64, error)

	// UpdateCursor saves the cursor for the stream.
	UpdateCursor(ctx context.Context, stream string, cursor int64) error
}

// PhotoStore keeps posting photo files. Tags are per-posting indices.
type PhotoStore interface {
	// Save stores one photo for a posting under the given index.
	Save(ctx context.Context, postID int64, index int, r io.Reader) error

	// Archive moves the posting's photos into the deleted namespace.
	// Missing files are tolerated.
	Archive(ctx context.Context, postID int64, tags []string) error
}

// CommentStore keeps the per-posting comment log side file.
type CommentStore interface {
	// Append records a comment on a posting.
	Append(ctx context.Context, postID int64, at time.Time, comment string) error

	// Archive moves the posting's comment log into the deleted namespace.
	Archive(ctx context.Context, postID int64) error
}

// Notifier is a fire-and-forget notification sink. Implementations must not
// let sink failures surface into the primary operation; they log and move on.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// ModerationState is the injected, lifecycle-scoped moderation service:
// blocked client addresses and the per-address comment trail used to spot
// predatory users.
type ModerationState interface {
	// IsBlocked reports whether the client address is blocked.
	IsBlocked(ctx context.Context, addr string) (bool, error)

	// Block and Unblock maintain the block list.
	Block(ctx context.Context, addr string) error
	Unblock(ctx context.Context, addr string) error

	// RecordComment appends a comment to the address's trail.
	RecordComment(ctx context.Context, addr string, postID int64, at time.Time, comment string) error

	// CommentTrail returns the recorded comments for an address, oldest
	// first.
	CommentTrail(ctx context.Context, addr string) ([]string, error)
}
