package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// BoardService owns the posting lifecycle: inserting geocoded postings with
// their photos, serving the filtered feed, archiving, comments, and the
// background expiry sweep. Storage, side files, moderation, and notifications
// are injected collaborators.
type BoardService struct {
	store    PostingStore
	photos   PhotoStore
	comments CommentStore
	notifier Notifier
	logger   *slog.Logger
}

// NewBoardService wires a BoardService from its collaborators.
func NewBoardService(store PostingStore, photos PhotoStore, comments CommentStore, notifier Notifier, logger *slog.Logger) *BoardService {
	return &BoardService{
		store:    store,
		photos:   photos,
		comments: comments,
		notifier: notifier,
		logger:   logger,
	}
}

// CreatePosting persists a geocoded posting and stores its photos. The
// database insert is atomic; a store failure aborts the operation and nothing
// is persisted. Photo files are written after the row exists under the new id.
func (s *BoardService) CreatePosting(ctx context.Context, posting *GeocodedPosting, photos []io.Reader) (int64, error) {
	if posting.Geometry == nil {
		return 0, ErrMissingCoordinates
	}
	if len(photos) > 0 && len(photos) != len(posting.PhotoRefs) {
		return 0, fmt.Errorf("posting has %d photo refs but %d photo files", len(posting.PhotoRefs), len(photos))
	}

	id, err := s.store.Insert(ctx, posting)
	if err != nil {
		s.notifier.Notify(ctx, fmt.Sprintf("Error adding post: %v", err))
		return 0, fmt.Errorf("insert posting: %w", err)
	}

	for i, r := range photos {
		if err := s.photos.Save(ctx, id, i, r); err != nil {
			// The row is already committed; an unsaved photo leaves a
			// dangling tag but does not undo the posting.
			s.logger.Warn("failed to save photo", "post_id", id, "index", i, "error", err)
		}
	}

	s.notifier.Notify(ctx, fmt.Sprintf("New post added: %q at %s", posting.Name, posting.Address))
	s.logger.Info("posting created", "post_id", id, "category", posting.Category, "address", posting.Address)
	return id, nil
}

// StorePhoto saves one photo file for an existing posting. Used by the chat
// ingestion path, where media downloads complete after the insert.
func (s *BoardService) StorePhoto(ctx context.Context, postID int64, index int, r io.Reader) error {
	return s.photos.Save(ctx, postID, index, r)
}

// Feed returns the filtered feed, capped at MaxResults.
func (s *BoardService) Feed(ctx context.Context, criteria FilterCriteria) ([]Posting, error) {
	postings, err := s.store.Query(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	return postings, nil
}

// ArchivePosting moves a posting to the deleted-records area together with
// its side files. The database move is transactional; side-file moves happen
// afterwards and are tolerated to fail (the files orphan, the archive stands).
func (s *BoardService) ArchivePosting(ctx context.Context, id int64, mode DeletionMode) (*DeletedPosting, error) {
	deleted, err := s.store.Archive(ctx, id, mode)
	if err != nil {
		s.notifier.Notify(ctx, fmt.Sprintf("Error in deletion of %d: %v", id, err))
		return nil, fmt.Errorf("archive posting %d: %w", id, err)
	}

	s.moveSideFiles(ctx, &deleted.Posting)

	s.notifier.Notify(ctx, fmt.Sprintf("Deleted post %d (%s)", id, mode))
	s.logger.Info("posting archived", "post_id", id, "mode", mode)
	return deleted, nil
}

// ArchivedPosting retrieves a posting from the archive by its original id.
func (s *BoardService) ArchivedPosting(ctx context.Context, id int64) (*DeletedPosting, error) {
	return s.store.GetDeleted(ctx, id)
}

// AddComment appends a comment to a posting's comment log.
func (s *BoardService) AddComment(ctx context.Context, postID int64, comment string, at time.Time) error {
	if _, err := s.store.Get(ctx, postID); err != nil {
		return err
	}
	if err := s.comments.Append(ctx, postID, at, comment); err != nil {
		return fmt.Errorf("append comment: %w", err)
	}
	s.notifier.Notify(ctx, fmt.Sprintf("New comment for post %d: %s", postID, comment))
	return nil
}

// StartExpirySweeper archives temporary postings past their expiration date.
// It runs immediately, then on every tick, and blocks until ctx is cancelled.
func (s *BoardService) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	s.sweepExpired(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired(ctx)
		}
	}
}

func (s *BoardService) sweepExpired(ctx context.Context) {
	deleted, err := s.store.ArchiveExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return
	}
	for i := range deleted {
		s.moveSideFiles(ctx, &deleted[i].Posting)
	}
	if len(deleted) > 0 {
		s.notifier.Notify(ctx, fmt.Sprintf("Expiry sweep archived %d posts", len(deleted)))
		s.logger.Info("expiry sweep complete", "archived", len(deleted))
	}
}

// moveSideFiles relocates photos and the comment log into the deleted
// namespace. Failures orphan files instead of rolling back the archive; that
// gap is a known property of the deletion contract.
func (s *BoardService) moveSideFiles(ctx context.Context, p *Posting) {
	if tags := p.PhotoTags(); len(tags) > 0 {
		if err := s.photos.Archive(ctx, p.ID, tags); err != nil {
			s.logger.Warn("failed to move photos to deleted namespace", "post_id", p.ID, "error", err)
		}
	}
	if err := s.comments.Archive(ctx, p.ID); err != nil {
		s.logger.Warn("failed to move comment log to deleted namespace", "post_id", p.ID, "error", err)
	}
}
