// Package photos stores posting photo files and the per-posting comment log
// side files. Deletion is move-semantics: side files transition into a
// deleted namespace together with the archived posting row.
package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// maxWidth is the stored photo width. Uploads narrower than this are kept
// as-is.
const maxWidth = 200

const jpegQuality = 95

// Disk stores photos as {postID}_{index}.jpg on the local filesystem.
type Disk struct {
	imagesDir  string
	deletedDir string
}

// NewDisk creates the photo directories if needed.
func NewDisk(imagesDir, deletedDir string) (*Disk, error) {
	for _, dir := range []string{imagesDir, deletedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create photo dir: %w", err)
		}
	}
	return &Disk{imagesDir: imagesDir, deletedDir: deletedDir}, nil
}

// Save downscales and writes one photo. Content that does not decode as an
// image is written through unchanged.
func (d *Disk) Save(_ context.Context, postID int64, index int, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}
	if resized, err := downscale(data); err == nil {
		data = resized
	}

	path := filepath.Join(d.imagesDir, photoFilename(postID, index))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}
	return nil
}

// Archive moves a posting's photos into the deleted namespace. Missing files
// and external-URL tags are skipped; a failed move is reported but does not
// stop the remaining moves.
func (d *Disk) Archive(_ context.Context, postID int64, tags []string) error {
	var firstErr error
	for _, tag := range tags {
		if strings.Contains(tag, "http") {
			continue // external image reference, nothing on disk
		}
		name := fmt.Sprintf("%d%s.jpg", postID, tag)
		src := filepath.Join(d.imagesDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(src, filepath.Join(d.deletedDir, name)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("move photo %s: %w", name, err)
		}
	}
	return firstErr
}

func photoFilename(postID int64, index int) string {
	return fmt.Sprintf("%d_%d.jpg", postID, index)
}

// downscale re-encodes an image at most maxWidth wide, preserving aspect.
func downscale(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	if bounds.Dx() <= maxWidth {
		return data, nil
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CommentLog keeps one JSON side file of timestamped comments per posting.
type CommentLog struct {
	commentsDir string
	deletedDir  string
}

// NewCommentLog creates the comment directories if needed.
func NewCommentLog(commentsDir, deletedDir string) (*CommentLog, error) {
	for _, dir := range []string{commentsDir, deletedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create comment dir: %w", err)
		}
	}
	return &CommentLog{commentsDir: commentsDir, deletedDir: deletedDir}, nil
}

// Append adds a comment to the posting's log file, keyed by timestamp.
func (c *CommentLog) Append(_ context.Context, postID int64, at time.Time, comment string) error {
	path := c.path(postID)

	comments := make(map[string]string)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &comments); err != nil {
			return fmt.Errorf("parse comment log %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read comment log: %w", err)
	}

	comments[at.Format(time.RFC3339)] = comment

	data, err := json.MarshalIndent(comments, "", "  ")
	if err != nil {
		return fmt.Errorf("encode comment log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write comment log: %w", err)
	}
	return nil
}

// Archive moves the posting's comment log into the deleted namespace. A
// posting without comments has no log file; that is not an error.
func (c *CommentLog) Archive(_ context.Context, postID int64) error {
	src := c.path(postID)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(c.deletedDir, fmt.Sprintf("%d.json", postID))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move comment log: %w", err)
	}
	return nil
}

func (c *CommentLog) path(postID int64) string {
	return filepath.Join(c.commentsDir, fmt.Sprintf("%d.json", postID))
}
