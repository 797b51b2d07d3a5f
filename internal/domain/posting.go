package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Category identifies which source chat / board section a posting belongs to.
type Category string

const (
	CategoryFood  Category = "Food"
	CategoryGoods Category = "Goods"
)

// Status describes whether a posting expires on its own.
type Status string

const (
	// StatusPermanent marks postings without an expiration date.
	StatusPermanent Status = "permanent"
	// StatusTemporary marks postings that carry an expiration date and are
	// swept into the archive once it passes.
	StatusTemporary Status = "temporary"
)

// DeletionMode records why a posting was archived.
type DeletionMode string

const (
	DeletionPickup  DeletionMode = "pickup"
	DeletionExpired DeletionMode = "expired"
	DeletionOther   DeletionMode = "other"
)

// SubcategoryAll is the sentinel meaning "no subcategory restriction".
const SubcategoryAll = "All"

// RawMessage is a single chat event as delivered by the gateway stream.
// Immutable once read.
type RawMessage struct {
	// ChannelID identifies the source chat. Consolidation state is scoped
	// per channel.
	ChannelID int64

	// SenderID identifies the author. Empty when the source could not
	// resolve a sender; anonymous messages never merge.
	SenderID string

	Text      string
	Timestamp time.Time

	// HasPhoto reports whether the message carries a photo attachment.
	// PhotoRef is the opaque media id, empty without a photo.
	HasPhoto bool
	PhotoRef string

	// Category is derived from the channel the message arrived on.
	Category Category
}

// PostingCandidate is an in-progress, not-yet-geocoded posting assembled from
// one or more raw messages of the same sender.
type PostingCandidate struct {
	SenderID    string
	MessageText string
	Description string
	Timestamp   time.Time

	// ExpirationDate is derived from the posting time. Nil means the
	// posting never expires.
	ExpirationDate *time.Time

	Category    Category
	Subcategory string

	// Zip is the extracted canonical district name, Street the extracted
	// street (possibly with house number). Either may be empty.
	Zip    string
	Street string

	// PhotoRefs are opaque media ids in arrival order. Their count defines
	// the posting's photo_id token count.
	PhotoRefs []string
}

// GeocodedPosting is the terminal pipeline representation: a candidate plus a
// resolved point geometry and display fields, ready for storage.
type GeocodedPosting struct {
	PostingCandidate

	// Geometry is a WGS84 (lon, lat) point. Nil means no geometry could be
	// produced; such postings are rejected at insert.
	Geometry *orb.Point

	// Address is the composed display string: street and/or district,
	// space-separated, trimmed.
	Address string

	// Name is the short display title.
	Name string

	// ExternalURL links to an outside page describing the offer, e.g. a
	// community fridge's website. Empty for chat-sourced postings.
	ExternalURL string
}

// Status returns the persisted status implied by the expiration date.
// A posting is temporary iff it expires.
func (g *GeocodedPosting) Status() Status {
	if g.ExpirationDate != nil {
		return StatusTemporary
	}
	return StatusPermanent
}

// Posting is the persisted entity served on the map feed.
type Posting struct {
	ID             int64
	Name           string
	TimePosted     time.Time
	ExpirationDate *time.Time

	// PhotoID is the comma-joined list of attachment tags. Tags are stable
	// per-posting indices assigned at creation and never reused.
	PhotoID string

	Category    Category
	Subcategory string
	Description string
	Address     string
	ExternalURL string
	Status      Status
	UserID      string
	Geometry    orb.Point
}

// PhotoIDFor builds the comma-joined photo id value for n attachments. Tags
// are stable per-posting indices ("_0", "_1", ...); image files are stored as
// {postID}{tag}.jpg.
func PhotoIDFor(n int) string {
	if n == 0 {
		return ""
	}
	tags := make([]string, n)
	for i := range tags {
		tags[i] = "_" + strconv.Itoa(i)
	}
	return strings.Join(tags, ",")
}

// PhotoTags splits the comma-joined photo id list. Empty input yields nil.
func (p *Posting) PhotoTags() []string {
	if p.PhotoID == "" {
		return nil
	}
	return strings.Split(p.PhotoID, ",")
}

// DeletedPosting is an archived posting. Postings are never hard-deleted;
// they move to the archive with deletion metadata attached.
type DeletedPosting struct {
	Posting

	DeletedAt    time.Time
	DeletionMode DeletionMode
}

// expirationLayout is the date format accepted on the HTTP API and emitted on
// the feed.
const expirationLayout = "2006-01-02"

// ParseExpiration parses an expiration date string. An empty string means no
// expiration (nil). A malformed value is ErrInvalidExpiration.
func ParseExpiration(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(expirationLayout, s)
	if err != nil {
		return nil, ErrInvalidExpiration
	}
	return &t, nil
}

// FormatExpiration renders an expiration date for the feed, empty for nil.
func FormatExpiration(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(expirationLayout)
}
