// Package consolidate merges fragmented multi-message chat posts into posting
// candidates. People post a photo and the describing text as separate
// messages; a strict left-to-right pass per channel glues those back
// together.
package consolidate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pennyme/freestuff/internal/domain"
	"github.com/pennyme/freestuff/internal/extract"
)

// blockedPhrases filters out messages that are not offers: "suche" is
// someone looking for something, the second is the group's moderation notice.
var blockedPhrases = []string{
	"suche",
	"kein kaufen/verkaufen hier",
}

// chatExpiry is how long a chat-sourced posting stays on the board.
const chatExpiry = 72 * time.Hour

// Blocked reports whether a message text matches the blocklist. Empty text
// passes; photo-only messages are legitimate post fragments.
func Blocked(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range blockedPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Consolidator performs the single-pass merge over an ordered message stream.
// Merge state is keyed by channel so concurrently consumed channels cannot
// corrupt each other's open candidate.
type Consolidator struct {
	extractor  *extract.Extractor
	descPrefix string

	// open holds the last, still-mergeable candidate per channel. A
	// candidate closes permanently once a message breaks the merge
	// condition or Flush is called.
	open map[int64]*domain.PostingCandidate
}

// New creates a consolidator. descPrefix labels the provenance in the posting
// description, e.g. "Taken from Unkommerzieller Marktplatz Zuerich chat".
func New(extractor *extract.Extractor, descPrefix string) *Consolidator {
	return &Consolidator{
		extractor:  extractor,
		descPrefix: descPrefix,
		open:       make(map[int64]*domain.PostingCandidate),
	}
}

// Push feeds the next message in arrival order. It returns a candidate when
// the message closed one (by starting a fresh candidate in its channel), or
// nil when the message was dropped or merged into the open candidate.
func (c *Consolidator) Push(msg domain.RawMessage) *domain.PostingCandidate {
	if Blocked(msg.Text) {
		return nil
	}

	last := c.open[msg.ChannelID]
	if last != nil && msg.SenderID != "" && msg.SenderID == last.SenderID {
		switch {
		case !msg.HasPhoto:
			// Plain follow-up text extends the open candidate.
			c.setText(last, joinText(last.MessageText, msg.Text))
			return nil
		case msg.Text == "" && len(last.PhotoRefs) == 0:
			// Bare photo following a text-only candidate: attach it.
			last.PhotoRefs = append(last.PhotoRefs, msg.PhotoRef)
			return nil
		case last.MessageText == "":
			// Photo arriving for a so-far empty candidate: adopt the
			// text and attach the photo.
			c.setText(last, msg.Text)
			last.PhotoRefs = append(last.PhotoRefs, msg.PhotoRef)
			return nil
		}
		// Both sides have independent content: no merge.
	}

	c.open[msg.ChannelID] = c.seed(msg)
	return last
}

// Flush closes and returns all open candidates, ordered by timestamp.
func (c *Consolidator) Flush() []*domain.PostingCandidate {
	out := make([]*domain.PostingCandidate, 0, len(c.open))
	for _, candidate := range c.open {
		out = append(out, candidate)
	}
	c.open = make(map[int64]*domain.PostingCandidate)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// seed starts a fresh candidate from a message.
func (c *Consolidator) seed(msg domain.RawMessage) *domain.PostingCandidate {
	expires := msg.Timestamp.Add(chatExpiry)
	candidate := &domain.PostingCandidate{
		SenderID:       msg.SenderID,
		Timestamp:      msg.Timestamp,
		ExpirationDate: &expires,
		Category:       msg.Category,
		Subcategory:    domain.SubcategoryAll,
	}
	if msg.HasPhoto {
		candidate.PhotoRefs = append(candidate.PhotoRefs, msg.PhotoRef)
	}
	c.setText(candidate, msg.Text)
	return candidate
}

// setText updates the candidate text, rebuilds the description, and
// re-extracts location info from the joined text. District and street fill
// independently; a value found earlier is never overwritten by later
// fragments.
func (c *Consolidator) setText(candidate *domain.PostingCandidate, text string) {
	candidate.MessageText = text
	candidate.Description = fmt.Sprintf("%s: %s", c.descPrefix, text)
	district, street := c.extractor.Extract(text)
	if candidate.Zip == "" {
		candidate.Zip = district
	}
	if candidate.Street == "" {
		candidate.Street = street
	}
}

func joinText(a, b string) string {
	return strings.TrimSpace(a + " " + b)
}
