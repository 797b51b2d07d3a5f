package consolidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyme/freestuff/internal/domain"
	"github.com/pennyme/freestuff/internal/extract"
	"github.com/pennyme/freestuff/internal/geo"
)

func newTestConsolidator() *Consolidator {
	extractor := extract.New([]geo.VocabEntry{
		{Token: "wipkingen", Canonical: "wipkingen"},
	})
	return New(extractor, "Taken from Test chat")
}

func TestBlocked(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Ich suche eine Wohnung", true},
		{"SUCHE Kinderwagen", true},
		{"kein kaufen/verkaufen hier!", true},
		{"Gratis Sofa abzuholen", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Blocked(tt.text), tt.text)
	}
}

func TestPushSingleMessages(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	closed := c.Push(domain.RawMessage{
		ChannelID: 1, SenderID: "a", Text: "Gratis Brot in Wipkingen",
		Timestamp: base, Category: domain.CategoryFood,
	})
	assert.Nil(t, closed, "first message opens a candidate, closes nothing")

	closed = c.Push(domain.RawMessage{
		ChannelID: 1, SenderID: "b", Text: "Sofa zu verschenken",
		Timestamp: base.Add(time.Minute), Category: domain.CategoryFood,
	})
	require.NotNil(t, closed, "new sender closes the previous candidate")
	assert.Equal(t, "a", closed.SenderID)
	assert.Equal(t, "Gratis Brot in Wipkingen", closed.MessageText)
	assert.Equal(t, "Taken from Test chat: Gratis Brot in Wipkingen", closed.Description)
	assert.Equal(t, "wipkingen", closed.Zip)
	assert.Equal(t, domain.SubcategoryAll, closed.Subcategory)
	require.NotNil(t, closed.ExpirationDate)
	assert.Equal(t, base.Add(72*time.Hour), *closed.ExpirationDate)
}

func TestPushMergesFollowUpText(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "Gratis Brot", Timestamp: base})
	closed := c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "in Wipkingen", Timestamp: base.Add(time.Minute)})
	assert.Nil(t, closed, "same-sender text merges into the open candidate")

	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, "Gratis Brot in Wipkingen", out[0].MessageText)
	assert.Equal(t, "wipkingen", out[0].Zip)
}

func TestPushTextThenPhotoMerges(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "Gratis Brot in Wipkingen", Timestamp: base})
	closed := c.Push(domain.RawMessage{
		ChannelID: 1, SenderID: "a", HasPhoto: true, PhotoRef: "m1",
		Timestamp: base.Add(time.Minute),
	})
	assert.Nil(t, closed, "a bare photo joins the open text-only candidate")

	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, "Gratis Brot in Wipkingen", out[0].MessageText)
	assert.Equal(t, []string{"m1"}, out[0].PhotoRefs)
}

func TestPushPhotoAdoptsText(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Photo-only message opens an empty-text candidate.
	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", HasPhoto: true, PhotoRef: "m1", Timestamp: base})
	closed := c.Push(domain.RawMessage{
		ChannelID: 1, SenderID: "a", Text: "Brot in Wipkingen",
		HasPhoto: true, PhotoRef: "m2", Timestamp: base.Add(time.Minute),
	})
	assert.Nil(t, closed)

	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, "Brot in Wipkingen", out[0].MessageText)
	assert.Equal(t, []string{"m1", "m2"}, out[0].PhotoRefs)
}

func TestPushNoMergeWhenBothHaveContent(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "Brot", HasPhoto: true, PhotoRef: "m1", Timestamp: base})
	closed := c.Push(domain.RawMessage{
		ChannelID: 1, SenderID: "a", Text: "Sofa", HasPhoto: true, PhotoRef: "m2",
		Timestamp: base.Add(time.Minute),
	})
	require.NotNil(t, closed, "two complete posts from the same sender stay separate")
	assert.Equal(t, "Brot", closed.MessageText)
}

func TestPushAnonymousNeverMerges(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "", Text: "Brot", Timestamp: base})
	closed := c.Push(domain.RawMessage{ChannelID: 1, SenderID: "", Text: "Sofa", Timestamp: base.Add(time.Minute)})
	require.NotNil(t, closed)
	assert.Equal(t, "Brot", closed.MessageText)
}

func TestPushChannelsAreIsolated(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "Brot", Timestamp: base})
	closed := c.Push(domain.RawMessage{ChannelID: 2, SenderID: "a", Text: "Sofa", Timestamp: base.Add(time.Minute)})
	assert.Nil(t, closed, "a message on another channel must not close channel 1's candidate")

	out := c.Flush()
	require.Len(t, out, 2)
	assert.Equal(t, "Brot", out[0].MessageText)
	assert.Equal(t, "Sofa", out[1].MessageText)
}

func TestPushDropsBlockedMessages(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "Brot", Timestamp: base})
	closed := c.Push(domain.RawMessage{ChannelID: 1, SenderID: "b", Text: "Suche Kinderwagen", Timestamp: base.Add(time.Minute)})
	assert.Nil(t, closed, "blocked messages neither open nor close candidates")

	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, "Brot", out[0].MessageText)
}

func TestLaterFragmentsFillMissingLocation(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "Brot in Wipkingen", Timestamp: base})
	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "an der Langstrasse 10", Timestamp: base.Add(time.Minute)})

	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, "wipkingen", out[0].Zip)
	assert.Equal(t, "Langstrasse 10", out[0].Street,
		"a street in a later fragment still fills the empty field")
}

func TestExtractedLocationIsNeverOverwritten(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "an der Langstrasse 10", Timestamp: base})
	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "oder Webergasse 3", Timestamp: base.Add(time.Minute)})

	out := c.Flush()
	require.Len(t, out, 1)
	assert.Equal(t, "Langstrasse 10", out[0].Street, "the street found first wins")
}

func TestFlushOrdersByTimestamp(t *testing.T) {
	c := newTestConsolidator()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.Push(domain.RawMessage{ChannelID: 2, SenderID: "b", Text: "later", Timestamp: base.Add(time.Hour)})
	c.Push(domain.RawMessage{ChannelID: 1, SenderID: "a", Text: "earlier", Timestamp: base})

	out := c.Flush()
	require.Len(t, out, 2)
	assert.Equal(t, "earlier", out[0].MessageText)
	assert.Equal(t, "later", out[1].MessageText)

	assert.Empty(t, c.Flush(), "flush resets the open state")
}
