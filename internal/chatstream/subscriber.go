// Package chatstream consumes ordered chat message events from the gateway
// and drives them through the consolidation and geocoding pipeline into the
// posting store.
package chatstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pennyme/freestuff/internal/consolidate"
	"github.com/pennyme/freestuff/internal/domain"
	"github.com/pennyme/freestuff/internal/geocode"
	"github.com/pennyme/freestuff/internal/metrics"
)

const (
	cursorStreamName   = "chat-gateway"
	cursorSaveInterval = 5 * time.Second
	statsLogInterval   = 30 * time.Second
	reconnectDelay     = 5 * time.Second
)

// Subscriber connects to the chat gateway and processes message events. The
// read loop is a single goroutine; consolidation state and the geocoder's
// random source are only touched from it.
type Subscriber struct {
	url      string
	token    string
	channels map[int64]domain.Category

	consolidator *consolidate.Consolidator
	geocoder     *geocode.Geocoder
	service      *domain.BoardService
	cursors      domain.CursorStore
	media        *MediaClient
	logger       *slog.Logger
}

// NewSubscriber creates a new chat stream subscriber.
func NewSubscriber(
	streamURL, token string,
	channels map[int64]domain.Category,
	consolidator *consolidate.Consolidator,
	geocoder *geocode.Geocoder,
	service *domain.BoardService,
	cursors domain.CursorStore,
	media *MediaClient,
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		url:          streamURL,
		token:        token,
		channels:     channels,
		consolidator: consolidator,
		geocoder:     geocoder,
		service:      service,
		cursors:      cursors,
		media:        media,
		logger:       logger,
	}
}

// Start connects to the gateway and processes events until the context is
// cancelled. It automatically reconnects on transient errors. Candidates
// still open at shutdown are flushed through the pipeline.
func (s *Subscriber) Start(ctx context.Context) error {
	defer s.flush(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, _ := url.Parse(s.url)
	q := u.Query()
	for channelID := range s.channels {
		q.Add("channels", strconv.FormatInt(channelID, 10))
	}
	if cursor > 0 {
		q.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.cursors.GetCursor(ctx, cursorStreamName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to chat gateway", "url", wsURL)

	header := make(map[string][]string)
	if s.token != "" {
		header["Authorization"] = []string{"Bearer " + s.token}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to chat gateway")

	lastCursorSave := time.Now()
	var latestCursor int64
	var eventsReceived, candidatesClosed, postingsCreated int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event gatewayEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++
		metrics.StreamEventsTotal.Inc()
		latestCursor = event.Seq

		if event.Kind == "message" && event.Message != nil {
			closed, created := s.handleMessage(ctx, event.Message)
			if closed {
				candidatesClosed++
			}
			if created {
				postingsCreated++
			}
		}

		if time.Since(lastStatsLog) >= statsLogInterval {
			s.logger.Info("stream stats",
				"events_received", eventsReceived,
				"candidates_closed", candidatesClosed,
				"postings_created", postingsCreated,
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= cursorSaveInterval {
			if err := s.cursors.UpdateCursor(ctx, cursorStreamName, latestCursor); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

// handleMessage pushes one message through the consolidator and publishes any
// candidate it closed.
func (s *Subscriber) handleMessage(ctx context.Context, msg *messageEvent) (closed, created bool) {
	category, ok := s.channels[msg.ChatID]
	if !ok {
		return false, false
	}

	if consolidate.Blocked(msg.Text) {
		metrics.MessagesBlockedTotal.Inc()
		s.logger.Debug("message blocked", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		return false, false
	}

	raw := domain.RawMessage{
		ChannelID: msg.ChatID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		Timestamp: time.Unix(msg.Date, 0).UTC(),
		HasPhoto:  msg.PhotoRef != "",
		PhotoRef:  msg.PhotoRef,
		Category:  category,
	}

	candidate := s.consolidator.Push(raw)
	if candidate == nil {
		return false, false
	}
	metrics.CandidatesTotal.Inc()
	return true, s.publish(ctx, candidate)
}

// publish geocodes a closed candidate and persists it. Rejections are
// per-candidate and only logged; store failures are logged and the candidate
// is dropped (the stream must keep moving).
func (s *Subscriber) publish(ctx context.Context, candidate *domain.PostingCandidate) bool {
	geocoded, rejected, err := s.geocoder.GeocodeBatch([]*domain.PostingCandidate{candidate}, true)
	if err != nil {
		s.logger.Error("geocoding failed", "error", err)
		return false
	}
	if len(rejected) > 0 || len(geocoded) == 0 {
		metrics.GeocodeRejectedTotal.Inc()
		s.logger.Debug("location could not be determined",
			"text", geocode.DisplayName(candidate.MessageText))
		return false
	}

	posting := geocoded[0]
	id, err := s.service.CreatePosting(ctx, posting, nil)
	if err != nil {
		s.logger.Error("failed to insert posting", "error", err)
		return false
	}
	metrics.PostingsInsertedTotal.Inc()
	s.logger.Info("posting created from chat", "post_id", id, "address", posting.Address)

	// Media downloads run after the insert so the files land under the
	// assigned id. They happen inline on the consumer goroutine; message
	// ordering is preserved because consolidation already finished.
	for i, ref := range posting.PhotoRefs {
		body, err := s.media.Download(ctx, ref)
		if err != nil {
			s.logger.Warn("photo download failed", "post_id", id, "ref", ref, "error", err)
			continue
		}
		if err := s.service.StorePhoto(ctx, id, i, body); err != nil {
			s.logger.Warn("photo store failed", "post_id", id, "ref", ref, "error", err)
		}
		body.Close()
	}
	return true
}

// flush publishes candidates still open at shutdown.
func (s *Subscriber) flush(ctx context.Context) {
	for _, candidate := range s.consolidator.Flush() {
		s.publish(ctx, candidate)
	}
}
