package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/pennyme/freestuff/internal/config"
	"github.com/pennyme/freestuff/internal/domain"
	"github.com/pennyme/freestuff/internal/metrics"
)

const maxUploadBytes = 32 << 20

// Server is the HTTP server for the posting board API.
type Server struct {
	cfg        *config.Config
	service    *domain.BoardService
	moderation domain.ModerationState
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server around the board service.
func NewServer(cfg *config.Config, service *domain.BoardService, moderation domain.ModerationState, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		service:    service,
		moderation: moderation,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /add_post", s.handleAddPost)
	mux.HandleFunc("GET /postings.json", s.handlePostings)
	mux.HandleFunc("GET /add_comment", s.handleAddComment)
	mux.HandleFunc("DELETE /delete_post/{id}", s.handleDeletePost)
	mux.HandleFunc("GET /deleted_post/{id}", s.handleDeletedPost)
	mux.HandleFunc("POST /block_user", s.handleBlockUser)
	mux.HandleFunc("POST /unblock_user", s.handleUnblockUser)
	mux.HandleFunc("GET /comment_trail", s.handleCommentTrail)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withRequestID(withLogging(logger, mux)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured handler chain, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Health check okay"})
}

func (s *Server) handleAddPost(w http.ResponseWriter, r *http.Request) {
	if s.blocked(r) {
		writeError(w, http.StatusForbidden, "User IP address is blocked")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	lng, lngErr := strconv.ParseFloat(r.FormValue("lon_coord"), 64)
	lat, latErr := strconv.ParseFloat(r.FormValue("lat_coord"), 64)
	if lngErr != nil || latErr != nil {
		writeError(w, http.StatusBadRequest, "Missing coordinates")
		return
	}

	expiration, err := domain.ParseExpiration(r.FormValue("expiration_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expiration_date, want YYYY-MM-DD")
		return
	}

	category := domain.Category(r.FormValue("category"))
	if category != domain.CategoryFood && category != domain.CategoryGoods {
		writeError(w, http.StatusBadRequest, "category must be Food or Goods")
		return
	}

	subcategory := r.FormValue("subcategory")
	if subcategory == "" {
		subcategory = domain.SubcategoryAll
	}

	files := r.MultipartForm.File["photos"]
	refs := make([]string, len(files))
	photos := make([]io.Reader, 0, len(files))
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	for i, header := range files {
		refs[i] = header.Filename
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid photo upload")
			return
		}
		closers = append(closers, f)
		photos = append(photos, f)
	}

	posting := &domain.GeocodedPosting{
		PostingCandidate: domain.PostingCandidate{
			SenderID:       r.FormValue("user_id"),
			MessageText:    r.FormValue("name"),
			Description:    r.FormValue("description"),
			Timestamp:      time.Now().UTC(),
			ExpirationDate: expiration,
			Category:       category,
			Subcategory:    subcategory,
			PhotoRefs:      refs,
		},
		Geometry:    &orb.Point{lng, lat},
		Address:     r.FormValue("address"),
		Name:        r.FormValue("name"),
		ExternalURL: r.FormValue("external_url"),
	}

	id, err := s.service.CreatePosting(r.Context(), posting, photos)
	if errors.Is(err, domain.ErrMissingCoordinates) {
		writeError(w, http.StatusBadRequest, "Missing coordinates")
		return
	}
	if err != nil {
		s.logger.Error("failed to create posting", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create posting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "id": id})
}

func (s *Server) handlePostings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	criteria := domain.ParseCriteria(r.URL.Query())

	postings, err := s.service.Feed(r.Context(), criteria)
	if err != nil {
		s.logger.Error("feed query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load postings")
		return
	}

	metrics.FeedRequestsTotal.Inc()
	metrics.FeedDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	writeJSON(w, http.StatusOK, toFeatureCollection(postings))
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	if s.blocked(r) {
		writeError(w, http.StatusForbidden, "User IP address is blocked")
		return
	}

	comment := r.URL.Query().Get("comment")
	postID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if comment == "" || err != nil {
		writeError(w, http.StatusBadRequest, "comment and id are required")
		return
	}

	now := time.Now().UTC()
	if err := s.service.AddComment(r.Context(), postID, comment, now); err != nil {
		if errors.Is(err, domain.ErrPostingNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		s.logger.Error("failed to add comment", "post_id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	// Track the commenter's trail for moderation; best effort.
	if err := s.moderation.RecordComment(r.Context(), clientAddr(r), postID, now, comment); err != nil {
		s.logger.Warn("failed to record comment trail", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Success!"})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	mode := domain.DeletionPickup
	switch m := r.URL.Query().Get("mode"); m {
	case "", string(domain.DeletionPickup):
	case string(domain.DeletionExpired):
		mode = domain.DeletionExpired
	default:
		mode = domain.DeletionOther
	}

	if _, err := s.service.ArchivePosting(r.Context(), postID, mode); err != nil {
		if errors.Is(err, domain.ErrPostingNotFound) {
			writeError(w, http.StatusNotFound, "Post not found")
			return
		}
		s.logger.Error("failed to delete posting", "post_id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete posting")
		return
	}
	metrics.PostingsArchivedTotal.Inc()

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Post %d deleted.", postID),
	})
}

// handleDeletedPost serves an archived posting so clients can confirm what a
// deletion removed.
func (s *Server) handleDeletedPost(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid post id")
		return
	}

	deleted, err := s.service.ArchivedPosting(r.Context(), postID)
	if errors.Is(err, domain.ErrPostingNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load archived posting", "post_id", postID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load archived posting")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":            deleted.ID,
		"name":          deleted.Name,
		"address":       deleted.Address,
		"category":      string(deleted.Category),
		"deleted_at":    deleted.DeletedAt.Format("2006-01-02 15:04"),
		"deletion_mode": string(deleted.DeletionMode),
	})
}

func (s *Server) handleBlockUser(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("addr")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "addr is required")
		return
	}
	if err := s.moderation.Block(r.Context(), addr); err != nil {
		s.logger.Error("failed to block address", "addr", addr, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to block address")
		return
	}
	s.logger.Info("address blocked", "addr", addr)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success!"})
}

func (s *Server) handleUnblockUser(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("addr")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "addr is required")
		return
	}
	if err := s.moderation.Unblock(r.Context(), addr); err != nil {
		s.logger.Error("failed to unblock address", "addr", addr, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unblock address")
		return
	}
	s.logger.Info("address unblocked", "addr", addr)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success!"})
}

// handleCommentTrail serves an address's recorded comments, the input for a
// block decision.
func (s *Server) handleCommentTrail(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("addr")
	if addr == "" {
		writeError(w, http.StatusBadRequest, "addr is required")
		return
	}
	trail, err := s.moderation.CommentTrail(r.Context(), addr)
	if err != nil {
		s.logger.Error("failed to load comment trail", "addr", addr, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load comment trail")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"addr": addr, "comments": trail})
}

// blocked checks the moderation block list; a moderation backend failure is
// logged and treated as not blocked rather than locking everyone out.
func (s *Server) blocked(r *http.Request) bool {
	blocked, err := s.moderation.IsBlocked(r.Context(), clientAddr(r))
	if err != nil {
		s.logger.Warn("moderation check failed", "error", err)
		return false
	}
	return blocked
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// toFeatureCollection renders postings as the GeoJSON document the map
// frontend consumes.
func toFeatureCollection(postings []domain.Posting) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range postings {
		p := &postings[i]
		feature := geojson.NewFeature(p.Geometry)
		feature.Properties = geojson.Properties{
			"id":              p.ID,
			"name":            p.Name,
			"time_posted":     p.TimePosted.Format("2006-01-02 15:04"),
			"expiration_date": domain.FormatExpiration(p.ExpirationDate),
			"photo_id":        p.PhotoID,
			"category":        string(p.Category),
			"subcategory":     p.Subcategory,
			"description":     p.Description,
			"address":         p.Address,
			"external_url":    p.ExternalURL,
			"status":          string(p.Status),
			"user_id":         p.UserID,
		}
		fc.Append(feature)
	}
	return fc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// withRequestID tags every request with an id echoed in the response headers
// and available to the logging middleware.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r.Header.Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"request_id", r.Header.Get("X-Request-ID"),
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
