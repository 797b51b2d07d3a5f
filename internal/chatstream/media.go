package chatstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MediaClient downloads photo attachments from the chat gateway's HTTP API.
type MediaClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewMediaClient creates a client for the gateway media endpoint. The base URL
// may be the websocket subscription URL; the scheme is rewritten for HTTP.
func NewMediaClient(baseURL, token string) *MediaClient {
	baseURL = strings.TrimSuffix(baseURL, "/subscribe")
	if after, ok := strings.CutPrefix(baseURL, "wss://"); ok {
		baseURL = "https://" + after
	} else if after, ok := strings.CutPrefix(baseURL, "ws://"); ok {
		baseURL = "http://" + after
	}
	return &MediaClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Download fetches the photo bytes for a media id. The caller must close the
// returned reader.
func (c *MediaClient) Download(ctx context.Context, photoRef string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/media/"+photoRef, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}
