package chatstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMediaClientRewritesWebsocketURL(t *testing.T) {
	c := NewMediaClient("wss://gateway.example.com/subscribe", "")
	assert.Equal(t, "https://gateway.example.com", c.baseURL)

	c = NewMediaClient("ws://gateway.example.com/subscribe", "")
	assert.Equal(t, "http://gateway.example.com", c.baseURL)

	c = NewMediaClient("http://gateway.example.com", "")
	assert.Equal(t, "http://gateway.example.com", c.baseURL)
}

func TestMediaClientDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media/m9", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	c := NewMediaClient(srv.URL, "secret")
	body, err := c.Download(context.Background(), "m9")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestMediaClientDownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such media", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewMediaClient(srv.URL, "")
	_, err := c.Download(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
