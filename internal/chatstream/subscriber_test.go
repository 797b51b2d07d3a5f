package chatstream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pennyme/freestuff/internal/domain"
)

func TestBuildURL(t *testing.T) {
	s := &Subscriber{
		url:      "wss://gateway.example.com/subscribe",
		channels: map[int64]domain.Category{-100123: domain.CategoryFood},
	}

	assert.Equal(t,
		"wss://gateway.example.com/subscribe?channels=-100123",
		s.buildURL(0))
	assert.Equal(t,
		"wss://gateway.example.com/subscribe?channels=-100123&cursor=42",
		s.buildURL(42))
}
