package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Beach ", "sunset", "beach", "", "  "})
	assert.Equal(t, []string{"beach", "sunset"}, got)
}

func TestImageTokens(t *testing.T) {
	images := []Image{
		{Filename: "a.jpg", Caption: "A dog, on the Beach!", Tags: []string{"dog", "Beach"}},
		{Filename: "b.png", Tags: []string{"Calm"}},
	}
	assert.Equal(t, []string{"dog", "beach", "a", "on", "the", "calm"}, ImageTokens(images))
	assert.Empty(t, ImageTokens(nil))
}
