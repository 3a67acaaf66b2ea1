// internal/models/player_test.go
package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateNameCountsRunes(t *testing.T) {
	assert.Equal(t, "short", TruncateName("short"))
	assert.Equal(t, strings.Repeat("a", MaxNameLength), TruncateName(strings.Repeat("a", 30)))

	// Multi-byte names are cut on rune boundaries, never mid-character.
	long := strings.Repeat("ö", 30)
	got := TruncateName(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxNameLength, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("ö", MaxNameLength), got)
}

func TestBotIDPrefixDetection(t *testing.T) {
	bot := &Player{ID: BotIDPrefix + "abc123"}
	human := &Player{ID: "7f3c21aa"}
	assert.True(t, bot.IsBot())
	assert.False(t, human.IsBot())
}
