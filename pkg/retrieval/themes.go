package retrieval

import (
	"strings"

	"github.com/nickyai/memex/pkg/memory"
)

// modeThemes maps each performance mode to words whose presence in fact
// content signals relevance for that mode. Singular forms only; substring
// matching covers plurals. These are tunable defaults, not a taxonomy.
var modeThemes = map[memory.Mode][]string{
	memory.ModePodcast:   {"episode", "show", "listener", "mic", "segment", "guest"},
	memory.ModeStreaming: {"stream", "chat", "viewer", "live", "clip", "emote"},
	memory.ModeDiscord:   {"server", "channel", "ping", "thread", "emoji"},
}

// themeOverlap counts how many of the mode's theme words appear in the
// content. Chat mode has no theme set and always scores zero.
func themeOverlap(mode memory.Mode, content string) int {
	words, ok := modeThemes[mode]
	if !ok {
		return 0
	}

	lower := strings.ToLower(content)
	hits := 0
	for _, word := range words {
		if strings.Contains(lower, word) {
			hits++
		}
	}
	return hits
}
