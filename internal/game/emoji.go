package game

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// emojiClusterCount segments the input (whitespace removed) into grapheme
// clusters and reports how many there are, provided every cluster is an
// emoji. Mixed emoji/text input yields ok=false.
func emojiClusterCount(s string) (int, bool) {
	var b strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	rest := b.String()
	if rest == "" {
		return 0, false
	}

	count := 0
	state := -1
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if !isEmojiCluster(cluster) {
			return 0, false
		}
		count++
	}
	return count, true
}

// isEmojiCluster accepts pictographic symbols with their joiners and
// modifiers, regional-indicator flag pairs, and keycap sequences.
func isEmojiCluster(cluster string) bool {
	runes := []rune(cluster)
	if len(runes) == 0 {
		return false
	}

	if isRegionalIndicator(runes[0]) {
		for _, r := range runes {
			if !isRegionalIndicator(r) {
				return false
			}
		}
		return true
	}

	if isKeycapBase(runes[0]) {
		for _, r := range runes[1:] {
			if r != 0xFE0F && r != 0x20E3 {
				return false
			}
		}
		// Bare digits without the combining keycap are plain text.
		return runes[len(runes)-1] == 0x20E3
	}

	if !isPictographic(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !isPictographic(r) && !isEmojiJoiner(r) {
			return false
		}
	}
	return true
}

func isRegionalIndicator(r rune) bool {
	return r >= 0x1F1E6 && r <= 0x1F1FF
}

func isKeycapBase(r rune) bool {
	return (r >= '0' && r <= '9') || r == '#' || r == '*'
}

func isPictographic(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // symbols, pictographs, supplemental
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols + dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // misc symbols and arrows
		return true
	case r == 0x2139 || (r >= 0x2194 && r <= 0x21AA): // info, arrows
		return true
	case r >= 0x231A && r <= 0x231B: // watch, hourglass
		return true
	case r >= 0x23E9 && r <= 0x23FA: // media controls
		return true
	case r == 0x24C2 || r == 0x3030 || r == 0x303D || r == 0x3297 || r == 0x3299:
		return true
	case r >= 0x25AA && r <= 0x25FE: // geometric shapes used as emoji
		return true
	case r == 0xA9 || r == 0xAE || r == 0x2122: // ©, ®, ™ with VS16
		return true
	}
	return false
}

// isEmojiJoiner covers the glue runes a pictographic cluster may contain:
// ZWJ sequences, variation selectors, skin-tone modifiers and flag tags.
func isEmojiJoiner(r rune) bool {
	switch {
	case r == 0x200D || r == 0xFE0F || r == 0xFE0E:
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r >= 0xE0020 && r <= 0xE007F:
		return true
	}
	return false
}
