package chat

import (
	"strings"
	"unicode"
)

// PlaceFromMessage extracts the place named in a picture request such as
// "show me a picture of Chiang Mai". The place is the text after the first
// " of " that follows a trigger, up to the end of the sentence. fallback is
// returned when no place is named.
func PlaceFromMessage(message string, triggers []string, fallback string) string {
	lower := strings.ToLower(message)
	if len(lower) != len(message) {
		// Case folding changed byte offsets; work on the folded text.
		message = lower
	}

	at := -1
	for _, t := range triggers {
		if i := strings.Index(lower, strings.ToLower(t)); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	if at < 0 {
		return fallback
	}

	rest := lower[at:]
	i := strings.Index(rest, " of ")
	if i < 0 {
		return fallback
	}

	place := message[at+i+len(" of "):]
	if end := strings.IndexAny(place, ".?!,;\n"); end >= 0 {
		place = place[:end]
	}
	place = strings.TrimFunc(place, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if len(place) > 4 && strings.EqualFold(place[:4], "the ") {
		place = strings.TrimSpace(place[4:])
	}
	if place == "" {
		return fallback
	}
	return place
}
