// Package timewindow infers a lookback window in minutes from Turkish
// natural-language questions. The result pre-seeds tool arguments when the
// model omits a window; it never overrides an explicit argument.
package timewindow

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// MinMinutes and MaxMinutes bound every inferred window.
	MinMinutes = 1
	MaxMinutes = 1440
)

var numberWords = map[string]int{
	"bir":   1,
	"iki":   2,
	"üç":    3,
	"dört":  4,
	"beş":   5,
	"altı":  6,
	"yedi":  7,
	"sekiz": 8,
	"dokuz": 9,
	"on":    10,
	"yirmi": 20,
	"otuz":  30,
	"kırk":  40,
	"elli":  50,
}

var unitMinutes = map[string]int{
	"dakika": 1,
	"dk":     1,
	"saat":   60,
	"sa":     60,
	"gün":    1440,
}

// relativePattern matches phrases like "son 2 saat", "geçen on dakika" or
// "geçtiğimiz 3 gün". Longer unit spellings come first so "saat" is not
// consumed as "sa".
var relativePattern = regexp.MustCompile(
	`(?:son|geçen|geçtiğimiz)\s+(\d+|bir|iki|üç|dört|beş|altı|yedi|sekiz|dokuz|on|yirmi|otuz|kırk|elli)\s*(dakika|dk|saat|sa|gün)`,
)

// Infer extracts a time window in minutes from a question. The second
// return value reports whether any window phrase was recognized.
func Infer(question string) (int, bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return 0, false
	}

	if strings.Contains(q, "yarım saat") {
		return 30, true
	}
	if strings.Contains(q, "bugün") {
		return MaxMinutes, true
	}
	if strings.Contains(q, "şu an") || strings.Contains(q, "şuan") || strings.Contains(q, "şimdi") {
		return 5, true
	}

	m := relativePattern.FindStringSubmatch(q)
	if m == nil {
		return 0, false
	}

	quantity, ok := parseQuantity(m[1])
	if !ok {
		return 0, false
	}
	unit, ok := unitMinutes[m[2]]
	if !ok {
		return 0, false
	}

	return clamp(quantity * unit), true
}

func parseQuantity(token string) (int, bool) {
	if n, err := strconv.Atoi(token); err == nil {
		return n, true
	}
	n, ok := numberWords[token]
	return n, ok
}

func clamp(minutes int) int {
	if minutes < MinMinutes {
		return MinMinutes
	}
	if minutes > MaxMinutes {
		return MaxMinutes
	}
	return minutes
}
