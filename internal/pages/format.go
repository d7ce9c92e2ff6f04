package pages

import (
	"math"
	"strings"
	"time"

	"github.com/salonmirai/sitesync/internal/content"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer = message.NewPrinter(language.Japanese)
	jst     = time.FixedZone("JST", 9*60*60)
)

// Yen formats an amount with thousands separators, e.g. ¥8,500.
func Yen(n int) string { return printer.Sprintf("¥%d", n) }

// Date formats an ISO timestamp as 2024年9月17日 in Japan time.
// Unparseable input is returned unchanged.
func Date(ts string) string {
	t, err := content.ParseTimestamp(ts)
	if err != nil {
		return ts
	}
	return t.In(jst).Format("2006年1月2日")
}

// Excerpt cuts s to n runes and appends "..." when it was longer.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// SplitList splits a comma-separated list, trimming entries and dropping empties.
func SplitList(s string) []string {
	return splitTrim(strings.Split(s, ","))
}

// SplitLines splits newline-separated text. A literal "\n" sequence, as
// written by older admin screens, also separates lines.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return splitTrim(strings.Split(s, "\n"))
}

func splitTrim(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Stars breaks a rating into full, half and empty stars out of five.
type Stars struct {
	Full  int `json:"full"`
	Half  int `json:"half"`
	Empty int `json:"empty"`
}

func RatingStars(rating float64) Stars {
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}
	full := int(math.Floor(rating))
	half := 0
	if rating-float64(full) >= 0.5 {
		half = 1
	}
	return Stars{Full: full, Half: half, Empty: 5 - full - half}
}

// Discount is round((1 - sale/original) * 100). It is only defined when the
// original price is positive and a sale price is present.
func Discount(original, sale *int) (int, bool) {
	if original == nil || sale == nil || *original <= 0 {
		return 0, false
	}
	return int(math.Round((1 - float64(*sale)/float64(*original)) * 100)), true
}
