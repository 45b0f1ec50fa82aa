package detail

import (
	"regexp"
	"strconv"
	"strings"

	"hrbot/internal/stats"
)

// Extractor pulls one integer out of a play. Lists of extractors are tried in
// order and the first hit wins.
type Extractor func(p stats.PlayEvent) (int, bool)

var DistanceExtractors = []Extractor{
	structuredDistance,
	textDistance(regexp.MustCompile(`(?i)\b(\d{3})\s*(?:ft\b|feet\b)`)),
	textDistance(regexp.MustCompile(`\((\d{3})\)`)),
	textDistance(regexp.MustCompile(`(?i)\b(\d{3})-foot`)),
	textDistance(regexp.MustCompile(`(?i)\btravell?ed\s+(?:an?\s+)?(?:estimated\s+)?(\d{3})`)),
}

var RBIExtractors = []Extractor{
	structuredRBI,
	runnersScored,
	categoryKeyword,
	scoringVerbs,
}

// ExtractDistance returns the first distance found, or unknown.
func ExtractDistance(p stats.PlayEvent) OptInt {
	if v, ok := firstMatch(DistanceExtractors, p); ok {
		return Some(v)
	}
	return OptInt{}
}

// ExtractRBI returns the first RBI count found, defaulting to 1.
func ExtractRBI(p stats.PlayEvent) int {
	if v, ok := firstMatch(RBIExtractors, p); ok {
		return v
	}
	return 1
}

func firstMatch(xs []Extractor, p stats.PlayEvent) (int, bool) {
	for _, x := range xs {
		if v, ok := x(p); ok {
			return v, true
		}
	}
	return 0, false
}

// Home runs land between these; anything else in free text is some other number.
const (
	minDistance = 250
	maxDistance = 550
)

func structuredDistance(p stats.PlayEvent) (int, bool) {
	if p.Distance == nil || *p.Distance <= 0 {
		return 0, false
	}
	return *p.Distance, true
}

func textDistance(re *regexp.Regexp) Extractor {
	return func(p stats.PlayEvent) (int, bool) {
		m := re.FindStringSubmatch(p.Description)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < minDistance || n > maxDistance {
			return 0, false
		}
		return n, true
	}
}

func structuredRBI(p stats.PlayEvent) (int, bool) {
	if p.RBI == nil || *p.RBI <= 0 {
		return 0, false
	}
	return *p.RBI, true
}

func runnersScored(p stats.PlayEvent) (int, bool) {
	n := 0
	for _, r := range p.Runners {
		if r.Scored {
			n++
		}
	}
	return n, n > 0
}

var rbiKeywords = []struct {
	words []string
	rbi   int
}{
	{words: []string{"grand slam"}, rbi: 4},
	{words: []string{"3-run", "three-run"}, rbi: 3},
	{words: []string{"2-run", "two-run"}, rbi: 2},
	{words: []string{"solo"}, rbi: 1},
}

func categoryKeyword(p stats.PlayEvent) (int, bool) {
	text := strings.ToLower(p.Event + " " + p.Description)
	for _, k := range rbiKeywords {
		for _, w := range k.words {
			if strings.Contains(text, w) {
				return k.rbi, true
			}
		}
	}
	return 0, false
}

// scoringVerbs counts "X scores." sentences; the batter's own run makes it +1.
func scoringVerbs(p stats.PlayEvent) (int, bool) {
	n := strings.Count(strings.ToLower(p.Description), " scores")
	if n == 0 {
		return 0, false
	}
	return n + 1, true
}

// IsHomeRunBy reports whether p is a home run hit by batterID.
func IsHomeRunBy(p stats.PlayEvent, batterID string) bool {
	if batterID == "" || p.BatterID != batterID {
		return false
	}
	if strings.EqualFold(p.EventType, "home_run") {
		return true
	}
	text := strings.ToLower(p.Event + " " + p.Description)
	return strings.Contains(text, "home run") || strings.Contains(text, "homer")
}
