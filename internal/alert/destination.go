package alert

import (
	"fmt"
	"strconv"
	"strings"

	kit "hrbot/internal/transport"
)

// Destination is a configured chat id, optionally with a forum thread: "-1001234" or "-1001234:7".
type Destination string

// Target parses d. Errors wrap ErrInvalidDestination.
func (d Destination) Target() (kit.ChatTarget, error) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return kit.ChatTarget{}, fmt.Errorf("%w: empty", ErrInvalidDestination)
	}
	chatPart, threadPart, hasThread := strings.Cut(s, ":")
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatPart), 10, 64)
	if err != nil || chatID == 0 {
		return kit.ChatTarget{}, fmt.Errorf("%w: %q", ErrInvalidDestination, s)
	}
	t := kit.ChatTarget{ChatID: chatID}
	if hasThread {
		tid, err := strconv.Atoi(strings.TrimSpace(threadPart))
		if err != nil || tid < 0 {
			return kit.ChatTarget{}, fmt.Errorf("%w: bad thread in %q", ErrInvalidDestination, s)
		}
		t.ThreadID = tid
	}
	return t, nil
}

// ParseDestinations converts raw config strings. Entries are kept even when
// invalid so the failure shows up per destination at send time.
func ParseDestinations(raw []string) []Destination {
	out := make([]Destination, 0, len(raw))
	for _, r := range raw {
		out = append(out, Destination(strings.TrimSpace(r)))
	}
	return out
}
