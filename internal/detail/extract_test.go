package detail

import (
	"testing"

	"hrbot/internal/stats"
)

func intp(v int) *int { return &v }

func TestCategory(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rbi  int
		want string
	}{
		{0, "0-run"},
		{1, "solo"},
		{2, "2-run"},
		{3, "3-run"},
		{4, "grand slam"},
		{5, "5-run"},
		{12, "12-run"},
	}
	for _, tt := range tests {
		if got := Category(tt.rbi); got != tt.want {
			t.Fatalf("Category(%d) = %q, want %q", tt.rbi, got, tt.want)
		}
	}
}

func TestExtractDistance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		play stats.PlayEvent
		want OptInt
	}{
		{name: "structured wins", play: stats.PlayEvent{Distance: intp(431), Description: "a 399-foot blast"}, want: Some(431)},
		{name: "feet", play: stats.PlayEvent{Description: "Judge homers (36) on a fly ball, 412 feet, to center."}, want: Some(412)},
		{name: "ft abbreviation", play: stats.PlayEvent{Description: "Deep drive 445 ft. to left"}, want: Some(445)},
		{name: "parentheses", play: stats.PlayEvent{Description: "Judge homers (36) to left (398)."}, want: Some(398)},
		{name: "adjective", play: stats.PlayEvent{Description: "a towering 467-foot shot"}, want: Some(467)},
		{name: "traveled", play: stats.PlayEvent{Description: "The ball traveled an estimated 402 into the seats"}, want: Some(402)},
		{name: "season count is not a distance", play: stats.PlayEvent{Description: "Aaron Judge homers (36) on a line drive to left field."}, want: OptInt{}},
		{name: "implausible number ignored", play: stats.PlayEvent{Description: "a 100-foot pop"}, want: OptInt{}},
		{name: "zero structured falls through", play: stats.PlayEvent{Distance: intp(0)}, want: OptInt{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractDistance(tt.play); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractRBI(t *testing.T) {
	t.Parallel()
	scored := []stats.RunnerMovement{{End: "score", Scored: true}, {End: "score", Scored: true}, {End: "2B"}}
	tests := []struct {
		name string
		play stats.PlayEvent
		want int
	}{
		{name: "structured", play: stats.PlayEvent{RBI: intp(3), Runners: scored}, want: 3},
		{name: "zero structured uses runners", play: stats.PlayEvent{RBI: intp(0), Runners: scored}, want: 2},
		{name: "grand slam keyword", play: stats.PlayEvent{Description: "Judge hits a grand slam (12) to right."}, want: 4},
		{name: "three-run keyword", play: stats.PlayEvent{Description: "a three-run homer"}, want: 3},
		{name: "2-run keyword", play: stats.PlayEvent{Event: "Home Run", Description: "2-run shot"}, want: 2},
		{name: "solo keyword", play: stats.PlayEvent{Description: "solo homer"}, want: 1},
		{name: "scores count", play: stats.PlayEvent{Description: "Judge homers. Soto scores. Stanton scores."}, want: 3},
		{name: "default", play: stats.PlayEvent{Description: "Judge homers (36) on a fly ball."}, want: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractRBI(tt.play); got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsHomeRunBy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		play stats.PlayEvent
		want bool
	}{
		{name: "event type", play: stats.PlayEvent{BatterID: "1", EventType: "home_run"}, want: true},
		{name: "description", play: stats.PlayEvent{BatterID: "1", Description: "Judge homers (3)"}, want: true},
		{name: "other batter", play: stats.PlayEvent{BatterID: "2", EventType: "home_run"}},
		{name: "not a homer", play: stats.PlayEvent{BatterID: "1", EventType: "double", Description: "doubles"}},
	}
	for _, tt := range tests {
		if got := IsHomeRunBy(tt.play, "1"); got != tt.want {
			t.Fatalf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGameLogRBI(t *testing.T) {
	t.Parallel()
	tests := []struct{ hr, rbi, want int }{
		{1, 0, 1},
		{1, 2, 2},
		{1, 6, 4},
		{2, 3, 2},
		{2, 2, 1},
		{3, 0, 1},
	}
	for _, tt := range tests {
		if got := gameLogRBI(tt.hr, tt.rbi); got != tt.want {
			t.Fatalf("gameLogRBI(%d, %d) = %d, want %d", tt.hr, tt.rbi, got, tt.want)
		}
	}
}
