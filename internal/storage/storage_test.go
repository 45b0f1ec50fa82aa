package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	logx "hrbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestFileStoreRecentAlertsSurviveReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hrbot.db")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i, name := range []string{"Aaron Judge", "Shohei Ohtani", "Cal Raleigh"} {
		r := AlertRecord{At: time.Unix(int64(i), 0), PlayerID: "p" + name[:1], PlayerName: name, Total: 30 + i, Delta: 1, Sent: 2}
		if err := st.AppendAlert(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := st.AppendAudit(ctx, AuditEntry{Command: "check", OK: true}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.RecentAlerts(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].PlayerName != "Cal Raleigh" || got[1].PlayerName != "Shohei Ohtani" {
		t.Fatalf("order = %q, %q", got[0].PlayerName, got[1].PlayerName)
	}
}

func TestFileStoreRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLiteStoreAppendAndRecent(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	ctx := context.Background()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS alerts").WillReturnResult(sqlmock.NewResult(0, 0))
	st, err := newSQLiteStore(ctx, db, logx.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	at := time.Date(2025, 7, 4, 19, 5, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(at.Format(time.RFC3339Nano), "592450", "Aaron Judge", 2025, 35, 1, 2, "2-run", int64(412), nil, "play-by-play", 2, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := st.AppendAlert(ctx, AlertRecord{
		At: at, PlayerID: "592450", PlayerName: "Aaron Judge", Season: 2025, Total: 35, Delta: 1,
		RBI: 2, Category: "2-run", Distance: 412, Source: "play-by-play", Sent: 2,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows := sqlmock.NewRows([]string{"at", "player_id", "player_name", "season", "total", "delta", "rbi", "category", "distance", "game_id", "source", "sent", "failed"}).
		AddRow(at.Format(time.RFC3339Nano), "592450", "Aaron Judge", 2025, 35, 1, 2, "2-run", nil, int64(777), "game-log", 1, 1)
	mock.ExpectQuery("SELECT at, player_id").WithArgs(5).WillReturnRows(rows)

	got, err := st.RecentAlerts(ctx, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	r := got[0]
	if r.Distance != 0 || r.GameID != 777 || r.Failed != 1 || !r.At.Equal(at) {
		t.Fatalf("record = %+v", r)
	}

	mock.ExpectExec("INSERT INTO audit").WillReturnResult(sqlmock.NewResult(1, 1))
	if err := st.AppendAudit(ctx, AuditEntry{At: at, ActorID: 42, ChatID: -100, Command: "check", OK: true}); err != nil {
		t.Fatalf("audit: %v", err)
	}

	mock.ExpectClose()
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
