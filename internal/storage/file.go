package storage

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	logx "hrbot/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const recentKeep = 200

// fileStore writes JSON Lines:
//   - <prefix>.alerts.jsonl
//   - <prefix>.audit.jsonl
//
// The newest alerts are also kept in memory for RecentAlerts.
type fileStore struct {
	log logx.Logger

	mu        sync.Mutex
	alertFile *os.File
	auditFile *os.File
	recent    []AlertRecord // oldest first, capped at recentKeep
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	alertPath := prefix + ".alerts.jsonl"
	recent, err := loadRecentAlerts(alertPath, recentKeep)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("alert history unreadable; starting empty", logx.String("path", alertPath), logx.Err(err))
	}

	af, err := os.OpenFile(alertPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	uf, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}
	return &fileStore{log: log, alertFile: af, auditFile: uf, recent: recent}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.alertFile != nil {
		errs = append(errs, s.alertFile.Close())
		s.alertFile = nil
	}
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) AppendAlert(_ context.Context, r AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alertFile == nil {
		return ErrDisabled
	}
	if err := json.NewEncoder(s.alertFile).Encode(r); err != nil {
		return err
	}
	s.recent = append(s.recent, r)
	if len(s.recent) > recentKeep {
		s.recent = append([]AlertRecord(nil), s.recent[len(s.recent)-recentKeep:]...)
	}
	return nil
}

func (s *fileStore) RecentAlerts(_ context.Context, limit int) ([]AlertRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]AlertRecord, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrDisabled
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

// loadRecentAlerts keeps the last keep decodable lines of path. Corrupt lines are skipped.
func loadRecentAlerts(path string, keep int) ([]AlertRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []AlertRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		var r AlertRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.PlayerID == "" {
			continue
		}
		out = append(out, r)
		if len(out) > keep*2 {
			out = append([]AlertRecord(nil), out[len(out)-keep:]...)
		}
	}
	if len(out) > keep {
		out = out[len(out)-keep:]
	}
	return out, sc.Err()
}
