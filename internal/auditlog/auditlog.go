// Package auditlog keeps a daily JSON-lines record of pre-trade checks so
// a flagged bond can be traced back to the run that flagged it.
package auditlog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"repo-pretrade/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

type Entry struct {
	Time       string   `json:"time"`
	Kind       string   `json:"kind"`
	RunID      string   `json:"run_id"`
	ISIN       string   `json:"isin,omitempty"`
	Earliest   string   `json:"earliest_date,omitempty"`
	Horizon    int      `json:"horizon_days,omitempty"`
	Records    int      `json:"records,omitempty"`
	Flagged    int      `json:"flagged,omitempty"`
	Unresolved int      `json:"unresolved,omitempty"`
	Failed     int      `json:"failed,omitempty"`
	Rejected   []string `json:"rejected,omitempty"`
	Cancelled  bool     `json:"cancelled,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
}

// Log appends entries under dir, one file per local calendar day.
// A nil *Log discards everything.
type Log struct {
	dir string
	loc *time.Location
	now func() time.Time
	mu  sync.Mutex
}

func New(dir string, loc *time.Location) *Log {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Log{dir: dir, loc: loc, now: time.Now}
}

func (l *Log) dailyFilepath(t time.Time) string {
	return filepath.Join(l.dir, t.In(l.loc).Format(types.DateLayout)+".jsonl")
}

// AppendBatch writes one summary line for the run and one line per
// flagged record.
func (l *Log) AppendBatch(res *types.BatchResult) error {
	if l == nil || res == nil {
		return nil
	}
	now := l.now().In(l.loc)
	stamp := now.Format(timeLayout)

	entries := []Entry{{
		Time:       stamp,
		Kind:       "batch",
		RunID:      res.RunID,
		Horizon:    res.Horizon,
		Records:    len(res.Records),
		Flagged:    res.Flagged,
		Unresolved: res.Unresolved,
		Failed:     res.Failed,
		Rejected:   append(append([]string{}, res.Malformed...), res.BadChecksum...),
		Cancelled:  res.Cancelled,
		DurationMs: res.Duration.Milliseconds(),
	}}
	for _, r := range res.FlaggedRecords() {
		entries = append(entries, Entry{
			Time:     stamp,
			Kind:     "flag",
			RunID:    res.RunID,
			ISIN:     r.ISIN,
			Earliest: types.FormatDate(types.MinDate(r.KeyDates()...)),
			Horizon:  res.Horizon,
		})
	}
	return l.append(now, entries)
}

func (l *Log) append(now time.Time, entries []Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
	}
	return nil
}

// CompressOlder gzips daily files last modified more than retentionDays
// ago and removes the originals.
func (l *Log) CompressOlder(retentionDays int) error {
	if l == nil || retentionDays <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, -retentionDays)
	matches, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return err
	}
	for _, p := range matches {
		info, err := os.Stat(p)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := gzipFile(p); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
	}
	return nil
}

func gzipFile(p string) error {
	gz := p + ".gz"
	if _, err := os.Stat(gz); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}
