package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// malformedSuffix marks set-aside claim files that failed to decode.
// RecoverStale never requeues them.
const malformedSuffix = ".malformed"

// Spool is a task channel on shared storage. Every task is one JSON
// file; submission writes it atomically into pending/ and a worker
// claims it by renaming it into claimed/. Rename is atomic on a
// POSIX filesystem, so each task file is claimed by exactly one worker
// per delivery, while a crashed worker's claim can later be requeued,
// giving at-least-once delivery.
type Spool struct {
	pending string
	claimed string

	// PollInterval is how often Receive re-scans an empty pending
	// directory.
	PollInterval time.Duration
}

// OpenSpool creates (or reuses) a spool rooted at dir.
func OpenSpool(dir string) (*Spool, error) {
	s := &Spool{
		pending:      filepath.Join(dir, "pending"),
		claimed:      filepath.Join(dir, "claimed"),
		PollInterval: time.Second,
	}
	for _, d := range []string{s.pending, s.claimed} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create spool directory: %w", err)
		}
	}
	return s, nil
}

func (s *Spool) Submit(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	name := uuid.NewString() + ".json"
	tmp := filepath.Join(s.pending, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.pending, name)); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (s *Spool) Receive(ctx context.Context) (Delivery, error) {
	for {
		d, ok, err := s.tryClaim()
		if err != nil {
			return Delivery{}, err
		}
		if ok {
			return d, nil
		}

		select {
		case <-ctx.Done():
			return Delivery{}, ctx.Err()
		case <-time.After(s.PollInterval):
		}
	}
}

// tryClaim walks pending/ in name order and renames the first file it
// wins into claimed/. Losing a rename race just means another worker
// got there first; we move on to the next candidate.
func (s *Spool) tryClaim() (Delivery, bool, error) {
	entries, err := os.ReadDir(s.pending)
	if err != nil {
		return Delivery{}, false, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		claimedPath := filepath.Join(s.claimed, name)
		if err := os.Rename(filepath.Join(s.pending, name), claimedPath); err != nil {
			continue
		}
		// Stamp the claim time; RecoverStale ages claims by mtime.
		now := time.Now()
		os.Chtimes(claimedPath, now, now)

		data, err := os.ReadFile(claimedPath)
		if err != nil {
			return Delivery{}, false, err
		}
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			// A malformed task file is unrecoverable; set it aside in
			// claimed/ for inspection and move on to the next
			// candidate so the tasks behind it still get delivered.
			os.Rename(claimedPath, claimedPath+malformedSuffix)
			continue
		}

		return Delivery{
			Task:    t,
			Ack:     func() error { return os.Remove(claimedPath) },
			Requeue: func() error { return os.Rename(claimedPath, filepath.Join(s.pending, name)) },
		}, true, nil
	}
	return Delivery{}, false, nil
}

// RecoverStale moves claims older than age back into pending/ so that
// tasks held by crashed workers get redelivered.
func (s *Spool) RecoverStale(age time.Duration) (int, error) {
	entries, err := os.ReadDir(s.claimed)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-age)
	n := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), malformedSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Rename(filepath.Join(s.claimed, e.Name()), filepath.Join(s.pending, e.Name())); err == nil {
			n++
		}
	}
	return n, nil
}

// Len returns the number of pending task files.
func (s *Spool) Len() (int, error) {
	entries, err := os.ReadDir(s.pending)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n, nil
}
