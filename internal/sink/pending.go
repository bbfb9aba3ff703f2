package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tova-go/internal/models"
)

// PendingStore keeps undelivered submissions as one JSON file per session.
type PendingStore struct {
	dir string
}

func NewPendingStore(dir string) *PendingStore {
	return &PendingStore{dir: dir}
}

func (p *PendingStore) path(sessionID string) string {
	return filepath.Join(p.dir, sessionID+".json")
}

// Save writes sub atomically, replacing an earlier copy.
func (p *PendingStore) Save(sub models.Submission) error {
	if sub.SessionID == "" || strings.ContainsAny(sub.SessionID, `/\`) {
		return fmt.Errorf("invalid session id %q", sub.SessionID)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("creating pending directory: %w", err)
	}
	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(p.dir, ".pending-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p.path(sub.SessionID))
}

// List returns every pending submission, oldest test first.
func (p *PendingStore) List() ([]models.Submission, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var subs []models.Submission
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var sub models.Submission
		if err := json.Unmarshal(data, &sub); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", e.Name(), err)
		}
		subs = append(subs, sub)
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].TestDate.Before(subs[j].TestDate) })
	return subs, nil
}

// Remove deletes a delivered submission. Removing a missing one is not an
// error.
func (p *PendingStore) Remove(sessionID string) error {
	err := os.Remove(p.path(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
