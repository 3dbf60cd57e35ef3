package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"streamlify/internal/idea/model"
	"streamlify/pkg/logger"
)

// FileStore keeps the idea list as a single JSON array on disk and the vote
// ledger as a JSON object of user id -> voted idea ids next to it.
//
// Every operation re-reads the file, mutates in memory and replaces the file
// wholesale. The mutex serializes those cycles within the process and each
// write goes through a temp file + rename, so readers never see a torn file.
type FileStore struct {
	mu         sync.Mutex
	path       string
	ledgerPath string
	now        func() time.Time
}

func NewFileStore(path, ledgerPath string) *FileStore {
	return &FileStore{path: path, ledgerPath: ledgerPath, now: time.Now}
}

func (s *FileStore) List(ctx context.Context) ([]model.Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIdeas()
}

func (s *FileStore) Create(ctx context.Context, text string) ([]model.Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ideas, err := s.readIdeas()
	if err != nil {
		return nil, err
	}
	ideas = append(ideas, model.Idea{
		ID:    nextIdeaID(s.now(), ideas),
		Text:  text,
		Votes: 0,
	})
	if err := writeJSON(s.path, ideas); err != nil {
		return nil, err
	}
	return ideas, nil
}

func (s *FileStore) Vote(ctx context.Context, id int64) ([]model.Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ideas, err := s.readIdeas()
	if err != nil {
		return nil, err
	}
	for i := range ideas {
		if ideas[i].ID == id {
			ideas[i].Votes++
			if err := writeJSON(s.path, ideas); err != nil {
				return nil, err
			}
			return ideas, nil
		}
	}
	return ideas, nil
}

func (s *FileStore) Flush(ctx context.Context) ([]model.Idea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := []model.Idea{}
	if err := writeJSON(s.path, empty); err != nil {
		return nil, err
	}
	if err := writeJSON(s.ledgerPath, map[string][]int64{}); err != nil {
		return nil, err
	}
	return empty, nil
}

func (s *FileStore) VotedBy(ctx context.Context, userID string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.readLedger()
	if err != nil {
		return nil, err
	}
	ids := append([]int64{}, ledger[userID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *FileStore) RecordVote(ctx context.Context, userID string, ideaID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.readLedger()
	if err != nil {
		return false, err
	}
	for _, id := range ledger[userID] {
		if id == ideaID {
			return false, nil
		}
	}
	ledger[userID] = append(ledger[userID], ideaID)
	if err := writeJSON(s.ledgerPath, ledger); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) readIdeas() ([]model.Idea, error) {
	ideas := []model.Idea{}
	if err := readJSON(s.path, &ideas, []model.Idea{}); err != nil {
		return nil, err
	}
	if ideas == nil {
		ideas = []model.Idea{}
	}
	return ideas, nil
}

func (s *FileStore) readLedger() (map[string][]int64, error) {
	ledger := map[string][]int64{}
	if err := readJSON(s.ledgerPath, &ledger, map[string][]int64{}); err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = map[string][]int64{}
	}
	return ledger, nil
}

// readJSON decodes path into v. A missing file is initialized with empty and
// leaves v untouched.
func readJSON(path string, v any, empty any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Sugar.Infof("Initializing empty store file %s", path)
		return writeJSON(path, empty)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		logger.Sugar.Errorf("Error parsing store file %s: %v", path, err)
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically with the indented JSON encoding of v.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
