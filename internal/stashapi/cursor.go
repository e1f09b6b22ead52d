package stashapi

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CursorState is the persisted feed position, written after every page so a
// restarted ingester resumes where it left off.
type CursorState struct {
	NextChangeID string `msgpack:"next_change_id"`
	UpdatedAt    int64  `msgpack:"updated_at"`
}

// CursorStore persists the feed cursor to a msgpack state file.
type CursorStore struct {
	path string
	log  zerolog.Logger
}

// NewCursorStore creates a cursor store backed by the given file path.
func NewCursorStore(path string, log zerolog.Logger) *CursorStore {
	return &CursorStore{
		path: path,
		log:  log.With().Str("store", "feed-cursor").Logger(),
	}
}

// Load returns the persisted cursor, or the empty string when no state file
// exists yet (start of the feed).
func (s *CursorStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read cursor state: %w", err)
	}

	var state CursorState
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return "", fmt.Errorf("failed to decode cursor state: %w", err)
	}

	s.log.Debug().Str("cursor", state.NextChangeID).Msg("Loaded feed cursor")
	return state.NextChangeID, nil
}

// Save persists the cursor atomically (write temp file, then rename).
func (s *CursorStore) Save(nextChangeID string) error {
	state := CursorState{
		NextChangeID: nextChangeID,
		UpdatedAt:    time.Now().Unix(),
	}

	data, err := msgpack.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to encode cursor state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cursor state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace cursor state: %w", err)
	}

	return nil
}
