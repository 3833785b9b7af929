package alarms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"wakemeup/internal/config"
	"wakemeup/internal/domain/alarm"
)

// Repository defines persistence operations for the alarm collection.
type Repository interface {
	Load(ctx context.Context) ([]alarm.Alarm, error)
	Save(ctx context.Context, list []alarm.Alarm) error
}

// ErrNotFound is returned when the alarm file does not exist yet.
var ErrNotFound = errors.New("alarms not found")

// FileRepository persists the alarm collection to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON alarms file.
	path string
	// mu protects concurrent access to the alarms file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the full alarm collection from disk. A record missing a required
// field fails the whole load; only the legacy initial-location fallback is
// tolerated (handled by the alarm decoder).
func (r *FileRepository) Load(_ context.Context) ([]alarm.Alarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read alarms file: %w", err)
	}

	var list []alarm.Alarm
	if err = json.Unmarshal(contents, &list); err != nil {
		return nil, fmt.Errorf("decode alarms file: %w", err)
	}

	for i := range list {
		if err = list[i].Validate(); err != nil {
			return nil, fmt.Errorf("alarm %q: %w", list[i].ID, err)
		}
	}

	return list, nil
}

// Save writes the full alarm collection to disk.
func (r *FileRepository) Save(_ context.Context, list []alarm.Alarm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if list == nil {
		list = []alarm.Alarm{}
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write alarms file: %w", err)
	}

	return nil
}
