package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// writeSnapshot stores jobs as a JSON array at path. An empty list removes any stale file.
func writeSnapshot(path string, jobs []*Job) error {
	if len(jobs) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale snapshot: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// readSnapshot loads the jobs saved at path and deletes the file.
// A missing file yields no jobs and no error.
func readSnapshot(path string) ([]*Job, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var jobs []*Job
	decodeErr := json.Unmarshal(data, &jobs)

	// The file is consumed even when it cannot be decoded, so a corrupt
	// snapshot does not block every later start
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove snapshot: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", decodeErr)
	}

	valid := jobs[:0]
	for _, job := range jobs {
		if job != nil && job.ID != "" {
			valid = append(valid, job)
		}
	}
	return valid, nil
}
