// Package store persists calibration profiles, tracking results and live
// snapshots.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/dudu/interviewlens/internal/gaze"
	"github.com/dudu/interviewlens/internal/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoProfile is returned by Latest when the directory holds no profile
var ErrNoProfile = errors.New("no calibration profile found")

const profilePrefix = "calibration_"

// ProfileStore keeps calibration profiles as JSON files in one directory
type ProfileStore struct {
	dir string
}

// NewProfileStore creates a store rooted at dir
func NewProfileStore(dir string) *ProfileStore {
	return &ProfileStore{dir: dir}
}

// Dir returns the store directory
func (s *ProfileStore) Dir() string {
	return s.dir
}

// Save writes the profile and returns its path. File names sort by
// creation time.
func (s *ProfileStore) Save(p *gaze.Profile) (string, error) {
	if p == nil || p.Model == nil {
		return "", fmt.Errorf("save profile: profile has no model")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}

	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("%s%s_%s.json", profilePrefix, p.CreatedAt.UTC().Format("20060102_150405"), id)
	path := filepath.Join(s.dir, name)

	// written beside the target, then renamed into place
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write profile: %w", err)
	}

	log.Info(log.Fields{"path": path, "method": p.Method, "mean_error": p.MeanError}, "calibration profile saved")
	return path, nil
}

// Load reads a profile file
func (s *ProfileStore) Load(path string) (*gaze.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	var p gaze.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", filepath.Base(path), err)
	}
	if p.Model == nil {
		return nil, fmt.Errorf("profile %s has no model", filepath.Base(path))
	}
	return &p, nil
}

// List returns the profile paths, oldest first
func (s *ProfileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, profilePrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Latest loads the most recent profile. Unreadable files are skipped.
func (s *ProfileStore) Latest() (*gaze.Profile, string, error) {
	paths, err := s.List()
	if err != nil {
		return nil, "", err
	}
	for i := len(paths) - 1; i >= 0; i-- {
		p, err := s.Load(paths[i])
		if err != nil {
			log.Warn(log.Fields{"path": paths[i], "error": err.Error()}, "skipping unreadable profile")
			continue
		}
		return p, paths[i], nil
	}
	return nil, "", fmt.Errorf("%w in %s", ErrNoProfile, s.dir)
}
