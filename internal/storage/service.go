package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const DefaultDirPermissions = 0o755

var (
	ErrInvalidName = errors.New("invalid filename")
	ErrNotFound    = errors.New("file not found")
)

// Usage summarises the contents of the downloads directory
type Usage struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Service is the downloads directory. Every path it accepts is a bare filename
// relative to the root filesystem.
type Service struct {
	fs afero.Afero
}

// NewService wraps a filesystem whose root is the downloads directory
func NewService(root afero.Fs) *Service {
	return &Service{fs: afero.Afero{Fs: root}}
}

// NewOsService creates dir if needed and returns a Service confined to it
func NewOsService(dir string) (*Service, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create downloads directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve downloads directory: %w", err)
	}
	return NewService(afero.NewBasePathFs(osFs, abs)), nil
}

// ValidateName rejects anything that is not a plain filename
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	if filepath.Base(name) != name {
		return ErrInvalidName
	}
	return nil
}

// Exists reports whether name is a regular file in the downloads directory
func (s *Service) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Open opens name for reading. The caller closes the file.
func (s *Service) Open(name string) (afero.File, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, ErrNotFound
	}
	return f, nil
}

// Usage counts regular files and their total size
func (s *Service) Usage() (Usage, error) {
	var usage Usage
	entries, err := s.fs.ReadDir("/")
	if err != nil {
		return usage, fmt.Errorf("failed to read downloads directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		usage.Files++
		usage.Bytes += entry.Size()
	}
	return usage, nil
}

// RemoveOlderThan deletes regular files last modified before now-ttl
func (s *Service) RemoveOlderThan(ttl time.Duration, now time.Time) (int, error) {
	entries, err := s.fs.ReadDir("/")
	if err != nil {
		return 0, fmt.Errorf("failed to read downloads directory: %w", err)
	}

	cutoff := now.Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if !entry.Mode().IsRegular() || !entry.ModTime().Before(cutoff) {
			continue
		}
		if err := s.fs.Remove(entry.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("op", "storage/cleanup").Err(err).Msgf("failed to remove %s", entry.Name())
			continue
		}
		removed++
	}
	return removed, nil
}

// StartJanitor removes expired files every interval until ctx is done.
// A non-positive ttl disables expiry.
func (s *Service) StartJanitor(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := s.RemoveOlderThan(ttl, now)
			if err != nil {
				log.Error().Str("op", "storage/cleanup").Err(err).Msg("cleanup failed")
				continue
			}
			if removed > 0 {
				log.Info().Str("op", "storage/cleanup").Int("removed", removed).Msg("expired downloads removed")
			}
		}
	}
}
