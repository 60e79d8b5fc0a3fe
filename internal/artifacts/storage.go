package artifacts

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"convertd/internal/logging"
)

// Storage provides filesystem-backed artifact operations.
type Storage struct {
	logger *slog.Logger
}

// NewStorage constructs artifact storage.
func NewStorage(logger *slog.Logger) *Storage {
	return &Storage{logger: logging.NewComponentLogger(logger, "artifacts")}
}

// Exists reports whether the referenced artifact is present and is a file.
func (s *Storage) Exists(ref string) bool {
	if strings.TrimSpace(ref) == "" {
		return false
	}
	info, err := os.Stat(ref)
	return err == nil && !info.IsDir()
}

// Size returns the artifact size in bytes, or zero when it cannot be read.
func (s *Storage) Size(ref string) int64 {
	if strings.TrimSpace(ref) == "" {
		return 0
	}
	info, err := os.Stat(ref)
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// Delete removes the referenced artifact, reporting whether a file was
// removed. A missing file is not an error.
func (s *Storage) Delete(ref string) bool {
	if strings.TrimSpace(ref) == "" {
		return false
	}
	err := os.Remove(ref)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("artifact delete failed", logging.String("ref", ref), logging.Error(err))
		}
		return false
	}
	s.logger.Debug("artifact deleted", logging.String("ref", ref))
	return true
}

// Stage copies a source file into destDir under a unique name and returns
// the new reference. The original extension is preserved.
func (s *Storage) Stage(srcPath, destDir string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(srcPath))
	ref := filepath.Join(destDir, name)
	dst, err := os.OpenFile(ref, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staged artifact: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(ref)
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(ref)
		return "", fmt.Errorf("close staged artifact: %w", err)
	}

	s.logger.Info("artifact staged", logging.String("ref", ref), logging.String("source", srcPath))
	return ref, nil
}
