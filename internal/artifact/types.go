// Package artifact defines the files that build jobs hand to the release
// publisher. Each artifact carries its kind, the job that produced it, and a
// content checksum; the staging collection accumulates them per producing job.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Kind captures what the package index expects the file to be.
type Kind string

const (
	// KindBinaryPackage is a platform-tagged installable package.
	KindBinaryPackage Kind = "binary-package"
	// KindSourcePackage is the platform-independent source archive.
	KindSourcePackage Kind = "source-package"
)

// Artifact is a single file produced by a job.
type Artifact struct {
	// Path is the absolute location of the file on disk.
	Path string `json:"path"`
	Kind Kind   `json:"kind"`
	// JobID names the pipeline job instance that produced the file.
	JobID string `json:"job_id"`
	// Platform tags binary packages with their target platform; empty for
	// source packages.
	Platform  string    `json:"platform,omitempty"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Name returns the artifact's base file name.
func (a Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Validate ensures the artifact record is well-formed.
func (a Artifact) Validate() error {
	if a.Path == "" {
		return fmt.Errorf("artifact: path is required")
	}
	switch a.Kind {
	case KindBinaryPackage, KindSourcePackage:
	default:
		return fmt.Errorf("artifact: unknown kind %q for %s", a.Kind, a.Path)
	}
	if a.JobID == "" {
		return fmt.Errorf("artifact: producing job is required for %s", a.Path)
	}
	return nil
}

// FromFile stats and checksums path, returning a populated artifact record.
func FromFile(path string, kind Kind, jobID string, now time.Time) (Artifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact: stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("artifact: %s is a directory", abs)
	}
	sum, err := checksumFile(abs)
	if err != nil {
		return Artifact{}, err
	}
	art := Artifact{
		Path:      abs,
		Kind:      kind,
		JobID:     jobID,
		Size:      info.Size(),
		Checksum:  sum,
		CreatedAt: now.UTC(),
	}
	if err := art.Validate(); err != nil {
		return Artifact{}, err
	}
	return art, nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("artifact: checksum %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
