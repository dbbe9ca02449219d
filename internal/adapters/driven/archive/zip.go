// Package archive packs directory trees into zip artifacts and unpacks
// them again, the format the coordinator uploads for directory sources.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

// ZipArchiver implements driven.Archiver using the zip format.
type ZipArchiver struct{}

var _ driven.Archiver = (*ZipArchiver)(nil)

// NewZipArchiver creates a zip archiver.
func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{}
}

// Archive compresses the directory at sourceDir into archivePath.
// Entry names are relative to sourceDir, using forward slashes.
func (a *ZipArchiver) Archive(sourceDir, archivePath string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("stat source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", sourceDir)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)

	err = filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			// Explicit directory entries keep empty directories.
			_, err := w.Create(rel + "/")
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = rel
		header.Method = zip.Deflate

		fw, err := w.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(fw, f)
		return err
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("archiving %s: %w", sourceDir, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("finalising archive: %w", err)
	}
	return nil
}

// Extract unpacks archivePath into destDir, creating it if needed.
// Entries escaping destDir are rejected.
func (a *ZipArchiver) Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	for _, f := range r.File {
		if err := extractEntry(f, destDir); err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(f.Name))

	// Zip-slip guard: the joined path must stay inside destDir.
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry path escapes destination")
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
