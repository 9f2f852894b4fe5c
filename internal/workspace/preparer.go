// Package workspace resets the AUT workspace from a template archive and
// offers workspace-relative file helpers for tests.
package workspace

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"autctl/pkg/logging"
)

const subsystem = "Workspace"

const transientArchiveName = ".autctl-template.zip"

var (
	ErrTemplateMissing = errors.New("workspace template archive not found")
	ErrPathEscapes     = errors.New("path escapes the workspace")
	ErrNoSuchLine      = errors.New("line does not exist")
)

// Preparer recreates a workspace from a zip template.
type Preparer struct {
	templateArchive string
}

// NewPreparer creates a Preparer expanding templateArchive.
func NewPreparer(templateArchive string) *Preparer {
	return &Preparer{templateArchive: templateArchive}
}

// Prepare deletes workspacePath, recreates it and expands the template
// archive into it. Preparing twice yields identical trees.
func (p *Preparer) Prepare(workspacePath string) error {
	if workspacePath == "" {
		return errors.New("workspace path is empty")
	}
	if _, err := os.Stat(p.templateArchive); err != nil {
		return fmt.Errorf("%w: %v", ErrTemplateMissing, err)
	}

	logging.Info(subsystem, "Prepare workspace %s from %s", workspacePath, p.templateArchive)

	if err := removeForced(workspacePath); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if err := os.MkdirAll(workspacePath, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	transient := filepath.Join(workspacePath, transientArchiveName)
	if err := copyFile(p.templateArchive, transient); err != nil {
		return fmt.Errorf("copy template archive: %w", err)
	}
	defer os.Remove(transient)

	if err := extract(transient, workspacePath); err != nil {
		return fmt.Errorf("extract template archive: %w", err)
	}
	return nil
}

// removeForced deletes root after making every entry writable.
func removeForced(root string) error {
	if _, err := os.Lstat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		_ = os.Chmod(path, info.Mode().Perm()|0o700)
		return nil
	})
	return os.RemoveAll(root)
}

func extract(archivePath, root string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := resolve(root, f.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// resolve joins rel onto root and rejects results outside root.
func resolve(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	back, err := filepath.Rel(root, target)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", ErrPathEscapes
	}
	return target, nil
}
