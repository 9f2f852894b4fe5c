package workspace

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LogFile is the Eclipse workspace log, relative to the workspace.
const LogFile = ".metadata/.log"

// CopyIn copies the file or directory relSrc to relDst inside ws,
// overwriting existing files.
func CopyIn(ws, relSrc, relDst string) error {
	src, err := resolve(ws, relSrc)
	if err != nil {
		return err
	}
	dst, err := resolve(ws, relDst)
	if err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

// Remove deletes a file or directory tree inside ws. A missing path is not
// an error.
func Remove(ws, rel string) error {
	target, err := resolve(ws, rel)
	if err != nil {
		return err
	}
	if filepath.Clean(target) == filepath.Clean(ws) {
		return fmt.Errorf("%w: refusing to remove the workspace root", ErrPathEscapes)
	}
	return removeForced(target)
}

// WriteFile creates or replaces a file inside ws.
func WriteFile(ws, rel, content string) error {
	target, err := resolve(ws, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, []byte(content), 0o644)
}

// Line returns line n, counted from 1, of the workspace-relative file rel.
func Line(ws, rel string, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("%w: %d", ErrNoSuchLine, n)
	}
	target, err := resolve(ws, rel)
	if err != nil {
		return "", err
	}
	f, err := os.Open(target)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for i := 1; scanner.Scan(); i++ {
		if i == n {
			return scanner.Text(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: %s has fewer than %d lines", ErrNoSuchLine, rel, n)
}

// LogTail returns the last n lines of the workspace log.
func LogTail(ws string, n int) (string, error) {
	f, err := os.Open(filepath.Join(ws, filepath.FromSlash(LogFile)))
	if err != nil {
		return "", err
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.Join(ring, "\n"), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
