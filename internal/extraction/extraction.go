package extraction

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

// ExtractArchive extracts a zip or tar bundle to a temporary directory and
// returns the extracted regular files. The caller removes the directory.
func ExtractArchive(ctx context.Context, archivePath string) ([]string, string, error) {
	destDir, err := os.MkdirTemp("", "extract-*")
	if err != nil {
		return nil, "", err
	}

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", err
	}

	var files []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || shouldIgnoreFile(d.Name()) {
			return nil
		}
		destPath := filepath.Join(destDir, filepath.FromSlash(path))
		if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes the extraction directory", path)
		}
		if err := copyEntry(fsys, path, destPath); err != nil {
			return err
		}
		files = append(files, destPath)
		return nil
	})
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", err
	}

	return files, destDir, nil
}

func copyEntry(fsys fs.FS, path, destPath string) error {
	reader, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	outFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, reader)
	return err
}

// shouldIgnoreFile skips hidden files and OS metadata.
func shouldIgnoreFile(name string) bool {
	return strings.HasPrefix(name, ".") || strings.EqualFold(name, "thumbs.db")
}

// FindByName returns the first file whose base name contains one of the
// fragments, case-insensitively.
func FindByName(files []string, fragments ...string) string {
	for _, f := range files {
		base := strings.ToLower(filepath.Base(f))
		for _, frag := range fragments {
			if strings.Contains(base, strings.ToLower(frag)) {
				return f
			}
		}
	}
	return ""
}
