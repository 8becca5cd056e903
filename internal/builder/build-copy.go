package builder

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/toastate/homeservice/internal/tlogger"
)

// copyPatterns copies every plan copy pattern verbatim into the build directory
func (b *Builder) copyPatterns() error {
	for _, c := range b.plan.Copies {
		if err := b.copyTree(b.path(c.From), filepath.Join(b.buildDir, c.To)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		tlogger.Warn("builder", "copy", "msg", "Unable to locate copy source", "path", src)
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		_, err := copyFile(src, dst)
		return err
	}

	return filepath.Walk(src, func(absolutepath string, file fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		path, err := filepath.Rel(src, absolutepath)
		if err != nil {
			tlogger.Error("builder", "copy", "msg", "Failed to get relative path", "path", absolutepath, "err", err)
			return err
		}
		if !shouldCopy(path) {
			if file.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, path)
		if file.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		_, err = copyFile(absolutepath, target)
		if err != nil {
			tlogger.Error("builder", "copy", "msg", "Failed to copy file", "path", path, "err", err)
			return err
		}
		tlogger.Debug("builder", "copy", "file", path, "msg", "File copied")
		return nil
	})
}

// shouldCopy skips dot files such as .DS_Store or .gitkeep
func shouldCopy(name string) bool {
	if name == "." {
		return true
	}
	for _, v := range strings.Split(name, string(filepath.Separator)) {
		if len(v) > 0 && v[0] == '.' {
			return false
		}
	}
	return true
}
