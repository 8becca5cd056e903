package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/toastate/homeservice/internal/tlogger"
)

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// StartWatcher watches folder and every directory below it, plus the given
// files which may live outside of it. Changed paths are sent on the returned
// channel until ctx is cancelled, the channel is then closed.
func StartWatcher(ctx context.Context, folder string, files ...string) (<-chan string, error) {
	wch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addTree(wch, folder); err != nil {
		wch.Close()
		return nil, err
	}

	// files are replaced rather than written by some editors, their folder is watched instead
	extra := make(map[string]struct{}, len(files))
	for _, f := range files {
		f = filepath.Clean(f)
		extra[f] = struct{}{}
		if err := wch.Add(filepath.Dir(f)); err != nil {
			tlogger.Warn("msg", "Can't watch file", "path", f, "err", err)
		}
	}

	inTree := func(name string) bool {
		rel, err := filepath.Rel(folder, name)
		return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}

	outCh := make(chan string, 100)

	go func() {
		defer close(outCh)
		defer wch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-wch.Events:
				if !ok {
					return
				}
				if event.Op&watchedOps == 0 {
					continue
				}
				if _, ok := extra[filepath.Clean(event.Name)]; !ok && (hidden(event.Name) || !inTree(event.Name)) {
					continue
				}
				tlogger.Debug("msg", "Detected change", "op", event.Op, "path", event.Name)

				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := addTree(wch, event.Name); err != nil {
							tlogger.Warn("msg", "Can't watch new folder", "path", event.Name, "err", err)
						}
					}
				}

				select {
				case outCh <- event.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-wch.Errors:
				if !ok {
					return
				}
				tlogger.Warn("msg", "Watcher error", "err", err)
			}
		}
	}()

	return outCh, nil
}

func addTree(wch *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		return wch.Add(path)
	})
}

// editors and vcs drop dot files next to sources
func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
