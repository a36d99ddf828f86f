// Package batch turns a directory tree into conversion items.
package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"

	"morph/internal/converter"
	"morph/internal/queue"
	"morph/pkg/fsutil"
)

var ErrNotDirectory = errors.New("source is not a directory")

// Request describes one enumeration. Options is copied into every item, so
// later edits by the caller do not leak into queued work.
type Request struct {
	SourceDir      string
	DestinationDir string
	Format         converter.Format
	Options        converter.Options
	Logger         *slog.Logger
}

// Enumerate walks SourceDir depth-first in lexical order and returns one
// Pending item per supported file whose format differs from Format. With
// Options.PreserveStructure the source layout is mirrored under
// DestinationDir and the mirrored directories are created; otherwise all
// outputs land directly in DestinationDir.
func Enumerate(req Request) ([]*queue.Item, error) {
	if !req.Format.Valid() {
		return nil, fmt.Errorf("%w: %q", converter.ErrUnsupportedFormat, req.Format)
	}
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	srcRoot, err := filepath.Abs(req.SourceDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(srcRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, req.SourceDir)
	}

	dstRoot, err := filepath.Abs(req.DestinationDir)
	if err != nil {
		return nil, err
	}
	dstInsideSrc := dstRoot != srcRoot && fsutil.IsWithin(dstRoot, srcRoot)

	opts := req.Options
	taken := make(map[string]struct{})
	var items []*queue.Item

	err = godirwalk.Walk(srcRoot, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == srcRoot {
				return nil
			}

			if de.IsDir() {
				if dstInsideSrc && fsutil.IsWithin(path, dstRoot) {
					return godirwalk.SkipThis
				}
				if opts.PreserveStructure {
					mirror, err := mirrorDir(srcRoot, dstRoot, path)
					if err != nil {
						return err
					}
					if err := os.MkdirAll(mirror, 0o755); err != nil {
						return fmt.Errorf("%w: %w", converter.ErrIO, err)
					}
				}
				return nil
			}
			if de.IsSymlink() {
				// File links are followed; directory links are not, so the
				// walk cannot loop.
				info, err := os.Stat(path)
				if err != nil {
					logger.Warn("Skipping broken link", "path", path, "error", err)
					return nil
				}
				if !info.Mode().IsRegular() {
					return nil
				}
			} else if !de.IsRegular() {
				return nil
			}

			srcFormat, err := converter.FormatFromPath(path)
			if err != nil || srcFormat == req.Format {
				return nil
			}

			outDir := dstRoot
			if opts.PreserveStructure {
				outDir, err = mirrorDir(srcRoot, dstRoot, filepath.Dir(path))
				if err != nil {
					return err
				}
			}
			base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			dst := claim(taken, filepath.Join(outDir, base), req.Format.Ext())

			items = append(items, queue.NewItem(path, dst, opts))
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			logger.Warn("Skipping unreadable entry", "path", path, "error", err)
			return godirwalk.SkipNode
		},
		FollowSymbolicLinks: false,
		Unsorted:            false,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Enumerated directory",
		"source", srcRoot,
		"destination", dstRoot,
		"format", req.Format.String(),
		"items", len(items),
		"preserve_structure", opts.PreserveStructure,
	)
	return items, nil
}

// Populate enumerates req and appends the items to p without starting it.
func Populate(p *queue.Processor, req Request) (int, error) {
	items, err := Enumerate(req)
	if err != nil {
		return 0, err
	}
	p.Add(items...)
	return len(items), nil
}

func mirrorDir(srcRoot, dstRoot, dir string) (string, error) {
	rel, err := filepath.Rel(srcRoot, dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dstRoot, rel), nil
}

// claim returns stem+ext, or stem-N+ext for the lowest N not already used in
// this enumeration.
func claim(taken map[string]struct{}, stem, ext string) string {
	candidate := stem + ext
	for n := 1; ; n++ {
		if _, ok := taken[candidate]; !ok {
			taken[candidate] = struct{}{}
			return candidate
		}
		candidate = stem + "-" + strconv.Itoa(n) + ext
	}
}
