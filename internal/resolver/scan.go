package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// ScanBucket lists the child directories of bucket in fsys together with
// the regular files each one holds, both in name order. A missing bucket
// yields an empty snapshot.
func ScanBucket(fsys fs.FS, bucket string) (Bucket, error) {
	bucket = path.Clean(strings.TrimSpace(bucket))
	snapshot := Bucket{Path: bucket}

	entries, err := fs.ReadDir(fsys, bucket)
	if errors.Is(err, fs.ErrNotExist) {
		return snapshot, nil
	}
	if err != nil {
		return snapshot, fmt.Errorf("read bucket %s: %w", bucket, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirPath := path.Join(bucket, entry.Name())
		children, err := fs.ReadDir(fsys, dirPath)
		if err != nil {
			return snapshot, fmt.Errorf("read directory %s: %w", dirPath, err)
		}
		dir := Directory{Name: entry.Name()}
		for _, child := range children {
			if !child.Type().IsRegular() || strings.HasPrefix(child.Name(), ".") {
				continue
			}
			dir.Files = append(dir.Files, child.Name())
		}
		snapshot.Dirs = append(snapshot.Dirs, dir)
	}
	return snapshot, nil
}
