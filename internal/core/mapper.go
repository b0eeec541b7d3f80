package core

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const (
	ManifestContentType  = "application/vnd.apple.mpegurl"
	SegmentContentType   = "video/mp2t"
	RecordingContentType = "video/mp4"

	manifestCacheControl = "no-cache, no-store"
	segmentCacheControl  = "max-age=31536000"
)

// MapKey maps a local file under root to its remote object key:
// the namespace followed by the slash-separated root-relative path.
func MapKey(root WatchedRoot, localPath string) (string, error) {
	rel, err := relUnder(root.Path, localPath)
	if err != nil {
		return "", err
	}
	return path.Join(root.Namespace, filepath.ToSlash(rel)), nil
}

// ContentFor derives the object attributes from the root kind and file extension.
func ContentFor(kind RootKind, localPath string) ObjectAttrs {
	if kind == Recordings {
		return ObjectAttrs{ContentType: RecordingContentType}
	}
	if strings.EqualFold(filepath.Ext(localPath), ".m3u8") {
		return ObjectAttrs{ContentType: ManifestContentType, CacheControl: manifestCacheControl}
	}
	return ObjectAttrs{ContentType: SegmentContentType, CacheControl: segmentCacheControl}
}

// relUnder returns p relative to root, failing unless p is strictly below root.
func relUnder(root, p string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPath, p, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s (root %s)", ErrInvalidPath, p, root)
	}
	return rel, nil
}
