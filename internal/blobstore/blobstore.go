package blobstore

import (
	"cmp"
	"context"
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/DoyleJ11/doodle-play-backend/internal/engine"
)

var ErrNotFound = errors.New("blob not found")

const (
	DrawingPrefix = "drawing-"
	GalleryLimit  = 100
)

type Object struct {
	Key        string
	URL        string
	UploadedAt time.Time
	Size       int64
}

// Store is the bucket the drawings live in.
type Store interface {
	// List returns at most limit objects under prefix, newest first.
	List(ctx context.Context, prefix string, limit int) ([]Object, error)
	Put(ctx context.Context, key string, body []byte, contentType string) (Object, error)
}

// Opener is implemented by stores that have no public URL of their own;
// their objects are served by the HTTP layer.
type Opener interface {
	Open(ctx context.Context, key string) (body []byte, contentType string, err error)
}

func ToDrawing(o Object) engine.Drawing {
	return engine.Drawing{ID: o.Key, URL: o.URL, UploadedAt: o.UploadedAt, Size: o.Size}
}

func ToDrawings(objs []Object) []engine.Drawing {
	out := make([]engine.Drawing, len(objs))
	for i, o := range objs {
		out[i] = ToDrawing(o)
	}
	return out
}

// GalleryLoader lists the drawings a new stage starts with.
func GalleryLoader(s Store) func(context.Context) ([]engine.Drawing, error) {
	return func(ctx context.Context) ([]engine.Drawing, error) {
		objs, err := s.List(ctx, DrawingPrefix, GalleryLimit)
		if err != nil {
			return nil, err
		}
		return ToDrawings(objs), nil
	}
}

// newestFirst orders by upload time, then key, both descending, and
// applies limit (<= 0 means no limit).
func newestFirst(objs []Object, limit int) []Object {
	slices.SortStableFunc(objs, func(a, b Object) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Key, a.Key)
	})
	if limit > 0 && len(objs) > limit {
		objs = objs[:limit]
	}
	return objs
}

// servedURL is the URL of a key served through /blobs/{key}.
func servedURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/blobs/" + url.PathEscape(key)
}
