package blobstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memBlob struct {
	obj         Object
	data        []byte
	contentType string
}

// Memory keeps blobs in process. Contents are lost on restart.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
	base  string
	now   func() time.Time
}

func NewMemory(baseURL string) *Memory {
	return &Memory{blobs: make(map[string]memBlob), base: baseURL, now: time.Now}
}

func (m *Memory) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	objs := make([]Object, 0, len(m.blobs))
	for k, b := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			objs = append(objs, b.obj)
		}
	}
	return newestFirst(objs, limit), nil
}

func (m *Memory) Put(ctx context.Context, key string, body []byte, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	obj := Object{
		Key:        key,
		URL:        servedURL(m.base, key),
		UploadedAt: m.now(),
		Size:       int64(len(body)),
	}

	m.mu.Lock()
	m.blobs[key] = memBlob{obj: obj, data: append([]byte(nil), body...), contentType: contentType}
	m.mu.Unlock()
	return obj, nil
}

func (m *Memory) Open(_ context.Context, key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return b.data, b.contentType, nil
}
