package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in process memory, for local runs and tests.
type MemoryStore struct {
	bucket string
	mu     sync.RWMutex
	objs   map[string]memoryObject
}

// NewMemoryStore returns an empty store named after bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objs: make(map[string]memoryObject)}
}

func (m *MemoryStore) Bucket() string { return m.bucket }

func (m *MemoryStore) Put(ctx context.Context, data []byte, key, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return append([]byte(nil), obj.data...), nil
}

// Presign builds a virtual-hosted style URL; nothing checks the expiry.
func (m *MemoryStore) Presign(_ context.Context, key string, ttl time.Duration) (string, error) {
	u := url.URL{
		Scheme:   "https",
		Host:     m.bucket + ".memory.local",
		Path:     "/" + key,
		RawQuery: url.Values{"X-Amz-Expires": {fmt.Sprintf("%d", int(ttl.Seconds()))}}.Encode(),
	}
	return u.String(), nil
}

// ContentType reports the stored content type of key.
func (m *MemoryStore) ContentType(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objs[key]
	return obj.contentType, ok
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objs)
}

var _ Store = (*MemoryStore)(nil)
