package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local dry runs. It counts
// calls per operation and can be told to fail specific operations.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte
	calls   map[string]int
	failOn  map[string]error
	copies  map[CopyHandle]*memCopy
	nextID  int

	// PendingPolls is how many times Status reports CopyPending before a copy settles.
	PendingPolls int
	// CopyErr, when set, makes every copy settle as CopyFailed with this error.
	CopyErr error
}

type memCopy struct {
	src, dst ObjectRef
	polls    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]map[string][]byte),
		calls:   make(map[string]int),
		failOn:  make(map[string]error),
		copies:  make(map[CopyHandle]*memCopy),
	}
}

// FailOn makes every call of op (get, create, copy, status, abandon, delete, list) return err.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[op] = err
}

// Calls returns how many times op has been invoked.
func (m *MemoryStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (m *MemoryStore) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Seed stores an object without counting a call.
func (m *MemoryStore) Seed(bucket, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(bucket)[name] = append([]byte(nil), data...)
}

// Object returns a stored object without counting a call.
func (m *MemoryStore) Object(bucket, name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket][name]
	return data, ok
}

func (m *MemoryStore) bucket(name string) map[string][]byte {
	b, ok := m.objects[name]
	if !ok {
		b = make(map[string][]byte)
		m.objects[name] = b
	}
	return b
}

// enter records a call and returns the injected failure for op, if any. Caller holds mu.
func (m *MemoryStore) enter(op string) error {
	m.calls[op]++
	return m.failOn[op]
}

func (m *MemoryStore) Get(_ context.Context, bucket, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get"); err != nil {
		return nil, err
	}
	data, ok := m.objects[bucket][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, name, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Create(_ context.Context, bucket, name string, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("create"); err != nil {
		return false, err
	}
	b := m.bucket(bucket)
	if _, exists := b[name]; exists {
		return false, nil
	}
	b[name] = append([]byte(nil), data...)
	return true, nil
}

func (m *MemoryStore) Copy(_ context.Context, src, dst ObjectRef) (CopyHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("copy"); err != nil {
		return "", err
	}
	if _, ok := m.objects[src.Bucket][src.Name]; !ok {
		return "", fmt.Errorf("copy source %s: %w", src, ErrNotFound)
	}
	m.nextID++
	h := CopyHandle(fmt.Sprintf("copy-%d", m.nextID))
	m.copies[h] = &memCopy{src: src, dst: dst}
	return h, nil
}

func (m *MemoryStore) Status(_ context.Context, h CopyHandle) (CopyStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("status"); err != nil {
		return CopyStatus{}, err
	}
	c, ok := m.copies[h]
	if !ok {
		return CopyStatus{}, errors.New("unknown copy handle " + string(h))
	}
	if c.polls < m.PendingPolls {
		c.polls++
		return CopyStatus{State: CopyPending}, nil
	}
	delete(m.copies, h)
	if m.CopyErr != nil {
		return CopyStatus{State: CopyFailed, Err: m.CopyErr}, nil
	}
	data, ok := m.objects[c.src.Bucket][c.src.Name]
	if !ok {
		return CopyStatus{State: CopyFailed, Err: fmt.Errorf("copy source %s vanished: %w", c.src, ErrNotFound)}, nil
	}
	m.bucket(c.dst.Bucket)[c.dst.Name] = append([]byte(nil), data...)
	return CopyStatus{State: CopyCompleted}, nil
}

func (m *MemoryStore) Abandon(_ context.Context, h CopyHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("abandon"); err != nil {
		return err
	}
	delete(m.copies, h)
	return nil
}

// PendingCopies reports how many copies are started but not yet settled or abandoned.
func (m *MemoryStore) PendingCopies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.copies)
}

func (m *MemoryStore) Delete(_ context.Context, bucket, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("delete"); err != nil {
		return err
	}
	if _, ok := m.objects[bucket][name]; !ok {
		return fmt.Errorf("%s/%s: %w", bucket, name, ErrNotFound)
	}
	delete(m.objects[bucket], name)
	return nil
}

func (m *MemoryStore) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("list"); err != nil {
		return nil, err
	}
	var objects []ObjectInfo
	for name, data := range m.objects[bucket] {
		if strings.HasPrefix(name, prefix) {
			objects = append(objects, ObjectInfo{Name: name, Size: int64(len(data)), Updated: time.Time{}})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}
