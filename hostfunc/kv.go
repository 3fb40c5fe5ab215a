package hostfunc

import (
	"context"
	"errors"
	"sync"

	"github.com/andyherbert/crabzilla/value"
)

const (
	DefaultKVMaxEntries   = 10000
	DefaultKVMaxKeySize   = 1024
	DefaultKVMaxValueSize = 1 << 20 // 1MB
)

// KVStore is an in-memory key-value store shared with guest code.
type KVStore struct {
	mu           sync.RWMutex
	data         map[string]string
	maxEntries   int
	maxKeySize   int
	maxValueSize int
}

// KVOption adjusts KVStore limits.
type KVOption func(*KVStore)

// WithMaxEntries caps the number of stored keys.
func WithMaxEntries(n int) KVOption {
	return func(s *KVStore) { s.maxEntries = n }
}

// WithMaxKeySize caps the byte length of keys.
func WithMaxKeySize(n int) KVOption {
	return func(s *KVStore) { s.maxKeySize = n }
}

// WithMaxValueSize caps the byte length of stored values.
func WithMaxValueSize(n int) KVOption {
	return func(s *KVStore) { s.maxValueSize = n }
}

// NewKVStore creates an empty store with default limits.
func NewKVStore(opts ...KVOption) *KVStore {
	s := &KVStore{
		data:         make(map[string]string),
		maxEntries:   DefaultKVMaxEntries,
		maxKeySize:   DefaultKVMaxKeySize,
		maxValueSize: DefaultKVMaxValueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entries exposes the store operations under the given scope:
// get(key), set(key, value), delete(key), keys().
func (s *KVStore) Entries(scope string) []Entry {
	return []Entry{
		{Scope: scope, Name: "get", Fn: s.get},
		{Scope: scope, Name: "set", Fn: s.set},
		{Scope: scope, Name: "delete", Fn: s.delete},
		{Scope: scope, Name: "keys", Fn: s.keys},
	}
}

func (s *KVStore) get(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Undefined(), errors.New("key required")
	}
	key, err := args[0].AsString()
	if err != nil {
		return value.Undefined(), errors.New("key must be a string")
	}

	s.mu.RLock()
	val, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		return value.Null(), nil
	}
	return value.String(val), nil
}

func (s *KVStore) set(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Undefined(), errors.New("key and value required")
	}
	key, err := args[0].AsString()
	if err != nil {
		return value.Undefined(), errors.New("key must be a string")
	}
	val, err := args[1].AsString()
	if err != nil {
		return value.Undefined(), errors.New("value must be a string")
	}
	if len(key) > s.maxKeySize {
		return value.Undefined(), errors.New("key exceeds max size")
	}
	if len(val) > s.maxValueSize {
		return value.Undefined(), errors.New("value exceeds max size")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && len(s.data) >= s.maxEntries {
		return value.Undefined(), errors.New("store full")
	}
	s.data[key] = val
	return value.Undefined(), nil
}

func (s *KVStore) delete(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Undefined(), errors.New("key required")
	}
	key, err := args[0].AsString()
	if err != nil {
		return value.Undefined(), errors.New("key must be a string")
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return value.Undefined(), nil
}

func (s *KVStore) keys(ctx context.Context, args []value.Value) (value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]value.Value, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, value.String(k))
	}
	return value.Array(keys...), nil
}
