// Package store is the persisted state abstraction for the ledger.
// A KV holds committed state; a Staged view collects the writes of one
// operation and applies them all at once or not at all.
package store

// KV is the minimal key-value contract every component persists through.
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Has(key string) bool
	Remove(key string)
}

// Batcher is implemented by backends that can apply a whole commit in
// one storage transaction. Staged.Commit prefers it when present.
type Batcher interface {
	ApplyBatch(sets map[string][]byte, removes map[string]struct{}) error
}

// Memory is a map-backed KV. The registry serializes operations, so no
// internal locking is needed.
type Memory struct {
	m map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(key string) ([]byte, bool) {
	v, ok := s.m[key]
	return v, ok
}

func (s *Memory) Set(key string, value []byte) {
	s.m[key] = value
}

func (s *Memory) Has(key string) bool {
	_, ok := s.m[key]
	return ok
}

func (s *Memory) Remove(key string) {
	delete(s.m, key)
}

// Len reports the number of live keys. Test helper.
func (s *Memory) Len() int { return len(s.m) }
