package store

// Staged is an overlay over a base KV. Reads see staged writes first,
// then the base. Nothing reaches the base until Commit; dropping the
// Staged without committing discards every write, which is how a failed
// operation leaves no trace.
type Staged struct {
	base    KV
	sets    map[string][]byte
	removed map[string]struct{}
}

func Stage(base KV) *Staged {
	return &Staged{
		base:    base,
		sets:    make(map[string][]byte),
		removed: make(map[string]struct{}),
	}
}

func (s *Staged) Get(key string) ([]byte, bool) {
	if _, dead := s.removed[key]; dead {
		return nil, false
	}
	if v, ok := s.sets[key]; ok {
		return v, true
	}
	return s.base.Get(key)
}

func (s *Staged) Set(key string, value []byte) {
	delete(s.removed, key)
	s.sets[key] = value
}

func (s *Staged) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *Staged) Remove(key string) {
	delete(s.sets, key)
	s.removed[key] = struct{}{}
}

// Dirty reports whether any write is staged. Read-only operations skip
// the commit entirely.
func (s *Staged) Dirty() bool {
	return len(s.sets) > 0 || len(s.removed) > 0
}

// Commit applies the staged writes to the base. Backends implementing
// Batcher get the whole commit in one call so they can wrap it in a
// storage transaction.
func (s *Staged) Commit() error {
	if b, ok := s.base.(Batcher); ok {
		return b.ApplyBatch(s.sets, s.removed)
	}
	for k := range s.removed {
		s.base.Remove(k)
	}
	for k, v := range s.sets {
		s.base.Set(k, v)
	}
	return nil
}
