package store

import "testing"

func TestStagedOverlayReads(t *testing.T) {
	base := NewMemory()
	base.Set("a", []byte("1"))
	base.Set("b", []byte("2"))

	st := Stage(base)
	st.Set("a", []byte("10"))
	st.Remove("b")
	st.Set("c", []byte("3"))

	if v, ok := st.Get("a"); !ok || string(v) != "10" {
		t.Fatalf("staged overwrite: got %q,%v want %q,true", v, ok, "10")
	}
	if _, ok := st.Get("b"); ok {
		t.Fatalf("staged remove still readable")
	}
	if v, ok := st.Get("c"); !ok || string(v) != "3" {
		t.Fatalf("staged insert: got %q,%v want %q,true", v, ok, "3")
	}

	// The base is untouched until commit.
	if v, _ := base.Get("a"); string(v) != "1" {
		t.Fatalf("base mutated before commit: got %q", v)
	}
	if !base.Has("b") {
		t.Fatalf("base remove applied before commit")
	}
}

func TestStagedCommit(t *testing.T) {
	base := NewMemory()
	base.Set("a", []byte("1"))
	base.Set("b", []byte("2"))

	st := Stage(base)
	st.Set("a", []byte("10"))
	st.Remove("b")
	if err := st.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if v, _ := base.Get("a"); string(v) != "10" {
		t.Fatalf("committed write: got %q want %q", v, "10")
	}
	if base.Has("b") {
		t.Fatalf("committed remove did not apply")
	}
}

func TestStagedDiscard(t *testing.T) {
	base := NewMemory()
	base.Set("a", []byte("1"))

	st := Stage(base)
	st.Set("a", []byte("10"))
	st.Remove("a")
	st.Set("x", []byte("9"))
	// Dropped without commit.

	if v, _ := base.Get("a"); string(v) != "1" {
		t.Fatalf("discarded stage leaked: got %q", v)
	}
	if base.Has("x") {
		t.Fatalf("discarded insert leaked")
	}
}

func TestStagedSetAfterRemove(t *testing.T) {
	base := NewMemory()
	base.Set("a", []byte("1"))

	st := Stage(base)
	st.Remove("a")
	st.Set("a", []byte("2"))
	if v, ok := st.Get("a"); !ok || string(v) != "2" {
		t.Fatalf("set after remove: got %q,%v want %q,true", v, ok, "2")
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if v, _ := base.Get("a"); string(v) != "2" {
		t.Fatalf("committed value: got %q want %q", v, "2")
	}
}

func TestStagedDirty(t *testing.T) {
	st := Stage(NewMemory())
	if st.Dirty() {
		t.Fatalf("fresh stage reports dirty")
	}
	st.Set("a", nil)
	if !st.Dirty() {
		t.Fatalf("staged set not dirty")
	}
}
