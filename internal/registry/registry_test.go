package registry

import (
	"context"
	"errors"
	"testing"
)

type staticSource struct {
	ids []string
	err error
}

func (s *staticSource) ListBrokerIDs(context.Context) ([]string, error) {
	return s.ids, s.err
}

func reload(t *testing.T, r *Registry, ids ...string) bool {
	t.Helper()
	changed, err := r.Reload(context.Background(), &staticSource{ids: ids})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	return changed
}

func TestReloadSortsAndDedupes(t *testing.T) {
	r := New()
	if !reload(t, r, "c", "a", "b", "a", "") {
		t.Fatalf("expected change on first load")
	}
	got := r.IDs()
	want := []string{"a", "b", "c"}
	if !equal(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	if reload(t, r, "b", "c", "a") {
		t.Fatalf("same set in a different order must not count as a change")
	}
}

func TestRoundRobinFairness(t *testing.T) {
	r := New()
	reload(t, r, "c", "a", "b")

	const rounds = 4
	counts := map[string]int{}
	var order []string
	for i := 0; i < 3*rounds; i++ {
		id, ok := r.Next()
		if !ok {
			t.Fatalf("Next returned no broker")
		}
		counts[id]++
		order = append(order, id)
	}
	for _, id := range []string{"a", "b", "c"} {
		if counts[id] != rounds {
			t.Fatalf("broker %s polled %d times, want %d", id, counts[id], rounds)
		}
	}
	for i, id := range order {
		if want := []string{"a", "b", "c"}[i%3]; id != want {
			t.Fatalf("tick %d polled %s, want %s", i, id, want)
		}
	}
}

func TestCursorStableWhenListShrinks(t *testing.T) {
	r := New()
	reload(t, r, "A", "B", "C")
	r.Next() // A polled, cursor now at B

	reload(t, r, "B", "C")
	id, _ := r.Next()
	if id != "B" {
		t.Fatalf("expected cursor to stay on B, got %s", id)
	}
}

func TestCursorStableWhenListGrows(t *testing.T) {
	r := New()
	reload(t, r, "b", "c")
	r.Next() // cursor at c

	reload(t, r, "a", "b", "c")
	if r.Cursor() != 2 {
		t.Fatalf("expected cursor index 2, got %d", r.Cursor())
	}
}

func TestCursorResetsWhenBrokerRemoved(t *testing.T) {
	r := New()
	reload(t, r, "a", "b", "c")
	r.Next() // cursor at b

	reload(t, r, "a", "c", "d")
	if r.Cursor() != 0 {
		t.Fatalf("expected cursor reset to 0, got %d", r.Cursor())
	}
}

func TestReloadErrorKeepsList(t *testing.T) {
	r := New()
	reload(t, r, "a", "b")

	changed, err := r.Reload(context.Background(), &staticSource{err: errors.New("db down")})
	if err == nil || changed {
		t.Fatalf("expected error without change, got changed=%v err=%v", changed, err)
	}
	if r.Len() != 2 {
		t.Fatalf("list should be retained, got %v", r.IDs())
	}
}

func TestNextOnEmpty(t *testing.T) {
	r := New()
	if _, ok := r.Next(); ok {
		t.Fatalf("expected no broker from empty registry")
	}
	if r.Contains("a") {
		t.Fatalf("empty registry contains nothing")
	}
}
