package registry

import (
	"context"
	"sort"
	"sync"

	"brokerboard/logger"
)

// Source lists the active broker ids.
type Source interface {
	ListBrokerIDs(ctx context.Context) ([]string, error)
}

// Registry is the sorted broker list plus the round-robin cursor. The cursor
// always indexes the broker to poll next.
type Registry struct {
	mu     sync.Mutex
	ids    []string
	cursor int
	log    *logger.Log
}

func New() *Registry {
	return &Registry{log: logger.GetLogger()}
}

// Reload fetches ids from src and adopts them if they differ from the current
// list. The cursor stays on the same broker when it survives the reload and
// resets to 0 otherwise. On error the current list is kept.
func (r *Registry) Reload(ctx context.Context, src Source) (bool, error) {
	log := r.log.WithComponent("registry").WithFields(logger.Fields{"operation": "reload"})

	ids, err := src.ListBrokerIDs(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load broker ids, keeping previous list")
		return false, err
	}
	ids = normalize(ids)

	r.mu.Lock()
	defer r.mu.Unlock()

	if equal(r.ids, ids) {
		return false, nil
	}

	current := ""
	if r.cursor < len(r.ids) {
		current = r.ids[r.cursor]
	}
	r.cursor = 0
	for i, id := range ids {
		if id == current {
			r.cursor = i
			break
		}
	}

	log.WithFields(logger.Fields{
		"previous": len(r.ids),
		"current":  len(ids),
		"cursor":   r.cursor,
	}).Info("broker list changed")
	r.ids = ids
	return true, nil
}

// Next returns the broker at the cursor and advances it.
func (r *Registry) Next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ids) == 0 {
		return "", false
	}
	id := r.ids[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.ids)
	return id, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func (r *Registry) Cursor() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := sort.SearchStrings(r.ids, id)
	return i < len(r.ids) && r.ids[i] == id
}

// normalize sorts and removes duplicates and empty ids.
func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	n := 0
	for i, id := range out {
		if i > 0 && id == out[n-1] {
			continue
		}
		out[n] = id
		n++
	}
	return out[:n]
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
