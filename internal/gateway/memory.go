package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process RemoteStore used by tests and by the daemon's
// standalone mode. Document paths follow the collection/id/collection/id
// convention of the real backend.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]Doc
	nextID int

	// FailAppend and friends inject errors for failure-path tests.
	FailAppend error
	FailUpsert error
	FailPatch  error
	FailGet    error
	FailQuery  error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Doc)}
}

func (m *Memory) Append(ctx context.Context, collectionPath string, doc Doc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		return "", m.FailAppend
	}

	m.nextID++
	id := fmt.Sprintf("doc-%06d", m.nextID)
	stored := doc.Clone()
	stored["id"] = id
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = time.Now().UTC()
	}
	m.docs[collectionPath+"/"+id] = stored
	return id, nil
}

func (m *Memory) Upsert(ctx context.Context, docPath string, doc Doc, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpsert != nil {
		return m.FailUpsert
	}

	if merge {
		if existing, ok := m.docs[docPath]; ok {
			merged := existing.Clone()
			for k, v := range doc {
				merged[k] = v
			}
			m.docs[docPath] = merged
			return nil
		}
	}
	m.docs[docPath] = doc.Clone()
	return nil
}

func (m *Memory) Patch(ctx context.Context, docPath string, partial Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPatch != nil {
		return m.FailPatch
	}

	existing, ok := m.docs[docPath]
	if !ok {
		return ErrNotFound
	}
	patched := existing.Clone()
	for k, v := range partial {
		patched[k] = v
	}
	m.docs[docPath] = patched
	return nil
}

func (m *Memory) Get(ctx context.Context, docPath string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailGet != nil {
		return nil, m.FailGet
	}

	doc, ok := m.docs[docPath]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *Memory) Query(ctx context.Context, collectionPath string, filters ...Filter) ([]Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailQuery != nil {
		return nil, m.FailQuery
	}

	prefix := collectionPath + "/"
	var out []Doc
	for path, doc := range m.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if matchesAll(doc, filters) {
			out = append(out, doc.Clone())
		}
	}
	// Stable order by document id so callers see server ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].String("id") < out[j].String("id") })
	return out, nil
}

// Count returns the number of documents directly under a collection path.
func (m *Memory) Count(collectionPath string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := collectionPath + "/"
	n := 0
	for path := range m.docs {
		if strings.HasPrefix(path, prefix) && !strings.Contains(path[len(prefix):], "/") {
			n++
		}
	}
	return n
}

func matchesAll(doc Doc, filters []Filter) bool {
	for _, f := range filters {
		if doc[f.Field] != f.Value {
			return false
		}
	}
	return true
}
