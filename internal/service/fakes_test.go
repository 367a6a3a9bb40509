package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"discuit_search/internal/domain"
	"discuit_search/internal/search"
)

// memoryIndex is an in-memory SearchIndex whose tasks complete immediately.
type memoryIndex struct {
	mu       sync.Mutex
	docs     map[string]domain.Post
	nextTask int64
	settings *search.Settings
}

func newMemoryIndex(posts ...domain.Post) *memoryIndex {
	idx := &memoryIndex{docs: make(map[string]domain.Post)}
	for _, p := range posts {
		idx.docs[p.ID] = p
	}
	return idx
}

func (m *memoryIndex) task() domain.Task {
	m.nextTask++
	return domain.Task{UID: m.nextTask, Status: "enqueued"}
}

func (m *memoryIndex) UpdateSettings(_ context.Context, settings search.Settings) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &settings
	return m.task(), nil
}

func (m *memoryIndex) AddDocuments(_ context.Context, posts []domain.Post) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range posts {
		m.docs[p.ID] = p
	}
	return m.task(), nil
}

func (m *memoryIndex) DeleteDocuments(_ context.Context, ids []string) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.docs, id)
	}
	return m.task(), nil
}

func (m *memoryIndex) GetDocuments(_ context.Context, _ []string, limit, offset int) (*domain.DocumentPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	page := &domain.DocumentPage{Total: int64(len(all))}
	if offset < len(all) {
		page.Results = all[offset:min(offset+limit, len(all))]
	}
	return page, nil
}

func (m *memoryIndex) WaitForTask(context.Context, int64, time.Duration) error {
	return nil
}

func (m *memoryIndex) sorted() []domain.Post {
	out := make([]domain.Post, 0, len(m.docs))
	for _, p := range m.docs {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Post) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (m *memoryIndex) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs))
	for _, p := range m.sorted() {
		out = append(out, p.ID)
	}
	return out
}

func (m *memoryIndex) get(id string) domain.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func testPost(id, title string) domain.Post {
	return domain.Post{
		ID:            id,
		PublicID:      "pub-" + id,
		Type:          domain.PostTypeText,
		Title:         title,
		Username:      "bob",
		CommunityName: "golang",
		CreatedAt:     "2024-03-01T10:00:00Z",
	}
}

func postIDs(posts []domain.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
