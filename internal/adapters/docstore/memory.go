package docstore

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"xpost-studio/internal/domain"
)

var _ domain.DocumentStore = (*Memory)(nil)

// Memory — документное хранилище в памяти процесса для dev-режима и тестов.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	order []string
	docs  map[string]map[string]any
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memoryCollection)}
}

func (m *Memory) collection(name string) *memoryCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]map[string]any)}
		m.collections[name] = c
	}
	return c
}

// CreateDocument вставляет документ. Пустой id заменяется на uuid.
func (m *Memory) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, domain.Remote("create document", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(collection)
	if _, ok := c.docs[id]; ok {
		return domain.Document{}, domain.Remote("create document", domain.ErrConflict)
	}
	c.docs[id] = copyFields(fields)
	c.order = append(c.order, id)
	return domain.Document{ID: id, Fields: copyFields(fields)}, nil
}

// GetDocument возвращает документ по id.
func (m *Memory) GetDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, domain.Remote("get document", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fields, ok := m.collection(collection).docs[id]
	if !ok {
		return domain.Document{}, domain.Remote("get document", domain.ErrNotFound)
	}
	return domain.Document{ID: id, Fields: copyFields(fields)}, nil
}

// ListDocuments возвращает документы в порядке вставки.
func (m *Memory) ListDocuments(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Remote("list documents", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(collection)
	docs := make([]domain.Document, 0, len(c.order))
	for _, id := range c.order {
		fields := c.docs[id]
		if matches(fields, filters) {
			docs = append(docs, domain.Document{ID: id, Fields: copyFields(fields)})
		}
	}
	return docs, nil
}

// UpdateDocument сливает fields с сохранёнными полями.
func (m *Memory) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, domain.Remote("update document", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.collection(collection).docs[id]
	if !ok {
		return domain.Document{}, domain.Remote("update document", domain.ErrNotFound)
	}
	for k, v := range fields {
		stored[k] = v
	}
	return domain.Document{ID: id, Fields: copyFields(stored)}, nil
}

// DeleteDocument удаляет документ.
func (m *Memory) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return domain.Remote("delete document", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(collection)
	if _, ok := c.docs[id]; !ok {
		return domain.Remote("delete document", domain.ErrNotFound)
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// CountByCollection возвращает число документов по коллекциям.
func (m *Memory) CountByCollection(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int64)
	for name, c := range m.collections {
		if len(c.docs) > 0 {
			counts[name] = int64(len(c.docs))
		}
	}
	return counts, nil
}

func matches(fields map[string]any, filters []domain.Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// EnsureSchema ничего не делает: схема в памяти не нужна.
func (m *Memory) EnsureSchema(context.Context) error { return nil }
