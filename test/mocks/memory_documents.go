package mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/GX-mob/gx-service-template/internal/core/ports"
	"github.com/google/uuid"
)

// MemoryDocuments is an in-memory DocumentStore. Documents are normalized
// through JSON the way a real store would return them.
type MemoryDocuments struct {
	mu    sync.Mutex
	name  string
	order []string
	docs  map[string]ports.Document

	FindErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error

	Finds   int
	Creates int
	Updates int
	Deletes int
}

var _ ports.DocumentStore = (*MemoryDocuments)(nil)

func NewMemoryDocuments(name string) *MemoryDocuments {
	return &MemoryDocuments{name: name, docs: make(map[string]ports.Document)}
}

func (m *MemoryDocuments) Name() string { return m.name }

func (m *MemoryDocuments) FindOne(_ context.Context, filter ports.Filter) (ports.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finds++
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	id, ok := m.match(filter)
	if !ok {
		return nil, nil
	}
	return clone(m.docs[id]), nil
}

func (m *MemoryDocuments) Create(_ context.Context, data ports.Document) (ports.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	doc, err := normalize(data)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	doc["id"] = id
	m.docs[id] = doc
	m.order = append(m.order, id)
	return clone(doc), nil
}

func (m *MemoryDocuments) UpdateOne(_ context.Context, filter ports.Filter, patch ports.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	id, ok := m.match(filter)
	if !ok {
		return nil
	}
	p, err := normalize(patch)
	if err != nil {
		return err
	}
	for k, v := range p {
		if k == "id" {
			continue
		}
		m.docs[id][k] = v
	}
	return nil
}

func (m *MemoryDocuments) DeleteOne(_ context.Context, filter ports.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	id, ok := m.match(filter)
	if !ok {
		return nil
	}
	delete(m.docs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len reports how many documents are stored.
func (m *MemoryDocuments) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *MemoryDocuments) match(filter ports.Filter) (string, bool) {
	want := make(map[string][]byte, len(filter))
	for k, v := range filter {
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		want[k] = b
	}
	for _, id := range m.order {
		doc := m.docs[id]
		matched := true
		for k, w := range want {
			got, err := json.Marshal(doc[k])
			if err != nil || !bytes.Equal(got, w) {
				matched = false
				break
			}
		}
		if matched {
			return id, true
		}
	}
	return "", false
}

func normalize(doc ports.Document) (ports.Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("memory documents: %w", err)
	}
	var out ports.Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("memory documents: %w", err)
	}
	if out == nil {
		out = ports.Document{}
	}
	return out, nil
}

func clone(doc ports.Document) ports.Document {
	out, _ := normalize(doc)
	return out
}
