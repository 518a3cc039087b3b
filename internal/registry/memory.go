package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helewild/gridhud/internal/domain"
)

// Memory is an in-process registry store. Subjects are held by value in a
// mutex-guarded map, so returned records are safe to keep.
type Memory struct {
	mu         sync.RWMutex
	classifier Classifier
	subjects   map[string]domain.Subject
}

// NewMemory returns an empty registry. A nil classifier falls back to the
// static default label.
func NewMemory(c Classifier) *Memory {
	if c == nil {
		c = NewStatic("")
	}
	return &Memory{
		classifier: c,
		subjects:   make(map[string]domain.Subject),
	}
}

func (m *Memory) Upsert(ctx context.Context, reg domain.Registration, now time.Time) (domain.Subject, error) {
	if reg.ID == "" {
		return domain.Subject{}, &domain.RegistryError{Op: "upsert", Err: domain.ErrMalformedPayload}
	}
	ts := now.Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subjects[reg.ID]
	if !ok {
		name := reg.Name
		if name == "" {
			name = domain.UnknownName
		}
		sub = domain.Subject{
			ID:          reg.ID,
			Name:        name,
			Affiliation: m.classifier.Classify(reg.ID, reg.Name),
			Region:      reg.Region,
			CallbackURL: reg.CallbackURL,
			FirstSeen:   ts,
			LastSeen:    ts,
		}
		m.subjects[reg.ID] = sub
		return sub, nil
	}

	if reg.Name != "" {
		sub.Name = reg.Name
	}
	if reg.Region != "" {
		sub.Region = reg.Region
	}
	if reg.CallbackURL != "" {
		sub.CallbackURL = reg.CallbackURL
	}
	sub.LastSeen = ts
	m.subjects[reg.ID] = sub
	return sub, nil
}

func (m *Memory) Lookup(ctx context.Context, ids []string, now time.Time) ([]domain.ScanResult, error) {
	m.mu.RLock()
	found := make(map[string]domain.Subject, len(ids))
	for _, id := range ids {
		if sub, ok := m.subjects[id]; ok {
			found[id] = sub
		}
	}
	m.mu.RUnlock()

	return ShapeResults(ids, found, now), nil
}

func (m *Memory) List(ctx context.Context) ([]domain.Subject, error) {
	m.mu.RLock()
	out := make([]domain.Subject, 0, len(m.subjects))
	for _, sub := range m.subjects {
		out = append(out, sub)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen != out[j].LastSeen {
			return out[i].LastSeen > out[j].LastSeen
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
