package scenario

import (
	"fmt"
	"sync"
)

// Store exposes scenario retrieval for HTTP handlers.
type Store interface {
	List(category, difficulty string) []Scenario
	FindByID(id string) (Scenario, bool)
	AddCustom(s Scenario) error
}

// MemoryStore implements Store with the prebuilt catalog plus an
// in-memory registry of generated custom scenarios. Custom scenarios
// do not survive a restart.
type MemoryStore struct {
	prebuilt []Scenario

	mu     sync.RWMutex
	custom map[string]Scenario
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied scenarios.
func NewMemoryStore(items []Scenario) *MemoryStore {
	return &MemoryStore{
		prebuilt: append([]Scenario(nil), items...),
		custom:   make(map[string]Scenario),
	}
}

// List returns prebuilt scenarios, optionally filtered by category
// and/or difficulty.
func (s *MemoryStore) List(category, difficulty string) []Scenario {
	results := make([]Scenario, 0, len(s.prebuilt))
	for _, item := range s.prebuilt {
		if category != "" && item.Category != category {
			continue
		}
		if difficulty != "" && item.Difficulty != difficulty {
			continue
		}
		results = append(results, item)
	}
	return results
}

// FindByID looks up a scenario by identifier, checking the prebuilt
// catalog first and the custom registry second.
func (s *MemoryStore) FindByID(id string) (Scenario, bool) {
	for _, item := range s.prebuilt {
		if item.ID == id {
			return item, true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.custom[id]
	return item, ok
}

// AddCustom registers a generated scenario. All fields must be populated.
func (s *MemoryStore) AddCustom(item Scenario) error {
	for field, value := range map[string]string{
		"id":               item.ID,
		"category":         item.Category,
		"title":            item.Title,
		"description":      item.Description,
		"role":             item.Role,
		"difficulty":       item.Difficulty,
		"context":          item.Context,
		"opening":          item.Opening,
		"evaluation_focus": item.EvaluationFocus,
	} {
		if value == "" {
			return fmt.Errorf("missing required scenario field: %s", field)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom[item.ID] = item
	return nil
}
