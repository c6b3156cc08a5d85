package persona

// Store exposes persona retrieval for HTTP handlers.
type Store interface {
	List() []Persona
	FindByKey(key string) (Persona, bool)
}

// MemoryStore implements Store with an in-memory slice; the persona
// catalog is fixed at startup.
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

// List returns the predefined persona list.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByKey looks up a persona by its short key.
func (s *MemoryStore) FindByKey(key string) (Persona, bool) {
	for _, item := range s.items {
		if item.Key == key {
			return item, true
		}
	}
	return Persona{}, false
}
