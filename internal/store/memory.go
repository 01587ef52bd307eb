package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/doughlab/DoughPilot/internal/models"
)

// InMemoryStore keeps everything in process memory. Used in tests and when
// no database DSN is configured; state does not survive a restart.
type InMemoryStore struct {
	mu      sync.Mutex
	session []byte
	recipes map[int64]models.SavedRecipe
	nextID  int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{recipes: make(map[int64]models.SavedRecipe)}
}

func (s *InMemoryStore) SaveSession(rec models.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = data
	return nil
}

func (s *InMemoryStore) GetSession() (*models.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	var rec models.SessionRecord
	if err := json.Unmarshal(s.session, &rec); err != nil {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) DeleteSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *InMemoryStore) AddSavedRecipe(r models.SavedRecipe) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.recipes[r.ID] = r
	return r.ID, nil
}

func (s *InMemoryStore) ListSavedRecipes() ([]models.SavedRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SavedRecipe, 0, len(s.recipes))
	for id := int64(1); id <= s.nextID; id++ {
		if r, ok := s.recipes[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetSavedRecipe(id int64) (*models.SavedRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recipes[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *InMemoryStore) DeleteSavedRecipe(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recipes, id)
	return nil
}

func (s *InMemoryStore) IncrementTimesMade(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recipes[id]; ok {
		r.TimesMade++
		r.LastUpdatedMillis = time.Now().UnixMilli()
		s.recipes[id] = r
	}
	return nil
}

func (s *InMemoryStore) TouchSavedRecipe(id int64, nowMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.recipes[id]; ok {
		r.LastUpdatedMillis = nowMillis
		s.recipes[id] = r
	}
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
