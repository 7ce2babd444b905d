package products

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"

	"github.com/JuanD1P/AGRO-SABANA/internal/es"
)

// MemorySource is a concurrency-safe in-memory implementation of Source,
// used for tests and for running the service without a database.
type MemorySource struct {
	mu    sync.RWMutex
	munis []Municipality
}

// NewMemorySource seeds a source from the given municipalities. Products are
// sorted by name per municipality, matching the database ordering.
func NewMemorySource(munis []Municipality) *MemorySource {
	cp := make([]Municipality, len(munis))
	for i, m := range munis {
		cp[i] = m
		cp[i].Products = append([]Product(nil), m.Products...)
		sort.Slice(cp[i].Products, func(a, b int) bool {
			return es.Fold(cp[i].Products[a].Name) < es.Fold(cp[i].Products[b].Name)
		})
	}
	sort.Slice(cp, func(a, b int) bool { return es.Fold(cp[a].Name) < es.Fold(cp[b].Name) })
	return &MemorySource{munis: cp}
}

// LoadMemorySource reads municipalities from a JSON file. The document is
// either a bare array or wrapped under "data", mirroring the API response
// shape.
func LoadMemorySource(path string) (*MemorySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("products file: %w", err)
	}

	var munis []Municipality
	if err := json.Unmarshal(data, &munis); err != nil {
		var wrapper struct {
			Data []Municipality `json:"data"`
		}
		if err2 := json.Unmarshal(data, &wrapper); err2 != nil || wrapper.Data == nil {
			return nil, fmt.Errorf("products file %s: %w", path, err)
		}
		munis = wrapper.Data
	}
	return NewMemorySource(munis), nil
}

func (s *MemorySource) Municipalities(_ context.Context) ([]Municipality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Municipality, len(s.munis))
	for i, m := range s.munis {
		out[i] = m
		out[i].Products = append([]Product(nil), m.Products...)
	}
	return out, nil
}

func (s *MemorySource) MunicipalityProducts(_ context.Context, name string) (*Municipality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := es.Fold(name)
	for _, m := range s.munis {
		if es.Fold(m.Name) == key {
			cp := m
			cp.Products = append([]Product(nil), m.Products...)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: municipality %q", ErrNotFound, name)
}

func (s *MemorySource) AddInterest(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The counter belongs to the product, not the municipality link, so every
	// occurrence of the name is bumped together.
	key := es.Fold(name)
	cont := 0
	found := false
	for i := range s.munis {
		for j := range s.munis[i].Products {
			if es.Fold(s.munis[i].Products[j].Name) == key {
				s.munis[i].Products[j].Popularity++
				cont = s.munis[i].Products[j].Popularity
				found = true
			}
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: product %q", ErrNotFound, name)
	}
	return cont, nil
}

func (s *MemorySource) SetPopularity(_ context.Context, productID int64, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.munis {
		for j := range s.munis[i].Products {
			if s.munis[i].Products[j].ID == productID {
				s.munis[i].Products[j].Popularity = value
				found = true
			}
		}
	}
	if !found {
		return fmt.Errorf("%w: product id %d", ErrNotFound, productID)
	}
	return nil
}

func (s *MemorySource) InitPopularity(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.munis {
		for j := range s.munis[i].Products {
			s.munis[i].Products[j].Popularity = rand.Intn(5) + 1
		}
	}
	return nil
}
