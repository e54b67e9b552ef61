package memstore

import (
	"context"
	"strings"

	"github.com/medstok/go-pharmacy-orders/internal/catalog"
)

// CatalogStore implements catalog.Store on the shared in-memory core.
type CatalogStore struct{ s *Store }

func NewCatalog(s *Store) *CatalogStore { return &CatalogStore{s: s} }

func (c *CatalogStore) Create(ctx context.Context, m catalog.Medicine) error {
	defer c.s.wlock(ctx)()
	c.s.medicines[m.ID] = m
	return nil
}

func (c *CatalogStore) Get(ctx context.Context, id string) (catalog.Medicine, error) {
	defer c.s.rlock(ctx)()
	m, ok := c.s.medicines[id]
	if !ok {
		return catalog.Medicine{}, catalog.ErrMedicineNotFound
	}
	return m, nil
}

func (c *CatalogStore) Resolve(ctx context.Context, nameOrBrand string) (catalog.Medicine, error) {
	defer c.s.rlock(ctx)()
	var found *catalog.Medicine
	for _, m := range c.s.medicines {
		if strings.EqualFold(m.Name, nameOrBrand) || strings.EqualFold(m.Brand, nameOrBrand) {
			m := m
			if found == nil || m.Name < found.Name {
				found = &m
			}
		}
	}
	if found == nil {
		return catalog.Medicine{}, catalog.ErrMedicineNotFound
	}
	return *found, nil
}
