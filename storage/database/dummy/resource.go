package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/momentum-academy/portal/core/resource"
)

type resourceRepository struct {
	db *resourceTable
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) resource.Repository {
	return &resourceRepository{db: db.resource}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res.ID = uuid.New().String()
	repo.db.table[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) GetResourceByID(ctx context.Context, id string) (resource.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if res, ok := repo.db.table[id]; ok {
		return *res, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) QueryResources(ctx context.Context) ([]resource.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ress := make([]resource.Resource, 0, len(repo.db.table))
	for _, res := range repo.db.table {
		ress = append(ress, *res)
	}
	sort.Slice(ress, func(i, j int) bool { return ress[i].CreatedAt.Before(ress[j].CreatedAt) })
	return ress, nil
}
