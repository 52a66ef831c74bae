package resources

import (
	"context"
	"errors"
	"testing"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestResourceService_List_CacheHit(t *testing.T) {
	ctx := context.Background()
	repo := &MockResourceRepository{}
	cache := &MockCache{}
	service := NewResourceService(repo, cache)

	cached := []domain.Resource{{ID: 1, Kind: domain.KindFlight, Name: "Cached"}}
	cache.On("GetResources", ctx, domain.KindFlight).Return(cached, nil).Once()

	items, err := service.List(ctx, domain.KindFlight)

	assert.NoError(t, err)
	assert.Equal(t, cached, items)
	repo.AssertNotCalled(t, "List", ctx, domain.KindFlight)
	cache.AssertExpectations(t)
}

func TestResourceService_List_CacheMiss(t *testing.T) {
	ctx := context.Background()
	repo := &MockResourceRepository{}
	cache := &MockCache{}
	service := NewResourceService(repo, cache)

	fresh := []domain.Resource{{ID: 1, Kind: domain.KindTour, Name: "Fresh"}}
	cache.On("GetResources", ctx, domain.KindTour).Return(nil, errors.New("cache miss")).Once()
	repo.On("List", ctx, domain.KindTour).Return(fresh, nil).Once()
	cache.On("SetResources", ctx, domain.KindTour, fresh).Return(nil).Once()

	items, err := service.List(ctx, domain.KindTour)

	assert.NoError(t, err)
	assert.Equal(t, fresh, items)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestResourceService_List_NoCache(t *testing.T) {
	ctx := context.Background()
	repo := &MockResourceRepository{}
	service := NewResourceService(repo, nil)

	fresh := []domain.Resource{{ID: 2, Kind: domain.KindRoom}}
	repo.On("List", ctx, domain.KindRoom).Return(fresh, nil).Once()

	items, err := service.List(ctx, domain.KindRoom)

	assert.NoError(t, err)
	assert.Equal(t, fresh, items)
	repo.AssertExpectations(t)
}

func TestResourceService_List_UnknownKind(t *testing.T) {
	service := NewResourceService(&MockResourceRepository{}, nil)

	items, err := service.List(context.Background(), domain.ResourceKind("TRAIN"))

	assert.Nil(t, items)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResourceService_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := &MockResourceRepository{}
	service := NewResourceService(repo, nil)

	ref := domain.ResourceRef{Kind: domain.KindFlight, ID: 4}
	repo.On("GetByID", ctx, ref).Return(&domain.Resource{ID: 4, Kind: domain.KindFlight}, nil).Once()

	res, err := service.GetByID(ctx, ref)

	assert.NoError(t, err)
	assert.Equal(t, int64(4), res.ID)
	repo.AssertExpectations(t)

	_, err = service.GetByID(ctx, domain.ResourceRef{Kind: "TRAIN", ID: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
