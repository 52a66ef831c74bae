package resources

import (
	"context"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/Domenick1991/travelbook/internal/repository"
)

type ResourceUseCase interface {
	List(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error)
	GetByID(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error)
}

type Cache interface {
	GetResources(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error)
	SetResources(ctx context.Context, kind domain.ResourceKind, resources []domain.Resource) error
	InvalidateResources(ctx context.Context, kind domain.ResourceKind) error
}

// ResourceService is the read-only query surface over bookable
// resources, with a per-kind list cache in front of the repository.
type ResourceService struct {
	repo  repository.ResourceRepository
	cache Cache
}

func NewResourceService(repo repository.ResourceRepository, cache Cache) *ResourceService {
	return &ResourceService{repo: repo, cache: cache}
}

func (s *ResourceService) List(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	if !kind.Valid() {
		return nil, domain.ErrNotFound
	}
	if s.cache != nil {
		if cached, err := s.cache.GetResources(ctx, kind); err == nil && cached != nil {
			return cached, nil
		}
	}

	resources, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetResources(ctx, kind, resources)
	}
	return resources, nil
}

func (s *ResourceService) GetByID(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	if !ref.Kind.Valid() {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, ref)
}

var _ ResourceUseCase = (*ResourceService)(nil)
