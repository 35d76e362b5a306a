package service

import (
	"context"

	"rotinas/internal/model"
	"rotinas/internal/repository"
)

// CategoryService provides helpers around categories of the current user.
type CategoryService struct {
	repo  *repository.CategoryRepository
	prefs *repository.PreferenceRepository
}

func NewCategoryService(repo *repository.CategoryRepository, prefs *repository.PreferenceRepository) *CategoryService {
	return &CategoryService{repo: repo, prefs: prefs}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUser(ctx, userID)
}

// GetOrCreate returns the named category, creating it on first use. An empty
// name yields nil.
func (s *CategoryService) GetOrCreate(ctx context.Context, name string) (*model.Category, error) {
	userID, err := s.prefs.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetOrCreate(ctx, userID, name)
}
