package storage

import (
	"context"
	"fmt"

	"github.com/terra-clan/toolkit-engine/internal/models"
)

// CatalogStore reads toolkits, schedules and the reference rows joined onto answers.
// Lookups return nil, nil when the row does not exist.
type CatalogStore struct {
	db Executor
}

// NewCatalogStore creates a catalog store
func NewCatalogStore(db Executor) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) GetToolkit(ctx context.Context, id string) (*models.Toolkit, error) {
	var toolkit models.Toolkit
	found, err := s.getOne(ctx, "tool_kits", id, &toolkit)
	if err != nil || !found {
		return nil, err
	}
	return &toolkit, nil
}

func (s *CatalogStore) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule
	found, err := s.getOne(ctx, "user_schedules", id, &schedule)
	if err != nil || !found {
		return nil, err
	}
	return &schedule, nil
}

func (s *CatalogStore) GetActivity(ctx context.Context, id string) (*models.Activity, error) {
	var activity models.Activity
	found, err := s.getOne(ctx, "activities", id, &activity)
	if err != nil || !found {
		return nil, err
	}
	return &activity, nil
}

func (s *CatalogStore) GetIntensity(ctx context.Context, id string) (*models.Intensity, error) {
	var intensity models.Intensity
	found, err := s.getOne(ctx, "intensities", id, &intensity)
	if err != nil || !found {
		return nil, err
	}
	return &intensity, nil
}

func (s *CatalogStore) GetAlcoholType(ctx context.Context, id string) (*models.AlcoholType, error) {
	var alcoholType models.AlcoholType
	found, err := s.getOne(ctx, "alcohol_types", id, &alcoholType)
	if err != nil || !found {
		return nil, err
	}
	return &alcoholType, nil
}

func (s *CatalogStore) GetMoodCategory(ctx context.Context, id string) (*models.MoodCategory, error) {
	var category models.MoodCategory
	found, err := s.getOne(ctx, "mood_categories", id, &category)
	if err != nil || !found {
		return nil, err
	}
	return &category, nil
}

// MoodSubCategories returns the sub-categories among ids that belong to the category
func (s *CatalogStore) MoodSubCategories(ctx context.Context, categoryID string, ids []string) ([]models.MoodSubCategory, error) {
	if len(ids) == 0 {
		return []models.MoodSubCategory{}, nil
	}

	query := fmt.Sprintf(
		`SELECT %s FROM mood_sub_categories
		WHERE mood_category_id = $1 AND id = ANY($2)
		ORDER BY title`,
		selectList(models.MoodSubCategory{}),
	)

	rows, err := s.db.Query(ctx, query, categoryID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list mood sub-categories: %w", err)
	}

	subs := make([]models.MoodSubCategory, 0, len(rows))
	for _, row := range rows {
		var sub models.MoodSubCategory
		if err := decodeRow(row, &sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *CatalogStore) getOne(ctx context.Context, table, id string, dst any) (bool, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectList(dst), table)

	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to get %s row: %w", table, err)
	}
	if len(rows) == 0 {
		return false, nil
	}
	if err := decodeRow(rows[0], dst); err != nil {
		return false, err
	}
	return true, nil
}
