package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// IngredientFilter selects ingredients whose name starts with Name,
// ignoring case.
type IngredientFilter struct {
	Name string
}

// LoadResult summarizes a bulk ingredient import.
type LoadResult struct {
	Created    int
	Duplicates int
}

type IngredientService struct {
	db *gorm.DB
}

func NewIngredientService(db *gorm.DB) *IngredientService {
	return &IngredientService{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *IngredientService) List(ctx context.Context, f IngredientFilter) ([]models.Ingredient, error) {
	q := s.db.WithContext(ctx).Order("name").Order("measurement_unit")
	if name := strings.TrimSpace(f.Name); name != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, likeEscaper.Replace(strings.ToLower(name))+"%")
	}

	var ingredients []models.Ingredient
	if err := q.Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *IngredientService) Get(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("ingredient")
		}
		return nil, fmt.Errorf("failed to get ingredient: %w", err)
	}
	return &ingredient, nil
}

// Load imports records in one transaction. Existing (name, unit) pairs and
// repeats inside records are counted as duplicates and skipped.
func (s *IngredientService) Load(ctx context.Context, records []types.IngredientRecord) (LoadResult, error) {
	var result LoadResult
	for i := range records {
		records[i].Name = strings.TrimSpace(records[i].Name)
		records[i].MeasurementUnit = strings.TrimSpace(records[i].MeasurementUnit)
		if err := ValidateStruct(&records[i]); err != nil {
			return result, fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			row := models.Ingredient{Name: rec.Name, MeasurementUnit: rec.MeasurementUnit}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			if res.Error != nil {
				return fmt.Errorf("failed to insert ingredient %q: %w", rec.Name, res.Error)
			}
			if res.RowsAffected == 0 {
				result.Duplicates++
				continue
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}
	return result, nil
}
