package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
)

// CollectionService manages a user's favorites and shopping cart.
type CollectionService struct {
	db *gorm.DB
}

func NewCollectionService(db *gorm.DB) *CollectionService {
	return &CollectionService{db: db}
}

func (s *CollectionService) AddFavorite(ctx context.Context, userID, recipeID uuid.UUID) (*models.Recipe, error) {
	row := &models.Favorite{UserID: userID, RecipeID: recipeID}
	return addUserRecipe(ctx, s.db, row, userID, recipeID, "favorites")
}

func (s *CollectionService) RemoveFavorite(ctx context.Context, userID, recipeID uuid.UUID) error {
	return removeUserRecipe[models.Favorite](ctx, s.db, userID, recipeID, "favorites")
}

func (s *CollectionService) AddToCart(ctx context.Context, userID, recipeID uuid.UUID) (*models.Recipe, error) {
	row := &models.ShoppingCartEntry{UserID: userID, RecipeID: recipeID}
	return addUserRecipe(ctx, s.db, row, userID, recipeID, "the shopping cart")
}

func (s *CollectionService) RemoveFromCart(ctx context.Context, userID, recipeID uuid.UUID) error {
	return removeUserRecipe[models.ShoppingCartEntry](ctx, s.db, userID, recipeID, "the shopping cart")
}

// addUserRecipe inserts a (user, recipe) row. The existence check and the
// insert share a transaction and the unique index catches concurrent inserts.
func addUserRecipe[T any](ctx context.Context, db *gorm.DB, row *T, userID, recipeID uuid.UUID, label string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&recipe, "id = ?", recipeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("recipe")
			}
			return fmt.Errorf("failed to load recipe: %w", err)
		}

		var count int64
		if err := tx.Model(new(T)).Where("user_id = ? AND recipe_id = ?", userID, recipeID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check %s: %w", label, err)
		}
		if count > 0 {
			return Conflict(fmt.Sprintf("Recipe is already in %s.", label))
		}

		if err := tx.Omit(clause.Associations).Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return Conflict(fmt.Sprintf("Recipe is already in %s.", label))
			}
			return fmt.Errorf("failed to add to %s: %w", label, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func removeUserRecipe[T any](ctx context.Context, db *gorm.DB, userID, recipeID uuid.UUID, label string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to load recipe: %w", err)
		}
		if count == 0 {
			return NotFound("recipe")
		}

		res := tx.Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(new(T))
		if res.Error != nil {
			return fmt.Errorf("failed to remove from %s: %w", label, res.Error)
		}
		if res.RowsAffected == 0 {
			return &Error{Kind: KindNotFound, Message: fmt.Sprintf("Recipe is not in %s.", label)}
		}
		return nil
	})
}
