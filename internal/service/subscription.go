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

// AuthorRecipes is a followed author with a preview of their recipes.
type AuthorRecipes struct {
	Author       models.User
	Recipes      []models.Recipe
	RecipesCount int64
}

type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// Subscribe makes follower follow author. recipesLimit caps the recipe
// preview; a negative value means no cap.
func (s *SubscriptionService) Subscribe(ctx context.Context, followerID, authorID uuid.UUID, recipesLimit int) (*AuthorRecipes, error) {
	if followerID == authorID {
		return nil, Validation("", "You cannot subscribe to yourself.")
	}

	var author models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&author, "id = ?", authorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("user")
			}
			return fmt.Errorf("failed to load author: %w", err)
		}

		var count int64
		if err := tx.Model(&models.Subscription{}).
			Where("follower_id = ? AND author_id = ?", followerID, authorID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}
		if count > 0 {
			return Conflict("You are already subscribed to this user.")
		}

		sub := models.Subscription{FollowerID: followerID, AuthorID: authorID}
		if err := tx.Omit(clause.Associations).Create(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return Conflict("You are already subscribed to this user.")
			}
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries, err := s.withRecipes(ctx, []models.User{author}, recipesLimit)
	if err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, followerID, authorID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", authorID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to load author: %w", err)
		}
		if count == 0 {
			return NotFound("user")
		}

		res := tx.Where("follower_id = ? AND author_id = ?", followerID, authorID).Delete(&models.Subscription{})
		if res.Error != nil {
			return fmt.Errorf("failed to unsubscribe: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &Error{Kind: KindNotFound, Message: "You are not subscribed to this user."}
		}
		return nil
	})
}

// List returns the authors follower follows, in subscription order.
func (s *SubscriptionService) List(ctx context.Context, followerID uuid.UUID, offset, limit, recipesLimit int) ([]AuthorRecipes, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("follower_id = ?", followerID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	var authors []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
		Where("subscriptions.follower_id = ?", followerID).
		Order("subscriptions.created_at, users.username").
		Offset(offset).
		Limit(limit).
		Find(&authors).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	entries, err := s.withRecipes(ctx, authors, recipesLimit)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *SubscriptionService) withRecipes(ctx context.Context, authors []models.User, recipesLimit int) ([]AuthorRecipes, error) {
	entries := make([]AuthorRecipes, 0, len(authors))
	for _, author := range authors {
		entry := AuthorRecipes{Author: author}

		if err := s.db.WithContext(ctx).Model(&models.Recipe{}).
			Where("author_id = ?", author.ID).
			Count(&entry.RecipesCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count author recipes: %w", err)
		}

		q := s.db.WithContext(ctx).Where("author_id = ?", author.ID).Order("created_at DESC")
		if recipesLimit >= 0 {
			q = q.Limit(recipesLimit)
		}
		if err := q.Find(&entry.Recipes).Error; err != nil {
			return nil, fmt.Errorf("failed to load author recipes: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
