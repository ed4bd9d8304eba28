package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
)

// RecipeFilter narrows a recipe listing. Tags match by slug and are OR'ed.
// IsFavorited and IsInShoppingCart only apply to an authenticated viewer.
type RecipeFilter struct {
	Tags             []string
	AuthorID         *uuid.UUID
	IsFavorited      *bool
	IsInShoppingCart *bool
	Offset           int
	Limit            int
}

// RecipeDetail is a recipe together with the flags computed for one viewer.
type RecipeDetail struct {
	Recipe           models.Recipe
	AuthorSubscribed bool
	IsFavorited      bool
	IsInShoppingCart bool
}

type RecipeService struct {
	db     *gorm.DB
	images ImageStore
	log    *zap.Logger
}

func NewRecipeService(db *gorm.DB, images ImageStore, log *zap.Logger) *RecipeService {
	return &RecipeService{db: db, images: images, log: log}
}

func (s *RecipeService) preload(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name") }).
		Preload("Ingredients.Ingredient")
}

func (s *RecipeService) filterScope(viewer *uuid.UUID, f RecipeFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(f.Tags) > 0 {
			tagged := s.db.Model(&models.RecipeTag{}).
				Select("recipe_tags.recipe_id").
				Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
				Where("tags.slug IN ?", f.Tags)
			db = db.Where("recipes.id IN (?)", tagged)
		}
		if f.AuthorID != nil {
			db = db.Where("recipes.author_id = ?", *f.AuthorID)
		}
		if viewer == nil {
			return db
		}
		if f.IsFavorited != nil {
			favs := s.db.Model(&models.Favorite{}).Select("recipe_id").Where("user_id = ?", *viewer)
			if *f.IsFavorited {
				db = db.Where("recipes.id IN (?)", favs)
			} else {
				db = db.Where("recipes.id NOT IN (?)", favs)
			}
		}
		if f.IsInShoppingCart != nil {
			cart := s.db.Model(&models.ShoppingCartEntry{}).Select("recipe_id").Where("user_id = ?", *viewer)
			if *f.IsInShoppingCart {
				db = db.Where("recipes.id IN (?)", cart)
			} else {
				db = db.Where("recipes.id NOT IN (?)", cart)
			}
		}
		return db
	}
}

// List returns one page of recipes, newest first, and the total match count.
func (s *RecipeService) List(ctx context.Context, viewer *uuid.UUID, f RecipeFilter) ([]RecipeDetail, int64, error) {
	scope := s.filterScope(viewer, f)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Recipe{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recipes: %w", err)
	}

	var recipes []models.Recipe
	err := s.preload(s.db.WithContext(ctx)).
		Scopes(scope).
		Order("recipes.created_at DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	details, err := s.decorate(ctx, viewer, recipes)
	if err != nil {
		return nil, 0, err
	}
	return details, total, nil
}

func (s *RecipeService) Get(ctx context.Context, viewer *uuid.UUID, id uuid.UUID) (*RecipeDetail, error) {
	var recipe models.Recipe
	if err := s.preload(s.db.WithContext(ctx)).First(&recipe, "recipes.id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("recipe")
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	details, err := s.decorate(ctx, viewer, []models.Recipe{recipe})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// Create stores a recipe with its ingredient and tag links in one
// transaction.
func (s *RecipeService) Create(ctx context.Context, authorID uuid.UUID, in RecipeInput) (*RecipeDetail, error) {
	if err := validateRecipeInput(in, true); err != nil {
		return nil, err
	}
	img, err := decodeOptionalImage(in.Image)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		ID:          uuid.New(),
		AuthorID:    authorID,
		Name:        *in.Name,
		Text:        *in.Text,
		CookingTime: *in.CookingTime,
	}

	var stored string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, in); err != nil {
			return err
		}
		if img != nil {
			url, err := s.saveImage(ctx, img)
			if err != nil {
				return err
			}
			stored = img.Key()
			recipe.Image = url
		}
		if err := tx.Omit(clause.Associations).Create(&recipe).Error; err != nil {
			return fmt.Errorf("failed to create recipe: %w", err)
		}
		return replaceRecipeLinks(tx, recipe.ID, in)
	})
	if err != nil {
		s.discardImage(ctx, stored)
		return nil, err
	}

	recipesWritten.WithLabelValues("create").Inc()
	s.log.Info("recipe created", zap.String("recipe_id", recipe.ID.String()), zap.String("author_id", authorID.String()))
	return s.Get(ctx, &authorID, recipe.ID)
}

// Update changes a recipe owned by actor, or any recipe if actor is staff.
// Scalar fields left nil are kept; tags and ingredients are replaced.
func (s *RecipeService) Update(ctx context.Context, actorID, id uuid.UUID, in RecipeInput) (*RecipeDetail, error) {
	if err := validateRecipeInput(in, false); err != nil {
		return nil, err
	}
	img, err := decodeOptionalImage(in.Image)
	if err != nil {
		return nil, err
	}

	var stored string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := tx.First(&recipe, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("recipe")
			}
			return fmt.Errorf("failed to load recipe: %w", err)
		}
		if err := authorizeAuthor(tx, actorID, recipe.AuthorID); err != nil {
			return err
		}
		if err := checkReferences(tx, in); err != nil {
			return err
		}

		if in.Name != nil {
			recipe.Name = *in.Name
		}
		if in.Text != nil {
			recipe.Text = *in.Text
		}
		if in.CookingTime != nil {
			recipe.CookingTime = *in.CookingTime
		}
		if img != nil {
			url, err := s.saveImage(ctx, img)
			if err != nil {
				return err
			}
			stored = img.Key()
			recipe.Image = url
		}

		if err := tx.Omit(clause.Associations).Save(&recipe).Error; err != nil {
			return fmt.Errorf("failed to update recipe: %w", err)
		}
		return replaceRecipeLinks(tx, recipe.ID, in)
	})
	if err != nil {
		s.discardImage(ctx, stored)
		return nil, err
	}

	recipesWritten.WithLabelValues("update").Inc()
	return s.Get(ctx, &actorID, id)
}

// Delete removes a recipe and everything that references it.
func (s *RecipeService) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := tx.Select("id", "author_id").First(&recipe, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("recipe")
			}
			return fmt.Errorf("failed to load recipe: %w", err)
		}
		if err := authorizeAuthor(tx, actorID, recipe.AuthorID); err != nil {
			return err
		}
		return deleteRecipeRows(tx, []uuid.UUID{id})
	})
	if err != nil {
		return err
	}
	recipesWritten.WithLabelValues("delete").Inc()
	return nil
}

// decorate attaches the viewer-dependent flags and orders each recipe's
// ingredients by name.
func (s *RecipeService) decorate(ctx context.Context, viewer *uuid.UUID, recipes []models.Recipe) ([]RecipeDetail, error) {
	details := make([]RecipeDetail, len(recipes))
	for i := range recipes {
		sortIngredients(recipes[i].Ingredients)
		details[i].Recipe = recipes[i]
	}
	if viewer == nil || len(recipes) == 0 {
		return details, nil
	}

	recipeIDs := make([]uuid.UUID, 0, len(recipes))
	authorIDs := make([]uuid.UUID, 0, len(recipes))
	for _, r := range recipes {
		recipeIDs = append(recipeIDs, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}

	favorited, err := userRecipeSet(ctx, s.db, &models.Favorite{}, *viewer, recipeIDs)
	if err != nil {
		return nil, err
	}
	inCart, err := userRecipeSet(ctx, s.db, &models.ShoppingCartEntry{}, *viewer, recipeIDs)
	if err != nil {
		return nil, err
	}
	subscribed, err := subscribedAuthors(ctx, s.db, viewer, authorIDs)
	if err != nil {
		return nil, err
	}

	for i := range details {
		r := details[i].Recipe
		details[i].IsFavorited = favorited[r.ID]
		details[i].IsInShoppingCart = inCart[r.ID]
		details[i].AuthorSubscribed = subscribed[r.AuthorID]
	}
	return details, nil
}

func (s *RecipeService) saveImage(ctx context.Context, img *Image) (string, error) {
	if s.images == nil {
		return "", Validation("image", "Image uploads are not available.")
	}
	url, err := s.images.Save(ctx, img.Key(), img.Data, img.ContentType)
	if err != nil {
		s.log.Error("image upload failed", zap.Error(err))
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return url, nil
}

// discardImage removes an upload whose recipe row never committed.
func (s *RecipeService) discardImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("failed to remove orphaned image", zap.String("key", key), zap.Error(err))
	}
}

func sortIngredients(items []models.RecipeIngredient) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Ingredient.Name < items[j].Ingredient.Name
	})
}

func userRecipeSet(ctx context.Context, db *gorm.DB, model interface{}, userID uuid.UUID, recipeIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	var found []uuid.UUID
	err := db.WithContext(ctx).Model(model).
		Where("user_id = ? AND recipe_id IN ?", userID, recipeIDs).
		Pluck("recipe_id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe flags: %w", err)
	}
	set := make(map[uuid.UUID]bool, len(found))
	for _, id := range found {
		set[id] = true
	}
	return set, nil
}

// checkReferences verifies every tag and ingredient id exists.
func checkReferences(tx *gorm.DB, in RecipeInput) error {
	var count int64
	if err := tx.Model(&models.Tag{}).Where("id IN ?", in.Tags).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check tags: %w", err)
	}
	if int(count) != len(in.Tags) {
		return Validation("tags", "Unknown tag.")
	}

	ids := make([]uuid.UUID, 0, len(in.Ingredients))
	for _, item := range in.Ingredients {
		ids = append(ids, item.ID)
	}
	if err := tx.Model(&models.Ingredient{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check ingredients: %w", err)
	}
	if int(count) != len(ids) {
		return Validation("ingredients", "Unknown ingredient.")
	}
	return nil
}

func replaceRecipeLinks(tx *gorm.DB, recipeID uuid.UUID, in RecipeInput) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeIngredient{}).Error; err != nil {
		return fmt.Errorf("failed to clear recipe ingredients: %w", err)
	}
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.RecipeTag{}).Error; err != nil {
		return fmt.Errorf("failed to clear recipe tags: %w", err)
	}

	rows := make([]models.RecipeIngredient, 0, len(in.Ingredients))
	for _, item := range in.Ingredients {
		rows = append(rows, models.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: item.ID,
			Amount:       item.Amount,
		})
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Validation("ingredients", "Ingredients must not repeat.")
		}
		return fmt.Errorf("failed to link ingredients: %w", err)
	}

	tagRows := make([]models.RecipeTag, 0, len(in.Tags))
	for _, id := range in.Tags {
		tagRows = append(tagRows, models.RecipeTag{RecipeID: recipeID, TagID: id})
	}
	if err := tx.Create(&tagRows).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Validation("tags", "Tags must not repeat.")
		}
		return fmt.Errorf("failed to link tags: %w", err)
	}
	return nil
}

// deleteRecipeRows removes recipes and all rows that reference them.
func deleteRecipeRows(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	dependents := []interface{}{
		&models.RecipeIngredient{},
		&models.RecipeTag{},
		&models.Favorite{},
		&models.ShoppingCartEntry{},
	}
	for _, model := range dependents {
		if err := tx.Where("recipe_id IN ?", ids).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to delete recipe dependents: %w", err)
		}
	}
	if err := tx.Where("id IN ?", ids).Delete(&models.Recipe{}).Error; err != nil {
		return fmt.Errorf("failed to delete recipes: %w", err)
	}
	return nil
}

// authorizeAuthor allows the author and staff.
func authorizeAuthor(tx *gorm.DB, actorID, authorID uuid.UUID) error {
	if actorID == authorID {
		return nil
	}
	var actor models.User
	if err := tx.Select("id", "is_staff").First(&actor, "id = ?", actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Forbidden("You do not have permission to perform this action.")
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !actor.IsStaff {
		return Forbidden("You do not have permission to perform this action.")
	}
	return nil
}
