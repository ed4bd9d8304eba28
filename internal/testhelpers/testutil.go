package testhelpers

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
)

// DefaultPassword is the plain-text password of every fixture user.
const DefaultPassword = "s3cret-pass"

// CreateUser inserts an active user whose email and names derive from
// username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Email:        fmt.Sprintf("%s@example.com", strings.ToLower(username)),
		Username:     username,
		FirstName:    "First " + username,
		LastName:     "Last " + username,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateStaff inserts an active staff user.
func CreateStaff(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := CreateUser(t, db, username)
	require.NoError(t, db.Model(user).Update("is_staff", true).Error)
	user.IsStaff = true
	return user
}

func CreateTag(t *testing.T, db *gorm.DB, name, color, slug string) *models.Tag {
	t.Helper()
	tag := &models.Tag{Name: name, Color: color, Slug: slug}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

func CreateIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ingredient := &models.Ingredient{Name: name, MeasurementUnit: unit}
	require.NoError(t, db.Create(ingredient).Error)
	return ingredient
}

// RecipeFixture describes a recipe inserted directly, bypassing the service
// layer validation.
type RecipeFixture struct {
	Name        string
	CookingTime int
	Tags        []*models.Tag
	Amounts     map[*models.Ingredient]int
}

func CreateRecipe(t *testing.T, db *gorm.DB, author *models.User, f RecipeFixture) *models.Recipe {
	t.Helper()

	if f.CookingTime == 0 {
		f.CookingTime = 10
	}
	recipe := &models.Recipe{
		AuthorID:    author.ID,
		Name:        f.Name,
		Text:        "Cook " + f.Name,
		CookingTime: f.CookingTime,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(recipe).Error)

	for _, tag := range f.Tags {
		require.NoError(t, db.Create(&models.RecipeTag{RecipeID: recipe.ID, TagID: tag.ID}).Error)
	}
	for ingredient, amount := range f.Amounts {
		row := &models.RecipeIngredient{RecipeID: recipe.ID, IngredientID: ingredient.ID, Amount: amount}
		require.NoError(t, db.Omit(clause.Associations).Create(row).Error)
	}
	return recipe
}

func AddToCart(t *testing.T, db *gorm.DB, userID, recipeID uuid.UUID) {
	t.Helper()
	row := &models.ShoppingCartEntry{UserID: userID, RecipeID: recipeID}
	require.NoError(t, db.Omit(clause.Associations).Create(row).Error)
}

func AddFavorite(t *testing.T, db *gorm.DB, userID, recipeID uuid.UUID) {
	t.Helper()
	row := &models.Favorite{UserID: userID, RecipeID: recipeID}
	require.NoError(t, db.Omit(clause.Associations).Create(row).Error)
}

func Subscribe(t *testing.T, db *gorm.DB, followerID, authorID uuid.UUID) {
	t.Helper()
	row := &models.Subscription{FollowerID: followerID, AuthorID: authorID}
	require.NoError(t, db.Omit(clause.Associations).Create(row).Error)
}
