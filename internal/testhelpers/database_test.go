package testhelpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
)

func TestDatabaseSetup(t *testing.T) {
	db := SetupTestDB(t)

	author := CreateUser(t, db, "chef")
	assert.NotZero(t, author.ID)

	salt := CreateIngredient(t, db, "salt", "g")
	breakfast := CreateTag(t, db, "Breakfast", "#E26C2D", "breakfast")

	recipe := CreateRecipe(t, db, author, RecipeFixture{
		Name:    "Omelette",
		Tags:    []*models.Tag{breakfast},
		Amounts: map[*models.Ingredient]int{salt: 5},
	})

	var loaded models.Recipe
	err := db.Preload("Tags").Preload("Ingredients.Ingredient").First(&loaded, "id = ?", recipe.ID).Error
	require.NoError(t, err)
	assert.Equal(t, author.ID, loaded.AuthorID)
	require.Len(t, loaded.Tags, 1)
	assert.Equal(t, "breakfast", loaded.Tags[0].Slug)
	require.Len(t, loaded.Ingredients, 1)
	assert.Equal(t, "salt", loaded.Ingredients[0].Ingredient.Name)
	assert.Equal(t, 5, loaded.Ingredients[0].Amount)
}

func TestDatabasesAreIsolated(t *testing.T) {
	first := SetupTestDB(t)
	second := SetupTestDB(t)

	CreateUser(t, first, "only-here")

	var count int64
	require.NoError(t, second.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUniqueIndexesTranslate(t *testing.T) {
	db := SetupTestDB(t)
	CreateIngredient(t, db, "salt", "g")

	err := db.Create(&models.Ingredient{Name: "salt", MeasurementUnit: "g"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	CreateTag(t, db, "Lunch", "#49B64E", "lunch")
	err = db.Create(&models.Tag{Name: "Dinner", Color: "#000000", Slug: "lunch"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestPostgresMigrations(t *testing.T) {
	db := SetupPostgresDB(t)

	for _, table := range []string{"users", "subscriptions", "tags", "ingredients", "recipes",
		"recipe_ingredients", "recipe_tags", "favorites", "shopping_cart_entries"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	author := CreateUser(t, db, "pg-chef")
	slow := &models.Recipe{AuthorID: author.ID, Name: "Too slow", Text: "x", CookingTime: 1441}
	err := db.Omit(clause.Associations).Create(slow).Error
	assert.Error(t, err, "cooking_time check constraint")
}
