package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/mocks"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

const onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type recipeFixture struct {
	db      *gorm.DB
	svc     *service.RecipeService
	author  *models.User
	eggs    *models.Ingredient
	salt    *models.Ingredient
	butter  *models.Ingredient
	morning *models.Tag
	lunch   *models.Tag
}

func setupRecipeTest(t *testing.T, images service.ImageStore) *recipeFixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	return &recipeFixture{
		db:      db,
		svc:     service.NewRecipeService(db, images, zap.NewNop()),
		author:  testhelpers.CreateUser(t, db, "chef"),
		eggs:    testhelpers.CreateIngredient(t, db, "eggs", "pcs"),
		salt:    testhelpers.CreateIngredient(t, db, "salt", "g"),
		butter:  testhelpers.CreateIngredient(t, db, "butter", "g"),
		morning: testhelpers.CreateTag(t, db, "Breakfast", "#E26C2D", "breakfast"),
		lunch:   testhelpers.CreateTag(t, db, "Lunch", "#49B64E", "lunch"),
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func (f *recipeFixture) input(name string, cookingTime int) service.RecipeInput {
	return service.RecipeInput{
		Name:        strPtr(name),
		Text:        strPtr("Whisk and fry."),
		CookingTime: intPtr(cookingTime),
		Tags:        []uuid.UUID{f.morning.ID},
		Ingredients: []types.IngredientAmount{
			{ID: f.eggs.ID, Amount: 2},
			{ID: f.salt.ID, Amount: 5},
		},
	}
}

func TestCreateRecipeStoresSubmittedSets(t *testing.T) {
	f := setupRecipeTest(t, nil)
	in := f.input("Omelette", 10)
	in.Tags = []uuid.UUID{f.lunch.ID, f.morning.ID}

	detail, err := f.svc.Create(context.Background(), f.author.ID, in)
	require.NoError(t, err)

	r := detail.Recipe
	assert.Equal(t, "Omelette", r.Name)
	assert.Equal(t, f.author.ID, r.Author.ID)
	assert.Equal(t, 10, r.CookingTime)

	require.Len(t, r.Tags, 2)
	assert.Equal(t, "Breakfast", r.Tags[0].Name)
	assert.Equal(t, "Lunch", r.Tags[1].Name)

	amounts := map[uuid.UUID]int{}
	for _, ri := range r.Ingredients {
		amounts[ri.IngredientID] = ri.Amount
	}
	assert.Equal(t, map[uuid.UUID]int{f.eggs.ID: 2, f.salt.ID: 5}, amounts)
	assert.Equal(t, "eggs", r.Ingredients[0].Ingredient.Name)
	assert.Equal(t, "salt", r.Ingredients[1].Ingredient.Name)
}

func TestCreateRecipeCookingTimeBounds(t *testing.T) {
	f := setupRecipeTest(t, nil)

	tests := []struct {
		cookingTime int
		ok          bool
	}{
		{0, false},
		{1, true},
		{1440, true},
		{1441, false},
	}
	for _, tt := range tests {
		_, err := f.svc.Create(context.Background(), f.author.ID, f.input("Timed", tt.cookingTime))
		if tt.ok {
			assert.NoError(t, err, "cooking_time %d", tt.cookingTime)
			continue
		}
		var serr *service.Error
		require.ErrorAs(t, err, &serr, "cooking_time %d", tt.cookingTime)
		assert.Equal(t, service.KindValidation, serr.Kind)
		assert.Equal(t, "cooking_time", serr.Field)
	}
}

func TestCreateRecipeRejectsBadIngredients(t *testing.T) {
	f := setupRecipeTest(t, nil)

	tests := []struct {
		name        string
		ingredients []types.IngredientAmount
	}{
		{"empty", nil},
		{"duplicate", []types.IngredientAmount{{ID: f.eggs.ID, Amount: 1}, {ID: f.eggs.ID, Amount: 2}}},
		{"zero amount", []types.IngredientAmount{{ID: f.eggs.ID, Amount: 0}}},
		{"unknown", []types.IngredientAmount{{ID: uuid.New(), Amount: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input("Broken", 5)
			in.Ingredients = tt.ingredients

			_, err := f.svc.Create(context.Background(), f.author.ID, in)
			var serr *service.Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, service.KindValidation, serr.Kind)
			assert.Equal(t, "ingredients", serr.Field)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Recipe{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRecipeRejectsBadTags(t *testing.T) {
	f := setupRecipeTest(t, nil)

	for name, tags := range map[string][]uuid.UUID{
		"empty":     nil,
		"duplicate": {f.morning.ID, f.morning.ID},
		"unknown":   {uuid.New()},
	} {
		in := f.input("Broken", 5)
		in.Tags = tags
		_, err := f.svc.Create(context.Background(), f.author.ID, in)
		var serr *service.Error
		require.ErrorAs(t, err, &serr, name)
		assert.Equal(t, "tags", serr.Field, name)
	}
}

func TestCreateRecipeRequiresFields(t *testing.T) {
	f := setupRecipeTest(t, nil)

	in := f.input("", 5)
	_, err := f.svc.Create(context.Background(), f.author.ID, in)
	var serr *service.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "name", serr.Field)

	in = f.input("Soup", 5)
	in.Text = nil
	_, err = f.svc.Create(context.Background(), f.author.ID, in)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "text", serr.Field)
}

func TestCreateRecipeWithImage(t *testing.T) {
	images := new(mocks.MockImageStore)
	images.On("Save", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > 0
	}), mock.Anything, "image/png").Return("https://cdn.example.com/recipes/images/x.png", nil)

	f := setupRecipeTest(t, images)
	in := f.input("Pictured", 5)
	in.Image = strPtr(onePixelPNG)

	detail, err := f.svc.Create(context.Background(), f.author.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/recipes/images/x.png", detail.Recipe.Image)
	images.AssertExpectations(t)
}

func TestCreateRecipeImageWithoutStore(t *testing.T) {
	f := setupRecipeTest(t, nil)
	in := f.input("Pictured", 5)
	in.Image = strPtr(onePixelPNG)

	_, err := f.svc.Create(context.Background(), f.author.ID, in)
	var serr *service.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "image", serr.Field)
}

func TestUpdateRecipeReplacesLinks(t *testing.T) {
	f := setupRecipeTest(t, nil)
	created, err := f.svc.Create(context.Background(), f.author.ID, f.input("Omelette", 10))
	require.NoError(t, err)

	update := service.RecipeInput{
		CookingTime: intPtr(15),
		Tags:        []uuid.UUID{f.lunch.ID},
		Ingredients: []types.IngredientAmount{{ID: f.butter.ID, Amount: 20}},
	}
	updated, err := f.svc.Update(context.Background(), f.author.ID, created.Recipe.ID, update)
	require.NoError(t, err)

	r := updated.Recipe
	assert.Equal(t, "Omelette", r.Name)
	assert.Equal(t, "Whisk and fry.", r.Text)
	assert.Equal(t, 15, r.CookingTime)
	require.Len(t, r.Tags, 1)
	assert.Equal(t, f.lunch.ID, r.Tags[0].ID)
	require.Len(t, r.Ingredients, 1)
	assert.Equal(t, "butter", r.Ingredients[0].Ingredient.Name)
	assert.Equal(t, 20, r.Ingredients[0].Amount)

	var links int64
	require.NoError(t, f.db.Model(&models.RecipeIngredient{}).Count(&links).Error)
	assert.Equal(t, int64(1), links)
}

func TestUpdateRecipePermissions(t *testing.T) {
	f := setupRecipeTest(t, nil)
	created, err := f.svc.Create(context.Background(), f.author.ID, f.input("Omelette", 10))
	require.NoError(t, err)

	stranger := testhelpers.CreateUser(t, f.db, "stranger")
	_, err = f.svc.Update(context.Background(), stranger.ID, created.Recipe.ID, f.input("Mine now", 10))
	assert.True(t, service.IsKind(err, service.KindPermission))

	err = f.svc.Delete(context.Background(), stranger.ID, created.Recipe.ID)
	assert.True(t, service.IsKind(err, service.KindPermission))

	staff := testhelpers.CreateStaff(t, f.db, "moderator")
	updated, err := f.svc.Update(context.Background(), staff.ID, created.Recipe.ID, f.input("Moderated", 10))
	require.NoError(t, err)
	assert.Equal(t, "Moderated", updated.Recipe.Name)
	assert.Equal(t, f.author.ID, updated.Recipe.AuthorID)
}

func TestUpdateMissingRecipe(t *testing.T) {
	f := setupRecipeTest(t, nil)
	_, err := f.svc.Update(context.Background(), f.author.ID, uuid.New(), f.input("Nothing", 10))
	assert.True(t, service.IsKind(err, service.KindNotFound))
}

func TestDeleteRecipeRemovesDependents(t *testing.T) {
	f := setupRecipeTest(t, nil)
	created, err := f.svc.Create(context.Background(), f.author.ID, f.input("Omelette", 10))
	require.NoError(t, err)
	id := created.Recipe.ID

	fan := testhelpers.CreateUser(t, f.db, "fan")
	testhelpers.AddFavorite(t, f.db, fan.ID, id)
	testhelpers.AddToCart(t, f.db, fan.ID, id)

	require.NoError(t, f.svc.Delete(context.Background(), f.author.ID, id))

	for _, model := range []interface{}{&models.Recipe{}, &models.RecipeIngredient{}, &models.RecipeTag{}, &models.Favorite{}, &models.ShoppingCartEntry{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}

	_, err = f.svc.Get(context.Background(), nil, id)
	assert.True(t, service.IsKind(err, service.KindNotFound))
}

func TestListRecipesFilters(t *testing.T) {
	f := setupRecipeTest(t, nil)
	other := testhelpers.CreateUser(t, f.db, "other")

	omelette := testhelpers.CreateRecipe(t, f.db, f.author, testhelpers.RecipeFixture{
		Name: "Omelette", Tags: []*models.Tag{f.morning}, Amounts: map[*models.Ingredient]int{f.eggs: 2},
	})
	sandwich := testhelpers.CreateRecipe(t, f.db, other, testhelpers.RecipeFixture{
		Name: "Sandwich", Tags: []*models.Tag{f.lunch}, Amounts: map[*models.Ingredient]int{f.butter: 10},
	})
	porridge := testhelpers.CreateRecipe(t, f.db, other, testhelpers.RecipeFixture{
		Name: "Porridge", Tags: []*models.Tag{f.morning, f.lunch}, Amounts: map[*models.Ingredient]int{f.salt: 1},
	})

	base := time.Now().Add(-time.Hour)
	for i, r := range []*models.Recipe{omelette, sandwich, porridge} {
		require.NoError(t, f.db.Model(r).Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	names := func(details []service.RecipeDetail) []string {
		out := make([]string, 0, len(details))
		for _, d := range details {
			out = append(out, d.Recipe.Name)
		}
		return out
	}

	all, total, err := f.svc.List(context.Background(), nil, service.RecipeFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []string{"Porridge", "Sandwich", "Omelette"}, names(all))

	byTag, total, err := f.svc.List(context.Background(), nil, service.RecipeFilter{Tags: []string{"breakfast"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"Porridge", "Omelette"}, names(byTag))

	anyTag, total, err := f.svc.List(context.Background(), nil, service.RecipeFilter{Tags: []string{"breakfast", "lunch"}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, anyTag, 3)

	byAuthor, _, err := f.svc.List(context.Background(), nil, service.RecipeFilter{AuthorID: &other.ID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"Porridge", "Sandwich"}, names(byAuthor))

	page, total, err := f.svc.List(context.Background(), nil, service.RecipeFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, []string{"Sandwich"}, names(page))
}

func TestListRecipesViewerFlags(t *testing.T) {
	f := setupRecipeTest(t, nil)
	viewer := testhelpers.CreateUser(t, f.db, "viewer")

	omelette := testhelpers.CreateRecipe(t, f.db, f.author, testhelpers.RecipeFixture{
		Name: "Omelette", Tags: []*models.Tag{f.morning}, Amounts: map[*models.Ingredient]int{f.eggs: 2},
	})
	testhelpers.CreateRecipe(t, f.db, f.author, testhelpers.RecipeFixture{
		Name: "Toast", Tags: []*models.Tag{f.morning}, Amounts: map[*models.Ingredient]int{f.butter: 5},
	})
	testhelpers.AddFavorite(t, f.db, viewer.ID, omelette.ID)
	testhelpers.AddToCart(t, f.db, viewer.ID, omelette.ID)
	testhelpers.Subscribe(t, f.db, viewer.ID, f.author.ID)

	yes, no := true, false

	favs, total, err := f.svc.List(context.Background(), &viewer.ID, service.RecipeFilter{IsFavorited: &yes, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, favs, 1)
	assert.Equal(t, omelette.ID, favs[0].Recipe.ID)
	assert.True(t, favs[0].IsFavorited)
	assert.True(t, favs[0].IsInShoppingCart)
	assert.True(t, favs[0].AuthorSubscribed)

	notInCart, _, err := f.svc.List(context.Background(), &viewer.ID, service.RecipeFilter{IsInShoppingCart: &no, Limit: 10})
	require.NoError(t, err)
	require.Len(t, notInCart, 1)
	assert.Equal(t, "Toast", notInCart[0].Recipe.Name)
	assert.False(t, notInCart[0].IsInShoppingCart)
}

func TestListRecipesAnonymousIgnoresViewerFilters(t *testing.T) {
	f := setupRecipeTest(t, nil)
	viewer := testhelpers.CreateUser(t, f.db, "viewer")
	omelette := testhelpers.CreateRecipe(t, f.db, f.author, testhelpers.RecipeFixture{
		Name: "Omelette", Tags: []*models.Tag{f.morning}, Amounts: map[*models.Ingredient]int{f.eggs: 2},
	})
	testhelpers.CreateRecipe(t, f.db, f.author, testhelpers.RecipeFixture{
		Name: "Toast", Tags: []*models.Tag{f.morning}, Amounts: map[*models.Ingredient]int{f.butter: 5},
	})
	testhelpers.AddToCart(t, f.db, viewer.ID, omelette.ID)

	yes := true
	details, total, err := f.svc.List(context.Background(), nil, service.RecipeFilter{IsInShoppingCart: &yes, IsFavorited: &yes, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, d := range details {
		assert.False(t, d.IsInShoppingCart)
		assert.False(t, d.IsFavorited)
		assert.False(t, d.AuthorSubscribed)
	}
}

// failInsertsInto makes every INSERT into table fail on db.
func failInsertsInto(t *testing.T, db *gorm.DB, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_"+table, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errors.New("insert refused"))
		}
	})
	require.NoError(t, err)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestCreateRecipeRollsBackOnLinkFailure(t *testing.T) {
	for _, table := range []string{"recipe_ingredients", "recipe_tags"} {
		t.Run(table, func(t *testing.T) {
			f := setupRecipeTest(t, nil)
			failInsertsInto(t, f.db, table)

			_, err := f.svc.Create(context.Background(), f.author.ID, f.input("Omelette", 10))
			require.ErrorContains(t, err, "insert refused")

			assert.Zero(t, countRows(t, f.db, &models.Recipe{}))
			assert.Zero(t, countRows(t, f.db, &models.RecipeIngredient{}))
			assert.Zero(t, countRows(t, f.db, &models.RecipeTag{}))
		})
	}
}

func TestUpdateRecipeRollsBackOnLinkFailure(t *testing.T) {
	for _, table := range []string{"recipe_ingredients", "recipe_tags"} {
		t.Run(table, func(t *testing.T) {
			f := setupRecipeTest(t, nil)
			created, err := f.svc.Create(context.Background(), f.author.ID, f.input("Omelette", 10))
			require.NoError(t, err)
			failInsertsInto(t, f.db, table)

			update := service.RecipeInput{
				Name:        strPtr("Renamed"),
				Tags:        []uuid.UUID{f.lunch.ID},
				Ingredients: []types.IngredientAmount{{ID: f.butter.ID, Amount: 20}},
			}
			_, err = f.svc.Update(context.Background(), f.author.ID, created.Recipe.ID, update)
			require.ErrorContains(t, err, "insert refused")

			got, err := f.svc.Get(context.Background(), nil, created.Recipe.ID)
			require.NoError(t, err)
			assert.Equal(t, "Omelette", got.Recipe.Name)
			require.Len(t, got.Recipe.Tags, 1)
			assert.Equal(t, f.morning.ID, got.Recipe.Tags[0].ID)
			require.Len(t, got.Recipe.Ingredients, 2)
			assert.Equal(t, "eggs", got.Recipe.Ingredients[0].Ingredient.Name)
			assert.Equal(t, 2, got.Recipe.Ingredients[0].Amount)
			assert.Equal(t, "salt", got.Recipe.Ingredients[1].Ingredient.Name)
			assert.Equal(t, 5, got.Recipe.Ingredients[1].Amount)
		})
	}
}

func TestCreateRecipeRemovesImageOnRollback(t *testing.T) {
	var savedKey string
	images := new(mocks.MockImageStore)
	images.On("Save", mock.Anything, mock.Anything, mock.Anything, "image/png").
		Run(func(args mock.Arguments) { savedKey = args.String(1) }).
		Return("https://cdn.example.com/x.png", nil)
	images.On("Delete", mock.Anything, mock.MatchedBy(func(key string) bool {
		return key != "" && key == savedKey
	})).Return(nil)

	f := setupRecipeTest(t, images)
	failInsertsInto(t, f.db, "recipe_ingredients")

	in := f.input("Pictured", 5)
	in.Image = strPtr(onePixelPNG)
	_, err := f.svc.Create(context.Background(), f.author.ID, in)
	require.Error(t, err)

	images.AssertExpectations(t)
	assert.Zero(t, countRows(t, f.db, &models.Recipe{}))
}

func TestCreateRecipeKeepsImageOnSuccess(t *testing.T) {
	images := new(mocks.MockImageStore)
	images.On("Save", mock.Anything, mock.Anything, mock.Anything, "image/png").
		Return("https://cdn.example.com/x.png", nil)

	f := setupRecipeTest(t, images)
	in := f.input("Pictured", 5)
	in.Image = strPtr(onePixelPNG)
	_, err := f.svc.Create(context.Background(), f.author.ID, in)
	require.NoError(t, err)

	images.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUpdateRecipeRemovesImageOnRollback(t *testing.T) {
	root := t.TempDir()
	f := setupRecipeTest(t, service.NewDiskImageStore(root, "/media"))
	created, err := f.svc.Create(context.Background(), f.author.ID, f.input("Omelette", 10))
	require.NoError(t, err)
	failInsertsInto(t, f.db, "recipe_tags")

	in := f.input("Omelette", 10)
	in.Image = strPtr(onePixelPNG)
	_, err = f.svc.Update(context.Background(), f.author.ID, created.Recipe.ID, in)
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "recipes", "images"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	got, err := f.svc.Get(context.Background(), nil, created.Recipe.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Recipe.Image)
}
