package api

import (
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

func toUserResponse(u *models.User, subscribed bool) types.UserResponse {
	return types.UserResponse{
		Email:        u.Email,
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsSubscribed: subscribed,
	}
}

func toTagResponse(t models.Tag) types.TagResponse {
	return types.TagResponse{ID: t.ID, Name: t.Name, Color: t.Color, Slug: t.Slug}
}

func toIngredientResponse(i models.Ingredient) types.IngredientResponse {
	return types.IngredientResponse{ID: i.ID, Name: i.Name, MeasurementUnit: i.MeasurementUnit}
}

func toRecipeResponse(d service.RecipeDetail) types.RecipeResponse {
	r := d.Recipe
	resp := types.RecipeResponse{
		ID:               r.ID,
		Author:           toUserResponse(&r.Author, d.AuthorSubscribed),
		Name:             r.Name,
		Image:            r.Image,
		Text:             r.Text,
		Ingredients:      make([]types.RecipeIngredientResponse, 0, len(r.Ingredients)),
		Tags:             make([]types.TagResponse, 0, len(r.Tags)),
		CookingTime:      r.CookingTime,
		IsFavorited:      d.IsFavorited,
		IsInShoppingCart: d.IsInShoppingCart,
	}
	for _, ri := range r.Ingredients {
		resp.Ingredients = append(resp.Ingredients, types.RecipeIngredientResponse{
			ID:              ri.Ingredient.ID,
			Name:            ri.Ingredient.Name,
			MeasurementUnit: ri.Ingredient.MeasurementUnit,
			Amount:          ri.Amount,
		})
	}
	for _, t := range r.Tags {
		resp.Tags = append(resp.Tags, toTagResponse(t))
	}
	return resp
}

func toShortRecipe(r *models.Recipe) types.ShortRecipeResponse {
	return types.ShortRecipeResponse{ID: r.ID, Name: r.Name, Image: r.Image, CookingTime: r.CookingTime}
}

func toSubscriptionResponse(e service.AuthorRecipes) types.SubscriptionResponse {
	recipes := make([]types.ShortRecipeResponse, 0, len(e.Recipes))
	for i := range e.Recipes {
		recipes = append(recipes, toShortRecipe(&e.Recipes[i]))
	}
	return types.SubscriptionResponse{
		UserResponse: toUserResponse(&e.Author, true),
		Recipes:      recipes,
		RecipesCount: e.RecipesCount,
	}
}
