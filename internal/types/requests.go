package types

import "github.com/google/uuid"

// CreateUserRequest is the sign-up payload.
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email,max=254"`
	Username  string `json:"username" binding:"required,max=150,username"`
	FirstName string `json:"first_name" binding:"required,max=150"`
	LastName  string `json:"last_name" binding:"required,max=150"`
	Password  string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest exchanges email and password for a token.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
	CurrentPassword string `json:"current_password" binding:"required"`
}

// IngredientAmount references an existing ingredient with the amount used.
type IngredientAmount struct {
	ID     uuid.UUID `json:"id" binding:"required"`
	Amount int       `json:"amount"`
}

// RecipeRequest is used for both create and partial update. On update a nil
// scalar keeps the stored value; tags and ingredients always replace.
type RecipeRequest struct {
	Name        *string            `json:"name" binding:"omitempty,max=100"`
	Text        *string            `json:"text"`
	Image       *string            `json:"image"`
	CookingTime *int               `json:"cooking_time"`
	Tags        []uuid.UUID        `json:"tags"`
	Ingredients []IngredientAmount `json:"ingredients" binding:"dive"`
}

// CreateTagRequest is used by the admin CLI.
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Color string `json:"color" binding:"required,hexcolor6"`
	Slug  string `json:"slug" binding:"required,max=100,slug"`
}

// IngredientRecord is one entry of an ingredient import file.
type IngredientRecord struct {
	Name            string `json:"name" binding:"required,max=100"`
	MeasurementUnit string `json:"measurement_unit" binding:"required,max=16"`
}
