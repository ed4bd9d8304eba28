package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

const reservedUsername = "me"

var (
	hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	slugRe     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)

	validate = newValidator()
)

// RegisterValidators adds the custom tags used by request types. It is
// called for the service validator and for gin's binding engine.
func RegisterValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"hexcolor6": func(fl validator.FieldLevel) bool {
			return hexColorRe.MatchString(fl.Field().String())
		},
		"slug": func(fl validator.FieldLevel) bool {
			return slugRe.MatchString(fl.Field().String())
		},
		"username": func(fl validator.FieldLevel) bool {
			return ValidUsername(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register validator %s: %w", tag, err)
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := RegisterValidators(v); err != nil {
		panic(err)
	}
	return v
}

// ValidUsername reports whether name matches the allowed character set and
// is not the reserved "me".
func ValidUsername(name string) bool {
	return usernameRe.MatchString(name) && strings.ToLower(name) != reservedUsername
}

// ValidateStruct runs the service validator and turns the first failure
// into a field validation error.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return Validation(fe.Field(), DescribeFieldError(fe))
	}
	return Validation("", err.Error())
}

// DescribeFieldError renders a validator failure as a user-facing message.
func DescribeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "hexcolor6":
		return "Enter a color in #RRGGBB format."
	case "slug":
		return "Enter a valid slug of letters, digits, underscores or hyphens."
	case "username":
		return "Enter a valid username. The name \"me\" is reserved."
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}

// RecipeInput is the validated form of a recipe write.
type RecipeInput struct {
	Name        *string
	Text        *string
	Image       *string
	CookingTime *int
	Tags        []uuid.UUID
	Ingredients []types.IngredientAmount
}

// RecipeInputFromRequest copies a request payload into a RecipeInput.
func RecipeInputFromRequest(req *types.RecipeRequest) RecipeInput {
	return RecipeInput{
		Name:        req.Name,
		Text:        req.Text,
		Image:       req.Image,
		CookingTime: req.CookingTime,
		Tags:        req.Tags,
		Ingredients: req.Ingredients,
	}
}

// validateRecipeInput checks everything that does not need the database.
// creating requires every scalar field to be present.
func validateRecipeInput(in RecipeInput, creating bool) error {
	if creating {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return Validation("name", "This field is required.")
		}
		if in.Text == nil || strings.TrimSpace(*in.Text) == "" {
			return Validation("text", "This field is required.")
		}
		if in.CookingTime == nil {
			return Validation("cooking_time", "This field is required.")
		}
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return Validation("name", "This field may not be blank.")
		}
		if len([]rune(*in.Name)) > 100 {
			return Validation("name", "Ensure this field has no more than 100 characters.")
		}
	}
	if in.Text != nil && strings.TrimSpace(*in.Text) == "" {
		return Validation("text", "This field may not be blank.")
	}
	if in.CookingTime != nil {
		ct := *in.CookingTime
		if ct < models.MinCookingTime || ct > models.MaxCookingTime {
			return Validation("cooking_time", fmt.Sprintf("Cooking time must be between %d and %d minutes.", models.MinCookingTime, models.MaxCookingTime))
		}
	}

	if len(in.Ingredients) == 0 {
		return Validation("ingredients", "At least one ingredient is required.")
	}
	seenIngredients := make(map[uuid.UUID]struct{}, len(in.Ingredients))
	for _, item := range in.Ingredients {
		if item.ID == uuid.Nil {
			return Validation("ingredients", "Ingredient id is required.")
		}
		if item.Amount < models.MinAmount {
			return Validation("ingredients", fmt.Sprintf("Amount must be at least %d.", models.MinAmount))
		}
		if _, dup := seenIngredients[item.ID]; dup {
			return Validation("ingredients", "Ingredients must not repeat.")
		}
		seenIngredients[item.ID] = struct{}{}
	}

	if len(in.Tags) == 0 {
		return Validation("tags", "At least one tag is required.")
	}
	seenTags := make(map[uuid.UUID]struct{}, len(in.Tags))
	for _, id := range in.Tags {
		if _, dup := seenTags[id]; dup {
			return Validation("tags", "Tags must not repeat.")
		}
		seenTags[id] = struct{}{}
	}
	return nil
}
