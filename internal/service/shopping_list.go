package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ShoppingListFilename is the download name of a rendered shopping list.
const ShoppingListFilename = "shoplist.txt"

// ShoppingItem is one aggregated line: the summed amount of an ingredient
// across all recipes in the cart.
type ShoppingItem struct {
	Name  string
	Unit  string
	Total int64
}

type ShoppingListService struct {
	db *gorm.DB
}

func NewShoppingListService(db *gorm.DB) *ShoppingListService {
	return &ShoppingListService{db: db}
}

// Build groups the ingredients of every recipe in the user's cart by
// (name, unit) and sums the amounts, ordered by name then unit.
func (s *ShoppingListService) Build(ctx context.Context, userID uuid.UUID) ([]ShoppingItem, error) {
	query, args, err := squirrel.
		Select("i.name AS name", "i.measurement_unit AS unit", "SUM(ri.amount) AS total").
		From("recipe_ingredients ri").
		Join("ingredients i ON i.id = ri.ingredient_id").
		Join("shopping_cart_entries sc ON sc.recipe_id = ri.recipe_id").
		Where(squirrel.Eq{"sc.user_id": userID.String()}).
		GroupBy("i.name", "i.measurement_unit").
		OrderBy("i.name", "i.measurement_unit").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build shopping list sql")
	}

	items := make([]ShoppingItem, 0)
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, errors.Wrap(err, "scan shopping list")
	}

	shoppingListBuilds.Inc()
	shoppingListLines.Observe(float64(len(items)))
	return items, nil
}

// Render formats items as "{name} - {amount} {unit}" lines.
func Render(items []ShoppingItem) []byte {
	var buf bytes.Buffer
	for _, item := range items {
		fmt.Fprintf(&buf, "%s - %d %s\n", item.Name, item.Total, item.Unit)
	}
	return buf.Bytes()
}
