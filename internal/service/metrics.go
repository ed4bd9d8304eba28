package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// loginAttempts counts token logins. outcome is "success" or "failure".
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_login_attempts_total",
			Help: "Total number of token login attempts",
		},
		[]string{"outcome"},
	)

	recipesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodgram_recipes_written_total",
			Help: "Total number of recipe writes",
		},
		[]string{"operation"},
	)

	shoppingListBuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodgram_shopping_list_builds_total",
			Help: "Total number of shopping lists built",
		},
	)

	// shoppingListLines observes how many aggregated lines a list has.
	shoppingListLines = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foodgram_shopping_list_lines",
			Help:    "Number of aggregated lines per shopping list",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)
)
