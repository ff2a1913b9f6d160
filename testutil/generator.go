package testutil

import (
	"fmt"
	"sync"
)

// Generator hands out scripted payload values, falling back to deterministic
// defaults once a script runs out.
type Generator struct {
	Names             []string
	Prices            []int
	ProductQuantities []int
	BillingQuantities []int

	mu sync.Mutex
	n  int
}

func pop[T any](mu *sync.Mutex, queue *[]T, fallback T) T {
	mu.Lock()
	defer mu.Unlock()
	if len(*queue) == 0 {
		return fallback
	}
	v := (*queue)[0]
	*queue = (*queue)[1:]
	return v
}

func (g *Generator) Name() string {
	g.mu.Lock()
	g.n++
	fallback := fmt.Sprintf("name%06d", g.n)
	g.mu.Unlock()
	return pop(&g.mu, &g.Names, fallback)
}

func (g *Generator) Email() string {
	return g.Name() + "@gmail.com"
}

func (g *Generator) Price() int {
	return pop(&g.mu, &g.Prices, 500)
}

func (g *Generator) ProductQuantity() int {
	return pop(&g.mu, &g.ProductQuantities, 10)
}

func (g *Generator) BillingQuantity() int {
	return pop(&g.mu, &g.BillingQuantities, 1)
}
