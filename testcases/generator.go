package testcases

import (
	"math/rand/v2"
	"strings"

	"github.com/ethereum-optimism/infra/ibs-acceptor/apiclient"
)

const (
	nameLength  = 10
	emailDomain = "@gmail.com"
	alphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	MinPrice           = 100
	MaxPrice           = 1000
	MinProductQuantity = 1
	MaxProductQuantity = 100
	MinBillingQuantity = 1
	MaxBillingQuantity = 10
)

// Generator produces the field values of the payloads sent to the service.
type Generator interface {
	Name() string
	Email() string
	Price() int
	ProductQuantity() int
	BillingQuantity() int
}

// RandomGenerator draws every value uniformly from its documented range.
type RandomGenerator struct{}

var _ Generator = RandomGenerator{}

func (RandomGenerator) Name() string {
	var sb strings.Builder
	sb.Grow(nameLength)
	for i := 0; i < nameLength; i++ {
		sb.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return sb.String()
}

func (g RandomGenerator) Email() string {
	return g.Name() + emailDomain
}

func (RandomGenerator) Price() int {
	return between(MinPrice, MaxPrice)
}

func (RandomGenerator) ProductQuantity() int {
	return between(MinProductQuantity, MaxProductQuantity)
}

func (RandomGenerator) BillingQuantity() int {
	return between(MinBillingQuantity, MaxBillingQuantity)
}

// between returns a value in [lo, hi].
func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}

func newProduct(g Generator) apiclient.ProductPayload {
	return apiclient.ProductPayload{
		Name:     g.Name(),
		Price:    g.Price(),
		Quantity: g.ProductQuantity(),
	}
}

func newCustomer(g Generator) apiclient.CustomerPayload {
	return apiclient.CustomerPayload{
		Name:  g.Name(),
		Email: g.Email(),
	}
}
