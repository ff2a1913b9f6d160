package testcases

import (
	"errors"
	"fmt"
)

// ErrAlreadySet is returned when a run-context field is assigned a second time.
var ErrAlreadySet = errors.New("already set for this run")

// RunContext carries the state later cases depend on from earlier ones. It is
// created fresh for each run and is only touched from the runner goroutine.
type RunContext struct {
	productID  *int64
	customerID *int64
	billingID  *int64

	productCreated  bool
	customerCreated bool
	billingCreated  bool

	billingQuantityTotal int
}

func NewRunContext() *RunContext {
	return &RunContext{}
}

func setOnce(field **int64, name string, id int64) error {
	if *field != nil {
		return fmt.Errorf("%s %w (have %d, got %d)", name, ErrAlreadySet, **field, id)
	}
	*field = &id
	return nil
}

func markOnce(field *bool, name string) error {
	if *field {
		return fmt.Errorf("%s %w", name, ErrAlreadySet)
	}
	*field = true
	return nil
}

func get(field *int64) (int64, bool) {
	if field == nil {
		return 0, false
	}
	return *field, true
}

func (rc *RunContext) ProductID() (int64, bool)  { return get(rc.productID) }
func (rc *RunContext) CustomerID() (int64, bool) { return get(rc.customerID) }
func (rc *RunContext) BillingID() (int64, bool)  { return get(rc.billingID) }

func (rc *RunContext) SetProductID(id int64) error  { return setOnce(&rc.productID, "product id", id) }
func (rc *RunContext) SetCustomerID(id int64) error { return setOnce(&rc.customerID, "customer id", id) }
func (rc *RunContext) SetBillingID(id int64) error  { return setOnce(&rc.billingID, "billing id", id) }

func (rc *RunContext) ProductCreated() bool  { return rc.productCreated }
func (rc *RunContext) CustomerCreated() bool { return rc.customerCreated }
func (rc *RunContext) BillingCreated() bool  { return rc.billingCreated }

func (rc *RunContext) MarkProductCreated() error {
	return markOnce(&rc.productCreated, "product created")
}

func (rc *RunContext) MarkCustomerCreated() error {
	return markOnce(&rc.customerCreated, "customer created")
}

func (rc *RunContext) MarkBillingCreated() error {
	return markOnce(&rc.billingCreated, "billing created")
}

// AddBillingQuantity adds an accepted billing quantity to the running total.
func (rc *RunContext) AddBillingQuantity(q int) error {
	if q <= 0 {
		return fmt.Errorf("billing quantity must be positive, got %d", q)
	}
	rc.billingQuantityTotal += q
	return nil
}

func (rc *RunContext) BillingQuantityTotal() int {
	return rc.billingQuantityTotal
}

// LogValues returns the context as key/value pairs for structured logging.
func (rc *RunContext) LogValues() []any {
	var kv []any
	if id, ok := rc.ProductID(); ok {
		kv = append(kv, "product_id", id)
	}
	if id, ok := rc.CustomerID(); ok {
		kv = append(kv, "customer_id", id)
	}
	if id, ok := rc.BillingID(); ok {
		kv = append(kv, "billing_id", id)
	}
	return append(kv,
		"product_created", rc.productCreated,
		"customer_created", rc.customerCreated,
		"billing_created", rc.billingCreated,
		"billing_quantity", rc.billingQuantityTotal,
	)
}
