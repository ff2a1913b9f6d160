package testcases

import (
	"context"

	"github.com/ethereum-optimism/infra/ibs-acceptor/apiclient"
	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
)

const (
	IDCreateProduct    = "create-product"
	IDGetProduct       = "get-product"
	IDUpdateProduct    = "update-product"
	IDDeleteProduct    = "delete-product"
	IDCreateCustomer   = "create-customer"
	IDListCustomers    = "list-customers"
	IDCreateBilling    = "create-billing"
	IDIncrementBilling = "increment-billing"
	IDListBillings     = "list-billings"
)

// Column positions of the rows read back with SELECT *.
const (
	colName          = 1
	colBillingCustID = 1
	colBillingProdID = 2
	colBillingQty    = 3
)

// All returns the nine cases in the order they must run.
func All() []TestCase {
	return []TestCase{
		CreateProduct(),
		GetProduct(),
		UpdateProduct(),
		DeleteProduct(),
		CreateCustomer(),
		ListCustomers(),
		CreateBilling(),
		IncrementBilling(),
		ListBillings(),
	}
}

// TotalPoints sums the points available across cases.
func TotalPoints(cases []TestCase) int {
	total := 0
	for _, tc := range cases {
		total += tc.Points
	}
	return total
}

func CreateProduct() TestCase {
	return TestCase{
		ID:          IDCreateProduct,
		Description: "Check for successful product creation",
		Expected:    "product created successfully!",
		Failure:     "product creation was not successful!",
		Points:      10,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			payload := newProduct(env.Gen)
			ent, err := env.API.CreateProduct(ctx, payload)
			if err != nil {
				return callFailed(env, IDCreateProduct, err)
			}
			if ent.ID == nil {
				return failed(""), nil
			}
			id := int64(*ent.ID)
			remember(env, IDCreateProduct, rc.SetProductID(id))

			rec, err := recordByID(ctx, env.Store, store.TableProducts, id)
			if err != nil {
				return Result{}, err
			}
			if !columnEquals(rec, colName, payload.Name) {
				return failed(""), nil
			}
			remember(env, IDCreateProduct, rc.MarkProductCreated())
			return passed, nil
		},
	}
}

func GetProduct() TestCase {
	return TestCase{
		ID:          IDGetProduct,
		Description: "Check for successful product retrieval by id",
		Expected:    "product retrieved successfully!",
		Failure:     "product not retrieved!",
		Points:      10,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			id, err := seedProduct(ctx, env)
			if err != nil {
				env.Log.Warn("Failed to seed product", "case", IDGetProduct, "err", err)
				return failed("product creation failed! Failed to connect to db"), nil
			}

			ent, err := env.API.GetProduct(ctx, id)
			if err != nil {
				return callFailed(env, IDGetProduct, err)
			}
			if ent.ID == nil || int64(*ent.ID) != id {
				return failed(""), nil
			}
			return passed, nil
		},
	}
}

func UpdateProduct() TestCase {
	return TestCase{
		ID:          IDUpdateProduct,
		Description: "Check for updating a product",
		Expected:    "product updated successfully!",
		Failure:     "product not updated!",
		Points:      10,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			id, err := seedProduct(ctx, env)
			if err != nil {
				env.Log.Warn("Failed to seed product", "case", IDUpdateProduct, "err", err)
				return failed("product creation failed!"), nil
			}

			payload := newProduct(env.Gen)
			if err := env.API.UpdateProduct(ctx, id, payload); err != nil {
				return callFailed(env, IDUpdateProduct, err)
			}

			rec, err := recordByID(ctx, env.Store, store.TableProducts, id)
			if err != nil {
				return Result{}, err
			}
			if !columnEquals(rec, colName, payload.Name) {
				return failed(""), nil
			}
			return passed, nil
		},
	}
}

func DeleteProduct() TestCase {
	return TestCase{
		ID:          IDDeleteProduct,
		Description: "Check for deleting a product",
		Expected:    "product deleted successfully!",
		Failure:     "product not deleted!",
		Points:      10,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			id, err := seedProduct(ctx, env)
			if err != nil {
				env.Log.Warn("Failed to seed product", "case", IDDeleteProduct, "err", err)
				return failed("product creation failed!"), nil
			}

			if err := env.API.DeleteProduct(ctx, id); err != nil {
				return callFailed(env, IDDeleteProduct, err)
			}

			rec, err := recordByID(ctx, env.Store, store.TableProducts, id)
			if err != nil {
				return Result{}, err
			}
			if rec != nil {
				return failed(""), nil
			}
			return passed, nil
		},
	}
}

func CreateCustomer() TestCase {
	return TestCase{
		ID:          IDCreateCustomer,
		Description: "Check for successful customer creation",
		Expected:    "customer created successfully!",
		Failure:     "customer creation was not successful!",
		Points:      10,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			payload := newCustomer(env.Gen)
			ent, err := env.API.CreateCustomer(ctx, payload)
			if err != nil {
				return callFailed(env, IDCreateCustomer, err)
			}
			if ent.ID == nil {
				return failed(""), nil
			}
			id := int64(*ent.ID)
			remember(env, IDCreateCustomer, rc.SetCustomerID(id))

			rec, err := recordByID(ctx, env.Store, store.TableCustomers, id)
			if err != nil {
				return Result{}, err
			}
			if !columnEquals(rec, colName, payload.Name) {
				return failed(""), nil
			}
			remember(env, IDCreateCustomer, rc.MarkCustomerCreated())
			return passed, nil
		},
	}
}

func ListCustomers() TestCase {
	return TestCase{
		ID:          IDListCustomers,
		Description: "Check for retrieving all customers",
		Expected:    "All customers retrieved successfully!",
		Failure:     "All customers not retrieved!",
		Points:      10,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			var id int64
			err := withConn(ctx, env.Store, func(conn store.Conn) error {
				var err error
				c := newCustomer(env.Gen)
				id, err = conn.InsertCustomer(ctx, store.Customer{Name: c.Name, Email: c.Email})
				return err
			})
			if err != nil {
				env.Log.Warn("Failed to seed customer", "case", IDListCustomers, "err", err)
				return failed("customer creation failed!"), nil
			}

			customers, err := env.API.ListCustomers(ctx)
			if err != nil {
				return callFailed(env, IDListCustomers, err)
			}
			if !apiclient.Has(customers, id) {
				return failed(""), nil
			}
			return passed, nil
		},
	}
}

func CreateBilling() TestCase {
	return TestCase{
		ID:          IDCreateBilling,
		Description: "Check for successful billing creation",
		Expected:    "billing created successfully!",
		Failure:     "billing creation was not successful!",
		Points:      10,
		Requires: func(rc *RunContext) (bool, string) {
			if !rc.ProductCreated() {
				return false, DependencyFailed("product")
			}
			if !rc.CustomerCreated() {
				return false, DependencyFailed("customer")
			}
			return true, ""
		},
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			payload := newBilling(env.Gen, rc)
			ent, err := env.API.CreateBilling(ctx, payload)
			if err != nil {
				return callFailed(env, IDCreateBilling, err)
			}
			remember(env, IDCreateBilling, rc.AddBillingQuantity(payload.Quantity))
			if ent.ID == nil {
				return failed(""), nil
			}
			id := int64(*ent.ID)
			remember(env, IDCreateBilling, rc.SetBillingID(id))

			rec, err := recordByID(ctx, env.Store, store.TableBilling, id)
			if err != nil {
				return Result{}, err
			}
			if !columnIs(rec, colBillingCustID, payload.CustomerID) || !columnIs(rec, colBillingProdID, payload.ProductID) {
				return failed(""), nil
			}
			remember(env, IDCreateBilling, rc.MarkBillingCreated())
			return passed, nil
		},
	}
}

func IncrementBilling() TestCase {
	return TestCase{
		ID:          IDIncrementBilling,
		Description: "Check for updating quantity if product is already bought",
		Expected:    "quantity updated successfully!",
		Failure:     "quantity not updated!",
		Points:      10,
		Requires:    requiresBilling,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			payload := newBilling(env.Gen, rc)
			if _, err := env.API.CreateBilling(ctx, payload); err != nil {
				return callFailed(env, IDIncrementBilling, err)
			}
			remember(env, IDIncrementBilling, rc.AddBillingQuantity(payload.Quantity))

			billingID, _ := rc.BillingID()
			rec, err := recordByID(ctx, env.Store, store.TableBilling, billingID)
			if err != nil {
				return Result{}, err
			}
			if !columnIs(rec, colBillingQty, int64(rc.BillingQuantityTotal())) {
				return failed(""), nil
			}
			return passed, nil
		},
	}
}

func ListBillings() TestCase {
	return TestCase{
		ID:          IDListBillings,
		Description: "Check for retrieving all billings by customer id",
		Expected:    "All billings retrieved successfully!",
		Failure:     "All billings not retrieved!",
		Points:      20,
		Requires:    requiresBilling,
		Run: func(ctx context.Context, env *Env, rc *RunContext) (Result, error) {
			customerID, _ := rc.CustomerID()
			billingID, _ := rc.BillingID()

			billings, err := env.API.ListBillings(ctx, customerID)
			if err != nil {
				return callFailed(env, IDListBillings, err)
			}
			if !apiclient.Has(billings, billingID) {
				return failed(""), nil
			}
			return passed, nil
		},
	}
}

func requiresBilling(rc *RunContext) (bool, string) {
	if !rc.BillingCreated() {
		return false, DependencyFailed("billing")
	}
	return true, ""
}

func newBilling(g Generator, rc *RunContext) apiclient.BillingPayload {
	customerID, _ := rc.CustomerID()
	productID, _ := rc.ProductID()
	return apiclient.BillingPayload{
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   g.BillingQuantity(),
	}
}

// seedProduct inserts a fixture product straight into the store.
func seedProduct(ctx context.Context, env *Env) (int64, error) {
	var id int64
	err := withConn(ctx, env.Store, func(conn store.Conn) error {
		var err error
		p := newProduct(env.Gen)
		id, err = conn.InsertProduct(ctx, store.Product{Name: p.Name, Price: p.Price, Quantity: p.Quantity})
		return err
	})
	return id, err
}

func columnEquals(rec *store.Record, col int, want string) bool {
	if rec == nil {
		return false
	}
	got, err := rec.String(col)
	return err == nil && got == want
}

func columnIs(rec *store.Record, col int, want int64) bool {
	if rec == nil {
		return false
	}
	got, err := rec.Int64(col)
	return err == nil && got == want
}
