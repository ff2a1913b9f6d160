package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/ethereum-optimism/infra/ibs-acceptor/store"
)

const (
	RouteCreateProduct  = "create-product"
	RouteGetProduct     = "get-product"
	RouteUpdateProduct  = "update-product"
	RouteDeleteProduct  = "delete-product"
	RouteCreateCustomer = "create-customer"
	RouteListCustomers  = "list-customers"
	RouteCreateBilling  = "create-billing"
	RouteListBillings   = "list-billings"
)

// Behavior bends the fake service away from the contract so failure paths can be exercised.
type Behavior struct {
	// FailStatus forces the response status of the named route.
	FailStatus map[string]int
	// NoBillingIncrement inserts a new billing row for a repeated customer/product pair.
	NoBillingIncrement bool
	// IgnoreDelete answers DELETE with 200 but keeps the row.
	IgnoreDelete bool
	// StringIDs encodes ids as JSON strings.
	StringIDs bool
}

// IBS is a fake inventory/billing service persisting into a MemStore.
type IBS struct {
	Store    *MemStore
	behavior Behavior
	router   *mux.Router

	mu    sync.Mutex
	calls map[string]int
}

func NewIBS(s *MemStore, b Behavior) *IBS {
	ibs := &IBS{Store: s, behavior: b, calls: make(map[string]int)}

	r := mux.NewRouter()
	r.HandleFunc("/api/products", ibs.route(RouteCreateProduct, ibs.createProduct)).Methods(http.MethodPost)
	r.HandleFunc("/api/products/{id:[0-9]+}", ibs.route(RouteGetProduct, ibs.getProduct)).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id:[0-9]+}", ibs.route(RouteUpdateProduct, ibs.updateProduct)).Methods(http.MethodPut)
	r.HandleFunc("/api/products/{id:[0-9]+}", ibs.route(RouteDeleteProduct, ibs.deleteProduct)).Methods(http.MethodDelete)
	r.HandleFunc("/api/customers", ibs.route(RouteCreateCustomer, ibs.createCustomer)).Methods(http.MethodPost)
	r.HandleFunc("/api/customers", ibs.route(RouteListCustomers, ibs.listCustomers)).Methods(http.MethodGet)
	r.HandleFunc("/api/billing", ibs.route(RouteCreateBilling, ibs.createBilling)).Methods(http.MethodPost)
	r.HandleFunc("/api/billing/{id:[0-9]+}", ibs.route(RouteListBillings, ibs.listBillings)).Methods(http.MethodGet)
	ibs.router = r
	return ibs
}

func (s *IBS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve starts the fake on an httptest server that is closed with the test.
func (s *IBS) Serve(t testing.TB) *httptest.Server {
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv
}

// Calls returns how many requests the named route received.
func (s *IBS) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns how many requests the fake received.
func (s *IBS) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *IBS) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		s.mu.Unlock()

		if status, ok := s.behavior.FailStatus[name]; ok {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		h(w, r)
	}
}

type productBody struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

type customerBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type billingBody struct {
	CustomerID int64 `json:"cust_id"`
	ProductID  int64 `json:"prod_id"`
	Quantity   int64 `json:"quantity"`
}

func (s *IBS) createProduct(w http.ResponseWriter, r *http.Request) {
	var p productBody
	if !decode(w, r, &p) {
		return
	}
	id, _ := s.Store.Insert(store.TableProducts, p.Name, p.Price, p.Quantity)
	writeJSON(w, http.StatusCreated, s.entity(id, "name", p.Name, "price", p.Price, "quantity", p.Quantity))
}

func (s *IBS) getProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	recs := s.Store.Find(store.TableProducts, byID(id))
	if len(recs) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	v := recs[0].Values
	writeJSON(w, http.StatusOK, s.entity(id, "name", v[1], "price", v[2], "quantity", v[3]))
}

func (s *IBS) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p productBody
	if !decode(w, r, &p) {
		return
	}
	id := pathID(r)
	ok := s.Store.Update(store.TableProducts, id, func(row []any) {
		row[1], row[2], row[3] = p.Name, p.Price, p.Quantity
	})
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.entity(id, "name", p.Name, "price", p.Price, "quantity", p.Quantity))
}

func (s *IBS) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if !s.behavior.IgnoreDelete && !s.Store.Delete(store.TableProducts, id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (s *IBS) createCustomer(w http.ResponseWriter, r *http.Request) {
	var c customerBody
	if !decode(w, r, &c) {
		return
	}
	id, _ := s.Store.Insert(store.TableCustomers, c.Name, c.Email)
	writeJSON(w, http.StatusCreated, s.entity(id, "name", c.Name, "email", c.Email))
}

func (s *IBS) listCustomers(w http.ResponseWriter, r *http.Request) {
	out := []map[string]any{}
	for _, rec := range s.Store.Find(store.TableCustomers, nil) {
		id, _ := rec.Int64(0)
		out = append(out, s.entity(id, "name", rec.Values[1], "email", rec.Values[2]))
	}
	writeJSON(w, http.StatusOK, out)
}

// createBilling adds to the quantity of an existing customer/product row, or inserts one.
func (s *IBS) createBilling(w http.ResponseWriter, r *http.Request) {
	var b billingBody
	if !decode(w, r, &b) {
		return
	}
	if len(s.Store.Find(store.TableCustomers, byID(b.CustomerID))) == 0 ||
		len(s.Store.Find(store.TableProducts, byID(b.ProductID))) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown customer or product"})
		return
	}

	if !s.behavior.NoBillingIncrement {
		existing := s.Store.Find(store.TableBilling, func(row []any) bool {
			return row[1] == b.CustomerID && row[2] == b.ProductID
		})
		if len(existing) > 0 {
			id, _ := existing[0].Int64(0)
			var qty int64
			s.Store.Update(store.TableBilling, id, func(row []any) {
				qty = row[3].(int64) + b.Quantity
				row[3] = qty
			})
			writeJSON(w, http.StatusOK, s.entity(id, "cust_id", b.CustomerID, "prod_id", b.ProductID, "quantity", qty))
			return
		}
	}

	id, _ := s.Store.Insert(store.TableBilling, b.CustomerID, b.ProductID, b.Quantity)
	writeJSON(w, http.StatusCreated, s.entity(id, "cust_id", b.CustomerID, "prod_id", b.ProductID, "quantity", b.Quantity))
}

func (s *IBS) listBillings(w http.ResponseWriter, r *http.Request) {
	customerID := pathID(r)
	out := []map[string]any{}
	for _, rec := range s.Store.Find(store.TableBilling, func(row []any) bool { return row[1] == customerID }) {
		id, _ := rec.Int64(0)
		out = append(out, s.entity(id, "cust_id", rec.Values[1], "prod_id", rec.Values[2], "quantity", rec.Values[3]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *IBS) entity(id int64, kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2+1)
	if s.behavior.StringIDs {
		m["id"] = strconv.FormatInt(id, 10)
	} else {
		m["id"] = id
	}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func byID(id int64) func(row []any) bool {
	return func(row []any) bool { return row[0] == id }
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
