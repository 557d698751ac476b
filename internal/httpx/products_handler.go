package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-inventory-orders/internal/orders"
)

// ProductStore is satisfied by *orders.ProductRepo.
type ProductStore interface {
	Create(ctx context.Context, np orders.NewProduct) (*orders.Product, error)
	List(ctx context.Context) ([]orders.Product, error)
	Get(ctx context.Context, id int64) (*orders.Product, error)
	Update(ctx context.Context, id int64, patch orders.ProductPatch) (*orders.Product, error)
	SoftDelete(ctx context.Context, id int64) error
}

type ProductsHandler struct {
	Products ProductStore
}

func (h *ProductsHandler) Register(r chi.Router, staff func(http.Handler) http.Handler) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(staff)
		r.Post("/products", h.create)
		r.Patch("/products/{id}", h.update)
		r.Delete("/products/{id}", h.delete)
	})
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeValidation(w, FieldErrors{"id": {"id must be greater than 0."}})
		return 0, false
	}
	return id, true
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.List(ctx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.Get(ctx, id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var np orders.NewProduct
	if err := decode(r, &np); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fe := validateStruct(np)
	if np.Price.IsNegative() {
		if fe == nil {
			fe = FieldErrors{}
		}
		fe.Add("price", "Price must be >= 0.")
	}
	if fe != nil {
		writeValidation(w, fe)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.Create(ctx, np)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/products/"+strconv.FormatInt(p.ID, 10))
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var patch orders.ProductPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fe := validateStruct(patch)
	if fe == nil {
		fe = FieldErrors{}
	}
	if patch.Name == nil && patch.Price == nil {
		fe.Add("", "At least one field must be provided for an update.")
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		fe.Add("price", "Price must be >= 0.")
	}
	if len(fe) > 0 {
		writeValidation(w, fe)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.Update(ctx, id, patch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Products.SoftDelete(ctx, id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
