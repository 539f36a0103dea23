// Package rest provides HTTP handlers for product and stock operations.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	producterrors "github.com/inventa/inventory/internal/errors"
	"github.com/inventa/inventory/internal/service"
	"github.com/inventa/inventory/pkg/web"
)

const msgStockNotPositive = "Stock must be a positive number!"

type Handler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new instance of the product API with the provided service.
func NewHandler(service service.ProductService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the inventory service.
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.FindAll)
		r.Post("/", h.Create)
		r.Delete("/", h.DeleteAll)

		r.Get("/stock/low", h.FindLowStock)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.FindByID)
			r.Patch("/", h.Update)
			r.Delete("/", h.DeleteByID)
			r.Patch("/increase-stock", h.IncreaseStock)
			r.Patch("/decrease-stock", h.DecreaseStock)
		})
	})

	r.Get("/healthz", h.HealthCheck)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		web.RespondError(w, h.logger, http.StatusNotFound, "Route not found!")
	})
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var productCreateDto service.ProductCreateDto
	if err := json.NewDecoder(r.Body).Decode(&productCreateDto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to create product", "product", productCreateDto)
	if !h.validateDto(w, r, mLogger, productCreateDto) {
		return
	}

	newProduct, err := h.service.Create(r.Context(), productCreateDto)
	if err != nil {
		if errors.Is(err, producterrors.ErrInvalidProduct) {
			mLogger.WarnContext(r.Context(), "Product constraint violated on create", "error", err)
			web.RespondError(w, mLogger, http.StatusBadRequest, "Product fields violate constraints")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error creating product", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Server error while creating product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product created successfully", "ID", newProduct.ID, "Name", newProduct.Name)
	web.RespondJSON(w, mLogger, http.StatusCreated, map[string]any{
		"message": "Product created successfully!",
		"product": newProduct,
	})
}

// FindAll retrieves a list of all products.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	mLogger.DebugContext(r.Context(), "Received request to find all products")
	list, err := h.service.FindAll(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving product list", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Server error while fetching products")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"products": list})
}

// FindByID retrieves a product by its ID.
func (h *Handler) FindByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to find product by ID", "ID", id)
	found, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, producterrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, "Product not found!")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error retrieving product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Server error while fetching product")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product", "ID", found.ID, "Name", found.Name)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"product": found})
}

// Update applies a partial update to a product. Fields absent from the
// request body are left unchanged.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to update product", "ID", id)
	var productDTO service.ProductUpdateDto
	if err := json.NewDecoder(r.Body).Decode(&productDTO); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.validateDto(w, r, mLogger, productDTO) {
		return
	}

	updated, err := h.service.Update(r.Context(), id, productDTO)
	if err != nil {
		switch {
		case errors.Is(err, producterrors.ErrProductNotFound):
			mLogger.WarnContext(r.Context(), "Product not found for update", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, "Product not found!")
		case errors.Is(err, producterrors.ErrInvalidProduct):
			mLogger.WarnContext(r.Context(), "Product constraint violated on update", "ID", id, "error", err)
			web.RespondError(w, mLogger, http.StatusBadRequest, "Product fields violate constraints")
		default:
			mLogger.ErrorContext(r.Context(), "Error updating product", "ID", id, "error", err)
			web.RespondError(w, mLogger, http.StatusInternalServerError, "Server error, update failed")
		}
		return
	}
	mLogger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": updated,
	})
}

// DeleteByID deletes a product by its ID.
func (h *Handler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to delete product", "ID", id)
	if err := h.service.DeleteByID(r.Context(), id); err != nil {
		if errors.Is(err, producterrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found for deletion", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, "Product not found!")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error deleting product", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Internal server error!")
		return
	}
	mLogger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]string{"message": "Product deleted successfully!"})
}

// DeleteAll removes every product. It refuses to act without the
// explicit ?confirm=true query parameter.
func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	if r.URL.Query().Get("confirm") != "true" {
		web.RespondError(w, mLogger, http.StatusBadRequest,
			"Please confirm deletion by sending '?confirm=true' in query")
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to delete all products")
	count, err := h.service.DeleteAll(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error deleting all products", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Internal server error while deleting all products")
		return
	}
	mLogger.InfoContext(r.Context(), "All products deleted", "count", count)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"message":      "All products deleted successfully!",
		"deletedCount": count,
	})
}

// FindLowStock retrieves the products below their low-stock threshold.
func (h *Handler) FindLowStock(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	mLogger.DebugContext(r.Context(), "Received request to find low stock products")
	list, err := h.service.FindLowStock(r.Context())
	if err != nil {
		mLogger.ErrorContext(r.Context(), "Error retrieving low stock products", "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Server error while fetching low stock products")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved low stock products", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{"products": list})
}

// IncreaseStock adds a positive amount to a product's stock quantity.
func (h *Handler) IncreaseStock(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	amount, ok := h.parseAdjustment(w, r, mLogger)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to increase stock", "ID", id, "amount", amount)

	updated, err := h.service.IncreaseStock(r.Context(), id, amount)
	if err != nil {
		if errors.Is(err, producterrors.ErrProductNotFound) {
			mLogger.WarnContext(r.Context(), "Product not found for stock increase", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, "Product not found!!")
			return
		}
		mLogger.ErrorContext(r.Context(), "Error increasing stock", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Internal server error while increasing stock quantity!")
		return
	}
	mLogger.InfoContext(r.Context(), "Stock increased successfully", "ID", updated.ID, "NewStock", updated.StockQuantity)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"message": "Stock quantity increased successfully!!",
		"product": updated,
	})
}

// DecreaseStock subtracts a positive amount from a product's stock quantity.
// The subtraction is conditioned on sufficient stock in a single store operation.
func (h *Handler) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	amount, ok := h.parseAdjustment(w, r, mLogger)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to decrease stock", "ID", id, "amount", amount)

	updated, err := h.service.DecreaseStock(r.Context(), id, amount)
	if err != nil {
		switch {
		case errors.Is(err, producterrors.ErrProductNotFound):
			mLogger.WarnContext(r.Context(), "Product not found for stock decrease", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, "Product not found!")
		case errors.Is(err, producterrors.ErrInsufficientStock):
			mLogger.WarnContext(r.Context(), "Insufficient stock for decrease", "ID", id, "amount", amount)
			web.RespondError(w, mLogger, http.StatusBadRequest,
				"Insufficient stock. Cannot decrease below available quantity.")
		default:
			mLogger.ErrorContext(r.Context(), "Error decreasing stock", "ID", id, "error", err)
			web.RespondError(w, mLogger, http.StatusInternalServerError, "Internal server error while decreasing stock quantity!")
		}
		return
	}
	mLogger.InfoContext(r.Context(), "Stock decreased successfully", "ID", updated.ID, "NewStock", updated.StockQuantity)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]any{
		"message": "Stock quantity decreased successfully!",
		"product": updated,
	})
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// parseAdjustment decodes and validates a stock adjustment body.
// Any malformed or non-positive amount gets the same response.
func (h *Handler) parseAdjustment(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger) (int64, bool) {
	var dto service.StockAdjustDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding stock adjustment body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, msgStockNotPositive)
		return 0, false
	}
	if err := h.validate.Struct(dto); err != nil {
		mLogger.WarnContext(r.Context(), "Invalid stock adjustment amount", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, msgStockNotPositive)
		return 0, false
	}
	return *dto.Stock, true
}

// validateDto validates a request DTO and writes a 400 response on failure.
func (h *Handler) validateDto(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, dto any) bool {
	err := h.validate.Struct(dto)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		// Collapse field-specific errors into one human-readable message.
		parts := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			parts = append(parts, fieldErr.Field()+" failed on rule: "+fieldErr.Tag())
		}
		message := "Validation failed: " + strings.Join(parts, "; ")
		mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", message)
		web.RespondError(w, mLogger, http.StatusBadRequest, message)
		return false
	}
	mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
	return false
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
