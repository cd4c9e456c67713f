package transport

import (
	"errors"
	"net/http"

	"inventract/internal/domain"
	"inventract/internal/middleware"
	"inventract/internal/repository"
	"inventract/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockMovementRequest represents a stock-in or stock-out request payload
type StockMovementRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"max=500"`
}

// AdjustmentRequest represents a stock adjustment request payload. Before is
// the computed stock the operator saw; After is the observed physical count.
type AdjustmentRequest struct {
	Before int    `json:"before"`
	After  int    `json:"after"`
	Reason string `json:"reason" validate:"max=500"`
}

// MovementResponse pairs the created movement with its ledger mirror
type MovementResponse struct {
	Movement *domain.StockMovement `json:"movement"`
	Ledger   *domain.LedgerEntry   `json:"ledger"`
}

// StockHandler handles HTTP requests for stock ledger operations
type StockHandler struct {
	stockService service.StockService
	logger       *zap.Logger
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stockService service.StockService, logger *zap.Logger) *StockHandler {
	return &StockHandler{
		stockService: stockService,
		logger:       logger,
	}
}

// RegisterRoutes registers all stock ledger routes. Writes require an
// authenticated caller; the performer identity comes from the token.
func (h *StockHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products/{id}/stock", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/in", h.StockIn)
		r.Post("/out", h.StockOut)
		r.Post("/adjust", h.Adjust)
		r.Get("/", h.CurrentStock)
		r.Get("/log", h.StockLog)
		r.Get("/value", h.TotalValue)
	})
}

// StockIn handles a stock entry
func (h *StockHandler) StockIn(w http.ResponseWriter, r *http.Request) {
	productID, req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}

	movement, entry, err := h.stockService.RecordStockIn(r.Context(), productID, req.Quantity, req.Reason, h.performer(r))
	if err != nil {
		h.respondMovementError(w, err, "stock-in")
		return
	}

	h.logger.Info("Stock-in recorded",
		zap.String("product_id", productID.String()),
		zap.Int("quantity", req.Quantity),
		zap.Int64("seq", movement.Seq),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, MovementResponse{Movement: movement, Ledger: entry})
}

// StockOut handles a stock exit
func (h *StockHandler) StockOut(w http.ResponseWriter, r *http.Request) {
	productID, req, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}

	movement, entry, err := h.stockService.RecordStockOut(r.Context(), productID, req.Quantity, req.Reason, h.performer(r))
	if err != nil {
		h.respondMovementError(w, err, "stock-out")
		return
	}

	h.logger.Info("Stock-out recorded",
		zap.String("product_id", productID.String()),
		zap.Int("quantity", req.Quantity),
		zap.Int64("seq", movement.Seq),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, MovementResponse{Movement: movement, Ledger: entry})
}

// Adjust handles a stock adjustment. Unlike stock-out, adjustments are not
// guarded against negative stock.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req AdjustmentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	movement, entry, err := h.stockService.RecordAdjustment(r.Context(), productID, req.Before, req.After, req.Reason, h.performer(r))
	if err != nil {
		h.respondMovementError(w, err, "adjustment")
		return
	}

	h.logger.Info("Adjustment recorded",
		zap.String("product_id", productID.String()),
		zap.Int("before", req.Before),
		zap.Int("after", req.After),
		zap.Int64("seq", movement.Seq),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, MovementResponse{Movement: movement, Ledger: entry})
}

// CurrentStock returns the derived stock for a product
func (h *StockHandler) CurrentStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	stock, err := h.stockService.CurrentStock(r.Context(), productID)
	if err != nil {
		h.respondMovementError(w, err, "current-stock")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":    productID,
		"current_stock": stock,
	})
}

// StockLog returns all movements merged with their ledger entries
func (h *StockHandler) StockLog(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	log, err := h.stockService.StockLog(r.Context(), productID)
	if err != nil {
		h.respondMovementError(w, err, "stock-log")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, log)
}

// TotalValue returns the live valuation of the product's current stock
func (h *StockHandler) TotalValue(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.productID(w, r)
	if !ok {
		return
	}

	value, err := h.stockService.TotalValue(r.Context(), productID)
	if err != nil {
		h.respondMovementError(w, err, "total-value")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, value)
}

func (h *StockHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *StockHandler) decodeMovement(w http.ResponseWriter, r *http.Request) (uuid.UUID, *StockMovementRequest, bool) {
	productID, ok := h.productID(w, r)
	if !ok {
		return uuid.Nil, nil, false
	}

	var req StockMovementRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return uuid.Nil, nil, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return uuid.Nil, nil, false
	}

	return productID, &req, true
}

// performer resolves the authenticated user as the movement's performed-by
// reference; nil when the ID cannot be parsed
func (h *StockHandler) performer(r *http.Request) *uuid.UUID {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return nil
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil
	}
	return &userID
}

func (h *StockHandler) respondMovementError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrLedgerMirror):
		// Movement rolled back because the ledger mirror failed; if the
		// wrapped error also reports a failed rollback this is a
		// data-corruption signal.
		h.logger.Error("Ledger consistency fault",
			zap.String("operation", operation),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to record movement")
	default:
		h.logger.Error("Stock operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to record movement")
	}
}
