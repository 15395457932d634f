package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/go-pos-store/internal/auth"
	"github.com/safar/go-pos-store/internal/export"
	"github.com/safar/go-pos-store/internal/finance"
	"github.com/safar/go-pos-store/internal/inventory"
	"github.com/safar/go-pos-store/internal/logging"
	"github.com/safar/go-pos-store/internal/sales"
	"go.uber.org/zap"
)

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, errorBody{Message: message})
}

// respondErr maps service errors to status codes. Anything unrecognised is a
// 500 carrying the underlying message.
func respondErr(c *gin.Context, err error) {
	var (
		stockErr *sales.InsufficientStockError
		persist  *sales.PersistenceError
	)

	switch {
	case errors.As(err, &stockErr):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, sales.ErrItemsNotFound):
		respondError(c, http.StatusBadRequest, "Some items not found or missing")
	case errors.Is(err, sales.ErrInvalidRequest),
		errors.Is(err, inventory.ErrInvalidIntake),
		errors.Is(err, finance.ErrAmountRequired),
		errors.Is(err, export.ErrUnknownType):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, sales.ErrUnauthorized), errors.Is(err, auth.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, export.ErrNoData):
		respondError(c, http.StatusNotFound, "No data found")
	case errors.Is(err, sales.ErrOrderNotFound):
		respondError(c, http.StatusNotFound, "Order not found")
	case errors.As(err, &persist):
		logging.FromContext(c.Request.Context()).Error("request_failed", zap.String("step", persist.Step), zap.Error(persist.Err))
		c.JSON(http.StatusInternalServerError, errorBody{
			Message: "Failed to " + persist.Step,
			Error:   persist.Err.Error(),
		})
	default:
		logging.FromContext(c.Request.Context()).Error("request_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody{Message: "Server error", Error: err.Error()})
	}
}
