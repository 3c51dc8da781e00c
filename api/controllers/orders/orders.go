package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/counterpos-backend/api/middleware"
	"github.com/angelmondragon/counterpos-backend/api/responses"
	"github.com/angelmondragon/counterpos-backend/api/validators"
	internalorders "github.com/angelmondragon/counterpos-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
)

type cartLineRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
}

type placeOrderRequest struct {
	Lines      []cartLineRequest `json:"lines" validate:"dive"`
	AmountPaid decimal.Decimal   `json:"amount_paid" validate:"gte=0"`
}

// Place records a checkout and consumes the recipe ingredients of every sold line.
func Place(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.PlaceOrderInput{
			Lines:      make([]internalorders.CartLine, 0, len(req.Lines)),
			AmountPaid: req.AmountPaid,
			UserID:     middleware.UserIDFromContext(r.Context()),
		}
		for _, line := range req.Lines {
			input.Lines = append(input.Lines, internalorders.CartLine{
				ProductID: uuid.MustParse(line.ProductID),
				Quantity:  line.Quantity,
				Price:     line.Price,
			})
		}

		summary, err := svc.PlaceOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, summary)
	}
}

// Detail returns one order with its lines, looked up by display id.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		summary, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Sales aggregates sold volume per product and price. from/to accept dates or RFC3339.
func Sales(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryTime(r, "from", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.GetSalesData(r.Context(), internalorders.SalesWindow{From: from, To: to})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// Purge hard-deletes an order. Stock is not restored.
func Purge(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		if err := svc.PurgeOrder(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// UnlinkProduct detaches historical order lines from a product ahead of its removal.
func UnlinkProduct(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		n, err := svc.PurgeProductReferences(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"unlinked_items": n})
	}
}
