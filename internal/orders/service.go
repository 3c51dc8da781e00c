// Package orders turns a submitted cart into a persisted sale and the ingredient
// depletion its recipes imply, as one unit of work.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/counterpos-backend/internal/inventory"
	"github.com/angelmondragon/counterpos-backend/internal/signals"
	"github.com/angelmondragon/counterpos-backend/internal/storesync"
	"github.com/angelmondragon/counterpos-backend/pkg/config"
	"github.com/angelmondragon/counterpos-backend/pkg/db/models"
	"github.com/angelmondragon/counterpos-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
	"github.com/angelmondragon/counterpos-backend/pkg/logger"
	"github.com/angelmondragon/counterpos-backend/pkg/metrics"
	"github.com/angelmondragon/counterpos-backend/pkg/units"
)

const priceScale = 2

// Service defines the order operations exposed to the HTTP layer.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderSummary, error)
	GetOrder(ctx context.Context, id string) (*OrderSummary, error)
	GetSalesData(ctx context.Context, window SalesWindow) ([]SalesRow, error)
	PurgeOrder(ctx context.Context, id string) error
	PurgeProductReferences(ctx context.Context, productID uuid.UUID) (int64, error)
}

type ServiceParams struct {
	Repository   Repository
	Recipes      RecipeSource
	Stock        StockLedger
	Dispatcher   *storesync.Dispatcher
	Signals      signals.Notifier
	Metrics      *metrics.OrderMetrics
	Logger       *logger.Logger
	Config       config.OrdersConfig
	TerminalID   string
	PurgeEnabled bool
	Now          func() time.Time
}

type service struct {
	repo         Repository
	recipes      RecipeSource
	stock        StockLedger
	dispatcher   *storesync.Dispatcher
	signals      signals.Notifier
	metrics      *metrics.OrderMetrics
	logg         *logger.Logger
	cfg          config.OrdersConfig
	terminalID   string
	purgeEnabled bool
	now          func() time.Time
}

// NewService builds the order engine with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Recipes == nil {
		return nil, fmt.Errorf("recipe source required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("sync dispatcher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(params.Config.IDPrefix) == "" || strings.TrimSpace(params.Config.OfflineIDPrefix) == "" {
		return nil, fmt.Errorf("order id prefixes required")
	}
	if strings.TrimSpace(params.TerminalID) == "" {
		return nil, fmt.Errorf("terminal id required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         params.Repository,
		recipes:      params.Recipes,
		stock:        params.Stock,
		dispatcher:   params.Dispatcher,
		signals:      params.Signals,
		metrics:      params.Metrics,
		logg:         params.Logger,
		cfg:          params.Config,
		terminalID:   params.TerminalID,
		purgeEnabled: params.PurgeEnabled,
		now:          now,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderSummary, error) {
	start := time.Now()
	if input.UserID != "" {
		ctx = s.logg.WithUserID(ctx, input.UserID)
	}

	total, err := validateOrder(input)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	summary, res, err := storesync.Run(ctx, s.dispatcher, KindInsert,
		s.placeOp(input, total, false),
		s.placeOp(input, total, true),
	)
	if err != nil {
		err = mapPlaceError(err)
		s.recordFailure(ctx, err)
		return nil, err
	}

	s.metrics.ObservePlaced(res.Store, time.Since(start))
	ctx = s.logg.WithOrderID(ctx, summary.Order.ID)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"total":    summary.Order.Total.String(),
		"lines":    len(summary.Items),
		"store":    res.Store,
		"fallback": res.Fallback,
	}), "order.placed")
	signals.Emit(ctx, s.logg, s.signals, signals.ViewInventory, signals.ViewLowStock, signals.ViewSales)
	return summary, nil
}

// placeOp is the order unit of work. offline selects the terminal-scoped id range so ids
// allocated in the cache never collide with the remote sequence.
func (s *service) placeOp(input PlaceOrderInput, total decimal.Decimal, offline bool) func(context.Context, *gorm.DB) (*OrderSummary, []storesync.Write, error) {
	return func(ctx context.Context, tx *gorm.DB) (*OrderSummary, []storesync.Write, error) {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()

		orderID, err := s.allocateID(ctx, repo, now, offline)
		if err != nil {
			return nil, nil, fmt.Errorf("allocate order id: %w", err)
		}

		productIDs := distinctProducts(input.Lines)
		products, err := repo.FindProducts(ctx, productIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("load products: %w", err)
		}
		if missing := missingProducts(productIDs, products); len(missing) > 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_ids": missing})
		}

		order := models.Order{
			ID:         orderID,
			Total:      total,
			AmountPaid: input.AmountPaid,
			Change:     input.AmountPaid.Sub(total),
			UserID:     input.UserID,
			CreatedAt:  now,
		}
		if err := repo.CreateOrder(ctx, &order); err != nil {
			return nil, nil, fmt.Errorf("insert order: %w", err)
		}

		items := make([]models.OrderItem, 0, len(input.Lines))
		for _, line := range input.Lines {
			productID := line.ProductID
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   orderID,
				ProductID: &productID,
				Quantity:  line.Quantity,
				Price:     line.Price,
			})
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return nil, nil, fmt.Errorf("insert order items: %w", err)
		}

		recipeLines, err := s.recipes.LinesForTx(ctx, tx, productIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve recipes: %w", err)
		}

		writes := []storesync.Write{
			storesync.NewWrite("orders", enums.SyncInsert, KindInsert, InsertPayload{Order: order, Items: items}),
		}
		for _, c := range aggregateConsumption(input.Lines, recipeLines) {
			delta := c.Amount.Neg()
			if err := s.stock.AdjustTx(ctx, tx, c.InventoryID, delta); err != nil {
				return nil, nil, fmt.Errorf("adjust stock %s: %w", c.InventoryID, err)
			}
			writes = append(writes, inventory.AdjustWrite(c.InventoryID, delta))
		}

		return buildSummary(order, items, products), writes, nil
	}
}

func (s *service) allocateID(ctx context.Context, repo Repository, now time.Time, offline bool) (string, error) {
	prefix := s.cfg.IDPrefix
	if offline {
		prefix = s.cfg.OfflineIDPrefix + "-" + s.terminalID
	}
	seq, err := repo.NextSequence(ctx, prefix, now.Year())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, now.Year(), seq), nil
}

func (s *service) GetOrder(ctx context.Context, id string) (*OrderSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	summary, err := storesync.Query(ctx, s.dispatcher, "orders.get", func(ctx context.Context, tx *gorm.DB) (*OrderSummary, error) {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		var ids []uuid.UUID
		for _, item := range order.Items {
			if item.ProductID != nil {
				ids = append(ids, *item.ProductID)
			}
		}
		products, err := repo.FindProducts(ctx, ids)
		if err != nil {
			return nil, err
		}
		items := order.Items
		order.Items = nil
		return buildSummary(*order, items, products), nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return summary, nil
}

func (s *service) GetSalesData(ctx context.Context, window SalesWindow) ([]SalesRow, error) {
	if window.From != nil && window.To != nil && window.To.Before(*window.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	rows, err := storesync.Query(ctx, s.dispatcher, "orders.sales", func(ctx context.Context, tx *gorm.DB) ([]SalesRow, error) {
		return s.repo.WithTx(tx).SalesData(ctx, window)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales data")
	}
	for i := range rows {
		rows[i].TotalSales = rows[i].TotalSales.Round(priceScale)
	}
	return rows, nil
}

// PurgeOrder deletes an order and its items without restoring stock.
func (s *service) PurgeOrder(ctx context.Context, id string) error {
	if !s.purgeEnabled {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order purge is disabled")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	op := func(ctx context.Context, tx *gorm.DB) ([]storesync.Write, error) {
		deleted, err := s.repo.WithTx(tx).DeleteOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if deleted == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		return []storesync.Write{storesync.NewWrite("orders", enums.SyncDelete, KindPurge, PurgePayload{OrderID: id})}, nil
	}
	if _, err := s.dispatcher.Execute(ctx, storesync.Call{Name: KindPurge, Remote: op}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge order")
	}
	s.logg.Warn(s.logg.WithOrderID(ctx, id), "order.purged")
	signals.Emit(ctx, s.logg, s.signals, signals.ViewSales)
	return nil
}

// PurgeProductReferences detaches sold lines from a product and reports how many changed.
func (s *service) PurgeProductReferences(ctx context.Context, productID uuid.UUID) (int64, error) {
	if productID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	var unlinked int64
	op := func(ctx context.Context, tx *gorm.DB) ([]storesync.Write, error) {
		n, err := s.repo.WithTx(tx).UnlinkProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		unlinked = n
		if n == 0 {
			return nil, nil
		}
		return []storesync.Write{storesync.NewWrite("order_items", enums.SyncUpdate, KindUnlinkProduct, UnlinkPayload{ProductID: productID})}, nil
	}
	if _, err := s.dispatcher.Execute(ctx, storesync.Call{Name: KindUnlinkProduct, Remote: op}); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlink product from orders")
	}
	if unlinked > 0 {
		signals.Emit(ctx, s.logg, s.signals, signals.ViewSales)
	}
	return unlinked, nil
}

func (s *service) recordFailure(ctx context.Context, err error) {
	code := pkgerrors.CodeInternal
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	s.metrics.IncFailed(string(code))
	if code == pkgerrors.CodeTransactionFailed {
		s.logg.Error(ctx, "order.place_failed", err)
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error_code", string(code)), "order.rejected")
}

// validateOrder checks the cart before any write and returns the order total.
func validateOrder(input PlaceOrderInput) (decimal.Decimal, error) {
	if len(input.Lines) == 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one line")
	}
	total := decimal.Zero
	for i, line := range input.Lines {
		details := map[string]any{"line": i}
		if line.ProductID == uuid.Nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product id is required").WithDetails(details)
		}
		if line.Quantity <= 0 {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").WithDetails(details)
		}
		if line.Price.IsNegative() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative").WithDetails(details)
		}
		if !line.Price.Equal(line.Price.Round(priceScale)) {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price must have at most two decimals").WithDetails(details)
		}
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if input.AmountPaid.LessThan(total) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientPayment, "amount paid is less than the order total").
			WithDetails(map[string]any{
				"total":       total.StringFixed(priceScale),
				"amount_paid": input.AmountPaid.StringFixed(priceScale),
			})
	}
	return total, nil
}

// aggregateConsumption sums quantity_used × quantity per ingredient and returns the deltas
// in ascending ingredient id order, so concurrent orders lock rows in the same order.
func aggregateConsumption(lines []CartLine, recipe []models.RecipeLine) []consumption {
	byProduct := make(map[uuid.UUID][]models.RecipeLine, len(recipe))
	for _, line := range recipe {
		byProduct[line.ProductID] = append(byProduct[line.ProductID], line)
	}

	totals := make(map[uuid.UUID]decimal.Decimal)
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		for _, r := range byProduct[line.ProductID] {
			totals[r.InventoryID] = totals[r.InventoryID].Add(r.QuantityUsed.Mul(qty))
		}
	}

	out := make([]consumption, 0, len(totals))
	for id, amount := range totals {
		if amount.IsZero() {
			continue
		}
		out = append(out, consumption{InventoryID: id, Amount: units.Normalize(amount)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].InventoryID.String() < out[j].InventoryID.String()
	})
	return out
}

func distinctProducts(lines []CartLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

func missingProducts(ids []uuid.UUID, products []models.Product) []string {
	found := make(map[uuid.UUID]struct{}, len(products))
	for _, p := range products {
		found[p.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	return missing
}

func buildSummary(order models.Order, items []models.OrderItem, products []models.Product) *OrderSummary {
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	summary := &OrderSummary{
		Order:      order,
		Items:      make([]SummaryItem, 0, len(items)),
		AmountPaid: order.AmountPaid,
		Change:     order.Change,
	}
	for _, item := range items {
		line := SummaryItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			LineTotal: item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		if item.ProductID != nil {
			if p, ok := byID[*item.ProductID]; ok {
				line.ProductName = p.Name
				line.Size = p.Size
				line.ImageURL = p.ImageURL
			}
		}
		summary.Items = append(summary.Items, line)
	}
	return summary
}

// mapPlaceError keeps typed business errors and hides storage failures behind a
// retryable TransactionFailed.
func mapPlaceError(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, "order could not be completed")
}
