// Package settlement drives a placed order through payment initiation,
// split-row persistence and reconciliation.
//
// Order state machine:
//
//	Placed -> PaymentInitiated -> SplitsRecorded -> Reconciling -> Settled
//
// with Failed reachable from Placed and PaymentInitiated. Every step is
// idempotent: re-running InitiateSettlement on the same order re-uses the
// cached gateway session and never duplicates split rows.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"buildmarket/db"
	"buildmarket/internal/config"
	"buildmarket/internal/money"
	"buildmarket/internal/payment"
	"buildmarket/models"
)

var (
	// ErrSplitMismatch means the computed splits do not add up to the order
	// total. This is an internal invariant violation: the operation aborts
	// before any split row is written.
	ErrSplitMismatch = errors.New("settlement: split sums do not reconcile with order total")

	// ErrOrderNotSettleable means the order is in a state the coordinator
	// cannot advance from.
	ErrOrderNotSettleable = errors.New("settlement: order cannot be settled from its current state")
)

// Store is the slice of storage the coordinator needs.
type Store interface {
	GetOrder(ctx context.Context, id int) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int, from, to string) error
	SetOrderPaymentRef(ctx context.Context, orderID int, paymentRef string) error
	GetSellerSubaccounts(ctx context.Context, sellerIDs []int) (map[int]string, error)
	InsertSplitRows(ctx context.Context, rows []models.SplitCalculation) error
	GetSplitsForOrder(ctx context.Context, orderID int) ([]models.SplitCalculation, error)
	GetSplit(ctx context.Context, id int) (*models.SplitCalculation, error)
	CheckSplit(ctx context.Context, id int) (bool, error)
	TotalPlatformCommission(ctx context.Context) (int64, error)
	TotalGross(ctx context.Context) (int64, error)
}

// Cache remembers gateway sessions per idempotency key so a retried
// initiation after a client-observed timeout returns the original session
// instead of charging twice.
type Cache interface {
	GetSession(ctx context.Context, key string) (*payment.Session, error)
	SetSession(ctx context.Context, key string, s *payment.Session) error
}

type Coordinator struct {
	store       Store
	gateway     payment.Gateway
	cache       Cache
	rateBps     int64
	keyStrategy string
	currency    string
	logger      *log.Logger
}

func NewCoordinator(store Store, gateway payment.Gateway, cache Cache, cfg *config.Config, logger *log.Logger) *Coordinator {
	return &Coordinator{
		store:       store,
		gateway:     gateway,
		cache:       cache,
		rateBps:     cfg.PlatformCommissionBps,
		keyStrategy: cfg.IdempotencyKeyStrategy,
		currency:    "USD",
		logger:      logger,
	}
}

// Result is what a settlement initiation returns to the caller.
type Result struct {
	Order      *models.Order             `json:"order"`
	PaymentURL string                    `json:"paymentUrl"`
	Splits     []models.SplitCalculation `json:"splits"`
}

// InitiateSettlement runs the whole pipeline for one order. Safe to call
// again after any failure: the gateway call is keyed on the order, split
// persistence is guarded by the (order_id, seller_id) constraint, and status
// transitions are compare-and-swap.
func (c *Coordinator) InitiateSettlement(ctx context.Context, orderID int) (*Result, error) {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	key := c.idempotencyKey(order)

	switch order.Status {
	case models.OrderStatusSplitsRecorded, models.OrderStatusReconciling, models.OrderStatusSettled:
		// Already past persistence; replay the recorded outcome.
		return c.replay(ctx, order, key)
	case models.OrderStatusPlaced, models.OrderStatusFailed, models.OrderStatusPaymentInitiated:
	default:
		return nil, ErrOrderNotSettleable
	}

	session, err := c.cache.GetSession(ctx, key)
	if err != nil {
		c.logger.Printf("settlement cache lookup failed for order %d: %v", orderID, err)
	}
	if session == nil {
		session, err = c.gateway.InitiateSplitPayment(ctx, payment.InitiateRequest{
			OrderRef:       fmt.Sprintf("order-%d", order.ID),
			Amount:         order.Total,
			Currency:       c.currency,
			IdempotencyKey: key,
		})
		if err != nil {
			// Order stays where it was; the caller may retry.
			return nil, err
		}
		if err := c.cache.SetSession(ctx, key, session); err != nil {
			c.logger.Printf("settlement cache store failed for order %d: %v", orderID, err)
		}
	}

	if order.Status != models.OrderStatusPaymentInitiated {
		err = c.store.UpdateOrderStatus(ctx, order.ID, order.Status, models.OrderStatusPaymentInitiated)
		if err != nil && !errors.Is(err, db.ErrStaleStatus) {
			return nil, err
		}
		order.Status = models.OrderStatusPaymentInitiated
	}
	if session.TxRef != "" && session.TxRef != order.PaymentRef {
		if err := c.store.SetOrderPaymentRef(ctx, order.ID, session.TxRef); err != nil {
			return nil, err
		}
		order.PaymentRef = session.TxRef
	}

	rows, err := c.recordSplits(ctx, order)
	if err != nil {
		return nil, err
	}

	err = c.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaymentInitiated, models.OrderStatusSplitsRecorded)
	if err != nil && !errors.Is(err, db.ErrStaleStatus) {
		return nil, err
	}
	order.Status = models.OrderStatusSplitsRecorded

	return &Result{Order: order, PaymentURL: session.PaymentURL, Splits: rows}, nil
}

func (c *Coordinator) recordSplits(ctx context.Context, order *models.Order) ([]models.SplitCalculation, error) {
	lines := make([]money.Line, 0, len(order.Lines))
	sellerIDs := make([]int, 0, len(order.Lines))
	seen := map[int]bool{}
	for _, l := range order.Lines {
		lines = append(lines, money.Line{SellerID: l.SellerID, LineTotal: l.LineTotal})
		if !seen[l.SellerID] {
			seen[l.SellerID] = true
			sellerIDs = append(sellerIDs, l.SellerID)
		}
	}

	splits, err := money.ComputeSplits(lines, c.rateBps)
	if err != nil {
		return nil, err
	}
	if !money.Conserves(splits, order.Total) {
		// Must never happen with integer arithmetic; abort before any row
		// is written and park the order for operator attention.
		c.logger.Printf("INVARIANT VIOLATION: splits for order %d do not sum to total %d", order.ID, order.Total)
		if err := c.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaymentInitiated, models.OrderStatusFailed); err != nil && !errors.Is(err, db.ErrStaleStatus) {
			c.logger.Printf("failed to mark order %d failed: %v", order.ID, err)
		}
		return nil, ErrSplitMismatch
	}

	subaccounts, err := c.store.GetSellerSubaccounts(ctx, sellerIDs)
	if err != nil {
		return nil, err
	}

	rows := make([]models.SplitCalculation, 0, len(splits))
	for _, s := range splits {
		rows = append(rows, models.SplitCalculation{
			OrderID:      order.ID,
			SellerID:     s.SellerID,
			Gross:        s.Gross,
			RatioBps:     c.rateBps,
			Commission:   s.Commission,
			Net:          s.Net,
			SubaccountID: subaccounts[s.SellerID],
		})
	}
	if err := c.store.InsertSplitRows(ctx, rows); err != nil {
		return nil, err
	}
	// Re-fetch: a concurrent initiation may have won the insert race, and
	// the persisted rows are the authoritative ones either way.
	return c.store.GetSplitsForOrder(ctx, order.ID)
}

func (c *Coordinator) replay(ctx context.Context, order *models.Order, key string) (*Result, error) {
	rows, err := c.store.GetSplitsForOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	res := &Result{Order: order, Splits: rows}
	if session, err := c.cache.GetSession(ctx, key); err == nil && session != nil {
		res.PaymentURL = session.PaymentURL
	}
	return res, nil
}

// Reconcile marks one split row checked. Monotonic and independent per row:
// checking seller A's row never touches seller B's. When the last row of an
// order is checked the order advances to Settled.
func (c *Coordinator) Reconcile(ctx context.Context, splitID int) (*models.SplitCalculation, error) {
	already, err := c.store.CheckSplit(ctx, splitID)
	if err != nil {
		return nil, err
	}
	split, err := c.store.GetSplit(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if already {
		return split, nil
	}

	// First check on this order moves it into Reconciling; the stale-status
	// result just means another row got there first.
	err = c.store.UpdateOrderStatus(ctx, split.OrderID, models.OrderStatusSplitsRecorded, models.OrderStatusReconciling)
	if err != nil && !errors.Is(err, db.ErrStaleStatus) {
		return nil, err
	}

	rows, err := c.store.GetSplitsForOrder(ctx, split.OrderID)
	if err != nil {
		return nil, err
	}
	allChecked := true
	for _, r := range rows {
		if !r.Checked {
			allChecked = false
			break
		}
	}
	if allChecked {
		err = c.store.UpdateOrderStatus(ctx, split.OrderID, models.OrderStatusReconciling, models.OrderStatusSettled)
		if err != nil && !errors.Is(err, db.ErrStaleStatus) {
			return nil, err
		}
	}
	return split, nil
}

// Totals are computed from persisted split rows only.
func (c *Coordinator) Totals(ctx context.Context) (commission, gross int64, err error) {
	commission, err = c.store.TotalPlatformCommission(ctx)
	if err != nil {
		return 0, 0, err
	}
	gross, err = c.store.TotalGross(ctx)
	if err != nil {
		return 0, 0, err
	}
	return commission, gross, nil
}

// idempotencyKey derives the external dedupe key for an order. Orders are
// immutable, so both strategies are stable across retries; order-seller
// additionally pins the seller composition into the key.
func (c *Coordinator) idempotencyKey(order *models.Order) string {
	if c.keyStrategy == config.KeyStrategyOrderSeller {
		ids := make([]int, 0, len(order.Lines))
		seen := map[int]bool{}
		for _, l := range order.Lines {
			if !seen[l.SellerID] {
				seen[l.SellerID] = true
				ids = append(ids, l.SellerID)
			}
		}
		sort.Ints(ids)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprintf("s%d", id)
		}
		return fmt.Sprintf("settle:%d:%s", order.ID, strings.Join(parts, "-"))
	}
	return fmt.Sprintf("settle:%d", order.ID)
}
