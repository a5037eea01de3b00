package db

import (
	"context"

	"buildmarket/models"

	"github.com/jmoiron/sqlx"
)

// Sort keys accepted by GetUserOrders. Anything else is rejected before it
// gets near a query.
var orderSortColumns = map[string]string{
	"createdAt": "created_at",
	"total":     "total",
}

// PlaceOrder converts the cart into an immutable order inside one
// transaction: snapshot lines, persist the order, then mark the cart
// converted and clear it. The ordered_at guard makes a second conversion of
// the same cart fail with ErrCartAlreadyOrdered instead of producing a
// second order.
func (s *Storage) PlaceOrder(ctx context.Context, cartID, userID int, paymentRef string) (*models.Order, error) {
	order := &models.Order{CartID: cartID, UserID: userID, PaymentRef: paymentRef}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var c models.Cart
		err := tx.QueryRowContext(ctx, `
            SELECT id, user_id, ordered_at, created_at
            FROM cart WHERE id=$1 AND user_id=$2 FOR UPDATE`, cartID, userID).
			Scan(&c.ID, &c.UserID, &c.OrderedAt, &c.CreatedAt)
		if err != nil {
			return notFoundOr(err)
		}
		if c.OrderedAt.Valid {
			return ErrCartAlreadyOrdered
		}

		items := []models.CartItem{}
		err = tx.SelectContext(ctx, &items,
			`SELECT * FROM cart_item WHERE cart_id=$1 ORDER BY id ASC`, cartID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		var total int64
		for _, it := range items {
			total += it.UnitPrice * int64(it.Quantity)
		}
		order.Total = total
		order.Status = models.OrderStatusPlaced

		err = tx.QueryRowContext(ctx, `
            INSERT INTO "order" (cart_id, user_id, total, status, payment_ref)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, created_at`,
			cartID, userID, total, order.Status, paymentRef).
			Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return err
		}

		for _, it := range items {
			line := models.OrderLine{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				SellerID:  it.SellerID,
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
				LineTotal: it.UnitPrice * int64(it.Quantity),
			}
			err = tx.QueryRowContext(ctx, `
                INSERT INTO order_line (order_id, product_id, seller_id, unit_price, quantity, line_total)
                VALUES ($1, $2, $3, $4, $5, $6)
                RETURNING id`,
				line.OrderID, line.ProductID, line.SellerID, line.UnitPrice, line.Quantity, line.LineTotal).
				Scan(&line.ID)
			if err != nil {
				return err
			}
			order.Lines = append(order.Lines, line)
		}

		// The order rows above commit together with these two statements, so
		// the cart is never cleared before the snapshot is durable.
		res, err := tx.ExecContext(ctx,
			`UPDATE cart SET ordered_at=NOW() WHERE id=$1 AND ordered_at IS NULL`, cartID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrCartAlreadyOrdered
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM cart_item WHERE cart_id=$1`, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Storage) GetOrder(ctx context.Context, id int) (*models.Order, error) {
	o := &models.Order{}
	err := s.db.GetContext(ctx, o, `SELECT * FROM "order" WHERE id=$1`, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	lines := []models.OrderLine{}
	err = s.db.SelectContext(ctx, &lines,
		`SELECT * FROM order_line WHERE order_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

func (s *Storage) GetUserOrders(ctx context.Context, userID, limit, offset int, sortField, sortOrder string) ([]models.Order, error) {
	column, ok := orderSortColumns[sortField]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}

	query := `SELECT * FROM "order" WHERE user_id=$1 ORDER BY ` + column + ` ` + direction + ` LIMIT $2 OFFSET $3`
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, userID, limit, offset)
	return orders, err
}

// UpdateOrderStatus advances the settlement state machine with a
// compare-and-swap on the current status.
func (s *Storage) UpdateOrderStatus(ctx context.Context, orderID int, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE "order" SET status=$1 WHERE id=$2 AND status=$3`, to, orderID, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (s *Storage) SetOrderPaymentRef(ctx context.Context, orderID int, paymentRef string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE "order" SET payment_ref=$1 WHERE id=$2`, paymentRef, orderID)
	return err
}
