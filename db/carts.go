package db

import (
	"context"

	"buildmarket/models"

	"github.com/jmoiron/sqlx"
)

func (s *Storage) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	p := &models.Product{}
	query := `SELECT * FROM product WHERE id=$1`
	err := s.db.GetContext(ctx, p, query, id)
	return p, notFoundOr(err)
}

func (s *Storage) GetProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	query := `SELECT * FROM product ORDER BY name ASC LIMIT $1 OFFSET $2`
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, limit, offset)
	return products, err
}

// GetOrCreateActiveCart returns the user's cart that has not yet been
// converted to an order, creating one if needed. The partial unique index on
// (user_id) WHERE ordered_at IS NULL keeps concurrent callers from ending up
// with two active carts.
func (s *Storage) GetOrCreateActiveCart(ctx context.Context, userID int) (*models.Cart, error) {
	c := &models.Cart{}
	query := `SELECT * FROM cart WHERE user_id=$1 AND ordered_at IS NULL`
	err := s.db.GetContext(ctx, c, query, userID)
	if err == nil {
		return c, nil
	}
	if notFoundOr(err) != ErrNotFound {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
        INSERT INTO cart (user_id)
        VALUES ($1)
        ON CONFLICT (user_id) WHERE ordered_at IS NULL DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING id, user_id, ordered_at, created_at`, userID).
		Scan(&c.ID, &c.UserID, &c.OrderedAt, &c.CreatedAt)
	return c, err
}

func (s *Storage) GetCartItems(ctx context.Context, cartID int) ([]models.CartItem, error) {
	query := `SELECT * FROM cart_item WHERE cart_id=$1 ORDER BY id ASC`
	items := []models.CartItem{}
	err := s.db.SelectContext(ctx, &items, query, cartID)
	return items, err
}

// AddCartItem adds a product to the cart with the price and seller
// snapshotted by the caller. Adding the same product again accumulates
// quantity instead of duplicating the line.
func (s *Storage) AddCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
        INSERT INTO cart_item (cart_id, product_id, seller_id, unit_price, quantity)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (cart_id, product_id)
        DO UPDATE SET quantity = cart_item.quantity + EXCLUDED.quantity
        RETURNING id, quantity`
	return s.db.QueryRowContext(ctx, query,
		item.CartID, item.ProductID, item.SellerID, item.UnitPrice, item.Quantity).
		Scan(&item.ID, &item.Quantity)
}

func (s *Storage) UpdateCartItemQuantity(ctx context.Context, cartID, itemID, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cart_item SET quantity=$1 WHERE id=$2 AND cart_id=$3`,
		quantity, itemID, cartID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveCartItem deletes a single line. Removing the last line leaves an
// empty cart behind, it never deletes the cart itself.
func (s *Storage) RemoveCartItem(ctx context.Context, cartID, itemID int) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_item WHERE id=$1 AND cart_id=$2`, itemID, cartID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) GetSellerSubaccounts(ctx context.Context, sellerIDs []int) (map[int]string, error) {
	if len(sellerIDs) == 0 {
		return map[int]string{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, subaccount_id FROM seller WHERE id IN (?)`, sellerIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]string, len(sellerIDs))
	for rows.Next() {
		var id int
		var sub string
		if err := rows.Scan(&id, &sub); err != nil {
			return nil, err
		}
		out[id] = sub
	}
	return out, rows.Err()
}
