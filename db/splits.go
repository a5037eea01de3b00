package db

import (
	"context"

	"buildmarket/models"

	"github.com/jmoiron/sqlx"
)

// InsertSplitRows persists one settlement row per seller. The unique
// (order_id, seller_id) constraint plus DO NOTHING makes a retried
// persistence after a client-observed timeout a no-op: callers re-fetch with
// GetSplitsForOrder and proceed.
func (s *Storage) InsertSplitRows(ctx context.Context, rows []models.SplitCalculation) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO split_calculation
                    (order_id, seller_id, gross, ratio_bps, commission, net, subaccount_id)
                VALUES ($1, $2, $3, $4, $5, $6, $7)
                ON CONFLICT (order_id, seller_id) DO NOTHING`,
				r.OrderID, r.SellerID, r.Gross, r.RatioBps, r.Commission, r.Net, r.SubaccountID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) GetSplitsForOrder(ctx context.Context, orderID int) ([]models.SplitCalculation, error) {
	query := `SELECT * FROM split_calculation WHERE order_id=$1 ORDER BY id ASC`
	rows := []models.SplitCalculation{}
	err := s.db.SelectContext(ctx, &rows, query, orderID)
	return rows, err
}

func (s *Storage) GetSplit(ctx context.Context, id int) (*models.SplitCalculation, error) {
	r := &models.SplitCalculation{}
	err := s.db.GetContext(ctx, r, `SELECT * FROM split_calculation WHERE id=$1`, id)
	return r, notFoundOr(err)
}

// CheckSplit marks a row reconciled. Monotonic: the conditional update only
// ever flips false -> true, and re-checking an already checked row reports
// alreadyChecked rather than failing.
func (s *Storage) CheckSplit(ctx context.Context, id int) (alreadyChecked bool, err error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE split_calculation SET checked=TRUE WHERE id=$1 AND checked=FALSE`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	var checked bool
	err = s.db.QueryRowContext(ctx,
		`SELECT checked FROM split_calculation WHERE id=$1`, id).Scan(&checked)
	if err != nil {
		return false, notFoundOr(err)
	}
	return checked, nil
}

// Aggregates are computed from the persisted rows only. Carts mutate and
// orders must not, so live state never feeds these sums.

func (s *Storage) TotalPlatformCommission(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(commission), 0) FROM split_calculation`)
	return total, err
}

func (s *Storage) TotalGross(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(gross), 0) FROM split_calculation`)
	return total, err
}
