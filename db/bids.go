package db

import (
	"context"
	"database/sql"
	"errors"

	"buildmarket/models"

	"github.com/jmoiron/sqlx"
)

// SubmitBid creates a pending bid against an open project. The parent
// project row is locked so a concurrent acceptance cannot close the project
// between the status check and the insert.
//
// allowRebid controls the duplicate guard: when true only a Pending bid by
// the same seller blocks a new one, so a seller may bid again after
// withdrawing; when false any prior bid on the project blocks.
func (s *Storage) SubmitBid(ctx context.Context, b *models.Bid, allowRebid bool) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM project WHERE id=$1 FOR UPDATE`, b.ProjectID).
			Scan(&status)
		if err != nil {
			return notFoundOr(err)
		}
		if status != models.ProjectStatusOpen {
			return ErrProjectNotOpen
		}

		dupQuery := `SELECT COUNT(1) FROM bid WHERE project_id=$1 AND seller_id=$2 AND status=$3`
		dupArgs := []interface{}{b.ProjectID, b.SellerID, models.BidStatusPending}
		if !allowRebid {
			dupQuery = `SELECT COUNT(1) FROM bid WHERE project_id=$1 AND seller_id=$2`
			dupArgs = dupArgs[:2]
		}
		var count int
		if err := tx.QueryRowContext(ctx, dupQuery, dupArgs...).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateActiveBid
		}

		b.Status = models.BidStatusPending
		return tx.QueryRowContext(ctx, `
            INSERT INTO bid (project_id, seller_id, amount, message, status)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, created_at`,
			b.ProjectID, b.SellerID, b.Amount, b.Message, b.Status).
			Scan(&b.ID, &b.CreatedAt)
	})
}

func (s *Storage) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	b := &models.Bid{}
	query := `SELECT * FROM bid WHERE id=$1`
	err := s.db.GetContext(ctx, b, query, id)
	return b, notFoundOr(err)
}

// GetBidsForProject returns every bid regardless of status, newest first.
// Callers needing only active bids filter on their side.
func (s *Storage) GetBidsForProject(ctx context.Context, projectID int) ([]models.Bid, error) {
	query := `
        SELECT * FROM bid
        WHERE project_id = $1
        ORDER BY created_at DESC`
	bids := []models.Bid{}
	err := s.db.SelectContext(ctx, &bids, query, projectID)
	return bids, err
}

// AcceptBid applies the whole acceptance in one transaction: the target bid
// goes to Accepted at the agreed final amount, every other pending bid on the
// project goes to Rejected, and the project closes. Row locks plus
// affected-row checks guarantee at most one acceptance ever succeeds per
// project, whatever the interleaving.
func (s *Storage) AcceptBid(ctx context.Context, bidID int, finalAmount int64) (*models.Bid, error) {
	bid := &models.Bid{}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
            SELECT id, project_id, seller_id, amount, message, status, created_at
            FROM bid WHERE id=$1 FOR UPDATE`, bidID).
			Scan(&bid.ID, &bid.ProjectID, &bid.SellerID, &bid.Amount, &bid.Message, &bid.Status, &bid.CreatedAt)
		if err != nil {
			return notFoundOr(err)
		}
		if bid.Status != models.BidStatusPending {
			return ErrBidNotPending
		}

		var projectStatus string
		err = tx.QueryRowContext(ctx,
			`SELECT status FROM project WHERE id=$1 FOR UPDATE`, bid.ProjectID).
			Scan(&projectStatus)
		if err != nil {
			return notFoundOr(err)
		}
		if projectStatus != models.ProjectStatusOpen {
			return ErrProjectNotOpen
		}

		res, err := tx.ExecContext(ctx, `
            UPDATE bid SET amount=$1, status=$2 WHERE id=$3 AND status=$4`,
			finalAmount, models.BidStatusAccepted, bidID, models.BidStatusPending)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrBidNotPending
		}

		_, err = tx.ExecContext(ctx, `
            UPDATE bid SET status=$1 WHERE project_id=$2 AND id<>$3 AND status=$4`,
			models.BidStatusRejected, bid.ProjectID, bidID, models.BidStatusPending)
		if err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `
            UPDATE project SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
			models.ProjectStatusClosed, bid.ProjectID, models.ProjectStatusOpen)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrProjectNotOpen
		}

		bid.Amount = finalAmount
		bid.Status = models.BidStatusAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// WithdrawBid lets a seller retract their own pending bid.
func (s *Storage) WithdrawBid(ctx context.Context, bidID, sellerID int) error {
	res, err := s.db.ExecContext(ctx, `
        UPDATE bid SET status=$1 WHERE id=$2 AND seller_id=$3 AND status=$4`,
		models.BidStatusWithdrawn, bidID, sellerID, models.BidStatusPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM bid WHERE id=$1 AND seller_id=$2`, bidID, sellerID).
			Scan(&exists)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrBidNotPending
	}
	return nil
}
