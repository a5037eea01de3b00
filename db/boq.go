package db

import (
	"context"

	"buildmarket/models"

	"github.com/jmoiron/sqlx"
)

// UpsertBOQ stores a generated bill of quantities. Generation is an upsert
// keyed by project: a repeat request replaces the document and its items
// rather than appending a duplicate.
func (s *Storage) UpsertBOQ(ctx context.Context, boq *models.BillOfQuantities, items []models.BOQItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowContext(ctx, `
            INSERT INTO bill_of_quantities
                (project_id, company_name, company_logo, total, pdf_path, generated_at)
            VALUES ($1, $2, $3, $4, $5, NOW())
            ON CONFLICT (project_id) DO UPDATE SET
                company_name = EXCLUDED.company_name,
                company_logo = EXCLUDED.company_logo,
                total        = EXCLUDED.total,
                pdf_path     = EXCLUDED.pdf_path,
                generated_at = NOW()
            RETURNING id, generated_at`,
			boq.ProjectID, boq.CompanyName, boq.CompanyLogo, boq.Total, boq.PDFPath).
			Scan(&boq.ID, &boq.GeneratedAt)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM boq_item WHERE boq_id=$1`, boq.ID); err != nil {
			return err
		}

		for i := range items {
			items[i].BOQID = boq.ID
			err := tx.QueryRowContext(ctx, `
                INSERT INTO boq_item
                    (boq_id, position, description, unit, quantity, unit_price, line_total)
                VALUES ($1, $2, $3, $4, $5, $6, $7)
                RETURNING id`,
				boq.ID, items[i].Position, items[i].Description, items[i].Unit,
				items[i].Quantity, items[i].UnitPrice, items[i].LineTotal).
				Scan(&items[i].ID)
			if err != nil {
				return err
			}
		}
		boq.Items = items
		return nil
	})
}

func (s *Storage) GetBOQ(ctx context.Context, projectID int) (*models.BillOfQuantities, error) {
	boq := &models.BillOfQuantities{}
	err := s.db.GetContext(ctx, boq,
		`SELECT * FROM bill_of_quantities WHERE project_id=$1`, projectID)
	if err != nil {
		return nil, notFoundOr(err)
	}

	items := []models.BOQItem{}
	err = s.db.SelectContext(ctx, &items,
		`SELECT * FROM boq_item WHERE boq_id=$1 ORDER BY position ASC`, boq.ID)
	if err != nil {
		return nil, err
	}
	boq.Items = items
	return boq, nil
}
