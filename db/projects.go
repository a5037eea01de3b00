package db

import (
	"context"

	"buildmarket/models"

	"github.com/jmoiron/sqlx"
)

func (s *Storage) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
        INSERT INTO project (owner_id, name, description, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		p.OwnerID, p.Name, p.Description, p.Status).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (s *Storage) GetProject(ctx context.Context, id int) (*models.Project, error) {
	p := &models.Project{}
	query := `SELECT * FROM project WHERE id=$1`
	err := s.db.GetContext(ctx, p, query, id)
	return p, notFoundOr(err)
}

// PublishProject opens a draft project for bidding. The conditional update
// keeps a concurrent publish or close from being applied twice.
func (s *Storage) PublishProject(ctx context.Context, id, ownerID int) error {
	query := `
        UPDATE project
        SET status=$1, updated_at=NOW()
        WHERE id=$2 AND owner_id=$3 AND status=$4`
	res, err := s.db.ExecContext(ctx, query,
		models.ProjectStatusOpen, id, ownerID, models.ProjectStatusDraft)
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

func (s *Storage) GetOpenProjects(ctx context.Context, limit, offset int) ([]models.Project, error) {
	query := `
        SELECT * FROM project
        WHERE status=$1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	projects := []models.Project{}
	err := s.db.SelectContext(ctx, &projects, query, models.ProjectStatusOpen, limit, offset)
	return projects, err
}

func (s *Storage) GetUserProjects(ctx context.Context, ownerID, limit, offset int) ([]models.Project, error) {
	query := `
        SELECT * FROM project
        WHERE owner_id=$1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	projects := []models.Project{}
	err := s.db.SelectContext(ctx, &projects, query, ownerID, limit, offset)
	return projects, err
}

// AddEstimationItem appends a priced line to the project's chosen estimation,
// creating the estimation on first use and pinning it on the project.
func (s *Storage) AddEstimationItem(ctx context.Context, projectID int, item *models.EstimationItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var estimationID int
		err := tx.QueryRowContext(ctx, `
            INSERT INTO estimation (project_id)
            VALUES ($1)
            ON CONFLICT (project_id) DO UPDATE SET project_id = EXCLUDED.project_id
            RETURNING id`, projectID).Scan(&estimationID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
            UPDATE project SET chosen_estimation_id=$1, updated_at=NOW() WHERE id=$2`,
			estimationID, projectID)
		if err != nil {
			return err
		}

		item.EstimationID = estimationID
		return tx.QueryRowContext(ctx, `
            INSERT INTO estimation_item (estimation_id, description, unit, quantity, unit_price)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id`,
			estimationID, item.Description, item.Unit, item.Quantity, item.UnitPrice).
			Scan(&item.ID)
	})
}

func (s *Storage) GetEstimationItems(ctx context.Context, projectID int) ([]models.EstimationItem, error) {
	query := `
        SELECT ei.* FROM estimation_item ei
        JOIN estimation e ON ei.estimation_id = e.id
        WHERE e.project_id = $1
        ORDER BY ei.id ASC`
	items := []models.EstimationItem{}
	err := s.db.SelectContext(ctx, &items, query, projectID)
	return items, err
}
