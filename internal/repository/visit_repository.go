package repository

import (
	"context"
	"fmt"
	"time"

	"geolink/internal/models"
)

type VisitRepository interface {
	OpenPending(ctx context.Context, visit *models.Visit) error
	Resolve(ctx context.Context, visitID string, outcome *models.VisitOutcome) (bool, error)
	GetByID(ctx context.Context, visitID string) (*models.Visit, error)
	ListByLink(ctx context.Context, linkID int64, limit int) ([]models.Visit, error)
	SweepAbandoned(ctx context.Context, olderThan time.Time, limit int) (int64, error)
}

type visitRepository struct {
	db *PostgresDB
}

func NewVisitRepository(db *PostgresDB) VisitRepository {
	return &visitRepository{db: db}
}

// OpenPending вставляет pending-визит одной командой. Все location-поля NULL,
// consented=false, resolved_at=NULL.
func (r *visitRepository) OpenPending(ctx context.Context, visit *models.Visit) error {
	query := `
		INSERT INTO visits (id, link_id, ip_address, user_agent, referer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		visit.ID,
		visit.LinkID,
		visit.IPAddress,
		visit.UserAgent,
		visit.Referer,
		visit.CreatedAt,
	).Scan(&visit.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to open pending visit: %w", err)
	}

	return nil
}

// Resolve выполняет единственный разрешённый переход pending -> terminal.
// Условие resolved_at IS NULL гарантирует, что из конкурирующих вызовов
// зафиксируется ровно один; для незнакомого или уже разрешённого id
// возвращается (false, nil) - no-op, не ошибка.
func (r *visitRepository) Resolve(ctx context.Context, visitID string, outcome *models.VisitOutcome) (bool, error) {
	query := `
		UPDATE visits
		SET consented      = $2,
		    decline_reason = $3,
		    latitude       = $4,
		    longitude      = $5,
		    accuracy       = $6,
		    resolved_at    = NOW()
		WHERE id = $1 AND resolved_at IS NULL
	`

	var reason *string
	if !outcome.Consented && outcome.Reason != "" {
		reason = &outcome.Reason
	}

	result, err := r.db.Pool.Exec(ctx, query,
		visitID,
		outcome.Consented,
		reason,
		outcome.Latitude,
		outcome.Longitude,
		outcome.Accuracy,
	)

	if err != nil {
		return false, fmt.Errorf("failed to resolve visit: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *visitRepository) GetByID(ctx context.Context, visitID string) (*models.Visit, error) {
	query := `
		SELECT id, link_id, ip_address, user_agent, referer,
		       consented, decline_reason, latitude, longitude, accuracy,
		       created_at, resolved_at
		FROM visits
		WHERE id = $1
	`

	visit := &models.Visit{}
	err := r.db.Pool.QueryRow(ctx, query, visitID).Scan(
		&visit.ID,
		&visit.LinkID,
		&visit.IPAddress,
		&visit.UserAgent,
		&visit.Referer,
		&visit.Consented,
		&visit.DeclineReason,
		&visit.Latitude,
		&visit.Longitude,
		&visit.Accuracy,
		&visit.CreatedAt,
		&visit.ResolvedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}

	return visit, nil
}

func (r *visitRepository) ListByLink(ctx context.Context, linkID int64, limit int) ([]models.Visit, error) {
	query := `
		SELECT id, link_id, ip_address, user_agent, referer,
		       consented, decline_reason, latitude, longitude, accuracy,
		       created_at, resolved_at
		FROM visits
		WHERE link_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, linkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []models.Visit
	for rows.Next() {
		var visit models.Visit
		if err := rows.Scan(
			&visit.ID,
			&visit.LinkID,
			&visit.IPAddress,
			&visit.UserAgent,
			&visit.Referer,
			&visit.Consented,
			&visit.DeclineReason,
			&visit.Latitude,
			&visit.Longitude,
			&visit.Accuracy,
			&visit.CreatedAt,
			&visit.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, visit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}

	return visits, nil
}

// SweepAbandoned помечает давно висящие pending-визиты как declined(abandoned)
// тем же условным обновлением, что и Resolve.
func (r *visitRepository) SweepAbandoned(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	query := `
		UPDATE visits
		SET consented      = FALSE,
		    decline_reason = $1,
		    resolved_at    = NOW()
		WHERE id IN (
			SELECT id FROM visits
			WHERE resolved_at IS NULL AND created_at < $2
			ORDER BY created_at
			LIMIT $3
		) AND resolved_at IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, models.DeclineReasonAbandoned, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep abandoned visits: %w", err)
	}

	return result.RowsAffected(), nil
}
