package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/court-scoring/models"
	"github.com/lib/pq"
)

var (
	ErrCourtNotFound          = errors.New("court not found")
	ErrCourtTournamentInvalid = errors.New("court tournament conflict or invalid")
	ErrCourtNumberConflict    = errors.New("court number already exists for this tournament")
	ErrCourtTokenConflict     = errors.New("court manager token already exists")
	// ErrCourtStatusConflict возвращается условным UpdateStatus, когда корт
	// уже не в ожидаемом статусе (например, два судьи стартуют матчи одновременно).
	ErrCourtStatusConflict = errors.New("court is not in the expected status")
)

type CourtRepository interface {
	Create(ctx context.Context, exec SQLExecutor, court *models.Court) error
	GetByID(ctx context.Context, id int) (*models.Court, error)
	GetByToken(ctx context.Context, token string) (*models.Court, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Court, error)
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	// UpdateStatus меняет статус корта только если текущий статус равен from.
	// Ноль затронутых строк означает проигранную гонку, а не отсутствие корта.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.CourtStatus) error
}

type postgresCourtRepository struct {
	db *sql.DB
}

func NewPostgresCourtRepository(db *sql.DB) CourtRepository {
	return &postgresCourtRepository{db: db}
}

const courtColumns = `id, tournament_id, court_number, name, manager_token, manager_name, status, created_at`

func (r *postgresCourtRepository) Create(ctx context.Context, exec SQLExecutor, court *models.Court) error {
	query := `
		INSERT INTO courts (tournament_id, court_number, name, manager_token, manager_name, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		court.TournamentID,
		court.CourtNumber,
		court.Name,
		court.ManagerToken,
		court.ManagerName,
		court.Status,
	).Scan(&court.ID, &court.CreatedAt)

	return r.handleCourtError(err)
}

func (r *postgresCourtRepository) GetByID(ctx context.Context, id int) (*models.Court, error) {
	query := `SELECT ` + courtColumns + ` FROM courts WHERE id = $1`
	return r.scanCourt(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresCourtRepository) GetByToken(ctx context.Context, token string) (*models.Court, error) {
	query := `SELECT ` + courtColumns + ` FROM courts WHERE manager_token = $1`
	return r.scanCourt(r.db.QueryRowContext(ctx, query, token))
}

func (r *postgresCourtRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Court, error) {
	query := `SELECT ` + courtColumns + ` FROM courts WHERE tournament_id = $1 ORDER BY court_number`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list courts for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var courts []*models.Court
	for rows.Next() {
		var court models.Court
		if scanErr := rows.Scan(
			&court.ID,
			&court.TournamentID,
			&court.CourtNumber,
			&court.Name,
			&court.ManagerToken,
			&court.ManagerName,
			&court.Status,
			&court.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan court row: %w", scanErr)
		}
		courts = append(courts, &court)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during court rows iteration: %w", err)
	}
	return courts, nil
}

func (r *postgresCourtRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	query := `DELETE FROM courts WHERE tournament_id = $1`
	result, err := exec.ExecContext(ctx, query, tournamentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete courts for tournament %d: %w", tournamentID, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return int(deleted), nil
}

func (r *postgresCourtRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.CourtStatus) error {
	query := `UPDATE courts SET status = $1 WHERE id = $2 AND status = $3`
	result, err := exec.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return r.handleCourtError(err)
	}
	return checkAffectedRows(result, ErrCourtStatusConflict)
}

func (r *postgresCourtRepository) scanCourt(row *sql.Row) (*models.Court, error) {
	court := &models.Court{}
	err := row.Scan(
		&court.ID,
		&court.TournamentID,
		&court.CourtNumber,
		&court.Name,
		&court.ManagerToken,
		&court.ManagerName,
		&court.Status,
		&court.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCourtNotFound
		}
		return nil, fmt.Errorf("failed to scan court: %w", err)
	}
	return court, nil
}

func (r *postgresCourtRepository) handleCourtError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23503": foreign_key_violation, "23505": unique_violation
		switch pqErr.Constraint {
		case "courts_tournament_id_fkey":
			return ErrCourtTournamentInvalid
		case "courts_tournament_number_key":
			return ErrCourtNumberConflict
		case "courts_manager_token_key":
			return ErrCourtTokenConflict
		}
	}
	return err
}
