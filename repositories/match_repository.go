package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/court-scoring/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchCourtInvalid      = errors.New("match court conflict or invalid")
	// ErrMatchStatusConflict возвращается условными апдейтами, когда матч
	// уже не в ожидаемом статусе (повторный submit, двойной start и т.п.).
	ErrMatchStatusConflict = errors.New("match is not in the expected status")
)

// MatchFilter сужает выборку ListByTournament. Нулевое значение — все матчи
// турнира в порядке расписания.
type MatchFilter struct {
	Status     *models.MatchStatus
	CourtID    *int
	Unassigned bool // только матчи без корта (court_id IS NULL)
	// RecentFirst сортирует по completed_at DESC (для ленты последних счетов).
	RecentFirst bool
	Limit       int
}

// CountFilter сужает CountByTournament.
type CountFilter struct {
	Status         *models.MatchStatus
	UnverifiedOnly bool
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	Update(ctx context.Context, id int, match *models.Match) error
	Delete(ctx context.Context, id int) error
	ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error)
	CountByTournament(ctx context.Context, tournamentID int, filter CountFilter) (int, error)
	// ExistsImported проверяет составной ключ импорта, чтобы повторная
	// вставка того же расписания не плодила дубликаты.
	ExistsImported(ctx context.Context, tournamentID int, matchNumber string, courtNumber *int, team1Name string) (bool, error)

	UpdateCourtAssignment(ctx context.Context, exec SQLExecutor, matchID int, courtID, courtNumber *int) error
	// ClaimUnassigned закрепляет свободный матч за кортом. Условие
	// court_id IS NULL гарантирует, что из двух одновременных claim
	// выиграет ровно один.
	ClaimUnassigned(ctx context.Context, exec SQLExecutor, matchID, courtID, courtNumber int) error
	MarkInPlay(ctx context.Context, exec SQLExecutor, matchID, courtID, courtNumber int, startedAt time.Time) error
	CompleteWithScore(ctx context.Context, exec SQLExecutor, matchID, score1, score2 int, notes *string, submittedByCourtID int, completedAt time.Time) error
	MarkVerified(ctx context.Context, exec SQLExecutor, matchID int) error
	SetScoresheetKey(ctx context.Context, exec SQLExecutor, matchID int, key string) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, court_id, court_number, match_number, round_name, category,
	team1_name, team2_name, team1_player1_id, team1_player2_id, team2_player1_id, team2_player2_id,
	score_team1, score_team2, status, scheduled_time, started_at, completed_at, score_submitted_at,
	scoresheet_verified, scoresheet_key, submitted_by_court_id, notes, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO game_matches
			(tournament_id, court_id, court_number, match_number, round_name, category,
			 team1_name, team2_name, team1_player1_id, team1_player2_id, team2_player1_id, team2_player2_id,
			 status, scheduled_time, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.TournamentID,
		match.CourtID,
		match.CourtNumber,
		match.MatchNumber,
		match.RoundName,
		match.Category,
		match.Team1Name,
		match.Team2Name,
		match.Team1Player1ID,
		match.Team1Player2ID,
		match.Team2Player1ID,
		match.Team2Player2ID,
		match.Status,
		match.ScheduledTime,
		match.Notes,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM game_matches WHERE id = $1`

	match, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

// Update изменяет только "паспортные" поля матча. Статус, счёт и привязка к
// корту управляются отдельными методами, чтобы инварианты проверялись в одном месте.
func (r *postgresMatchRepository) Update(ctx context.Context, id int, match *models.Match) error {
	query := `
		UPDATE game_matches
		SET match_number = $1, round_name = $2, category = $3,
		    team1_name = $4, team2_name = $5, scheduled_time = $6, notes = $7
		WHERE id = $8`

	result, err := r.db.ExecContext(ctx, query,
		match.MatchNumber,
		match.RoundName,
		match.Category,
		match.Team1Name,
		match.Team2Name,
		match.ScheduledTime,
		match.Notes,
		id,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM game_matches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM game_matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if filter.Status != nil {
		queryBuilder.WriteString(` AND status = $` + strconv.Itoa(placeholderIndex))
		args = append(args, *filter.Status)
		placeholderIndex++
	}
	if filter.CourtID != nil {
		queryBuilder.WriteString(` AND court_id = $` + strconv.Itoa(placeholderIndex))
		args = append(args, *filter.CourtID)
		placeholderIndex++
	}
	if filter.Unassigned {
		queryBuilder.WriteString(` AND court_id IS NULL`)
	}

	if filter.RecentFirst {
		queryBuilder.WriteString(` ORDER BY completed_at DESC NULLS LAST, id DESC`)
	} else {
		// Истинный порядок — время расписания, затем порядок создания.
		// match_number — только метка (см. модель), по ней не сортируем.
		queryBuilder.WriteString(` ORDER BY scheduled_time NULLS LAST, created_at, id`)
	}

	if filter.Limit > 0 {
		queryBuilder.WriteString(` LIMIT $` + strconv.Itoa(placeholderIndex))
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, scanErr := scanMatchRows(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, match)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) CountByTournament(ctx context.Context, tournamentID int, filter CountFilter) (int, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT COUNT(*) FROM game_matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if filter.Status != nil {
		queryBuilder.WriteString(` AND status = $2`)
		args = append(args, *filter.Status)
	}
	if filter.UnverifiedOnly {
		queryBuilder.WriteString(` AND scoresheet_verified = FALSE`)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, queryBuilder.String(), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) ExistsImported(ctx context.Context, tournamentID int, matchNumber string, courtNumber *int, team1Name string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM game_matches
			WHERE tournament_id = $1 AND match_number = $2
			  AND court_number IS NOT DISTINCT FROM $3 AND team1_name = $4
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, tournamentID, matchNumber, courtNumber, team1Name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check imported match existence: %w", err)
	}
	return exists, nil
}

func (r *postgresMatchRepository) UpdateCourtAssignment(ctx context.Context, exec SQLExecutor, matchID int, courtID, courtNumber *int) error {
	query := `UPDATE game_matches SET court_id = $1, court_number = $2 WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, courtID, courtNumber, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ClaimUnassigned(ctx context.Context, exec SQLExecutor, matchID, courtID, courtNumber int) error {
	query := `
		UPDATE game_matches
		SET court_id = $1, court_number = $2
		WHERE id = $3 AND court_id IS NULL AND status = $4`

	result, err := exec.ExecContext(ctx, query, courtID, courtNumber, matchID, models.MatchStatusScheduled)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) MarkInPlay(ctx context.Context, exec SQLExecutor, matchID, courtID, courtNumber int, startedAt time.Time) error {
	query := `
		UPDATE game_matches
		SET status = $1, court_id = $2, court_number = $3, started_at = $4
		WHERE id = $5 AND status = $6`

	result, err := exec.ExecContext(ctx, query,
		models.MatchStatusInPlay, courtID, courtNumber, startedAt,
		matchID, models.MatchStatusScheduled,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) CompleteWithScore(ctx context.Context, exec SQLExecutor, matchID, score1, score2 int, notes *string, submittedByCourtID int, completedAt time.Time) error {
	query := `
		UPDATE game_matches
		SET score_team1 = $1, score_team2 = $2, status = $3,
		    completed_at = $4, score_submitted_at = $4,
		    submitted_by_court_id = $5, notes = COALESCE($6, notes)
		WHERE id = $7 AND status = $8`

	result, err := exec.ExecContext(ctx, query,
		score1, score2, models.MatchStatusCompleted,
		completedAt, submittedByCourtID, notes,
		matchID, models.MatchStatusInPlay,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) MarkVerified(ctx context.Context, exec SQLExecutor, matchID int) error {
	query := `UPDATE game_matches SET scoresheet_verified = TRUE WHERE id = $1 AND status = $2`
	result, err := exec.ExecContext(ctx, query, matchID, models.MatchStatusCompleted)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) SetScoresheetKey(ctx context.Context, exec SQLExecutor, matchID int, key string) error {
	query := `UPDATE game_matches SET scoresheet_key = $1 WHERE id = $2 AND status = $3`
	result, err := exec.ExecContext(ctx, query, key, matchID, models.MatchStatusCompleted)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatch(row rowScanner) (*models.Match, error) {
	match := &models.Match{}
	err := row.Scan(
		&match.ID,
		&match.TournamentID,
		&match.CourtID,
		&match.CourtNumber,
		&match.MatchNumber,
		&match.RoundName,
		&match.Category,
		&match.Team1Name,
		&match.Team2Name,
		&match.Team1Player1ID,
		&match.Team1Player2ID,
		&match.Team2Player1ID,
		&match.Team2Player2ID,
		&match.ScoreTeam1,
		&match.ScoreTeam2,
		&match.Status,
		&match.ScheduledTime,
		&match.StartedAt,
		&match.CompletedAt,
		&match.ScoreSubmittedAt,
		&match.ScoresheetVerified,
		&match.ScoresheetKey,
		&match.SubmittedByCourtID,
		&match.Notes,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return match, nil
}

func scanMatchRows(rows *sql.Rows) (*models.Match, error) {
	return scanMatch(rows)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23503": foreign_key_violation
		switch pqErr.Constraint {
		case "game_matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "game_matches_court_id_fkey":
			return ErrMatchCourtInvalid
		}
	}
	return err
}
