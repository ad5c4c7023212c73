package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/repositories"
	"github.com/Dosada05/court-scoring/storage"
)

const managerTokenBytes = 16

type CourtService interface {
	// CreateCourts создаёт count кортов одним махом. replaceExisting
	// удаляет старые корты турнира, делая их токены недействительными.
	CreateCourts(ctx context.Context, tournamentID, count int, replaceExisting bool, managerNames []string) ([]*models.Court, error)
	ListCourts(ctx context.Context, tournamentID int) ([]*models.Court, error)
	// ResolveToken находит единственный корт по токену судьи.
	ResolveToken(ctx context.Context, token string) (*models.Court, error)
	// Board собирает всё, что видит судья корта: текущий матч, очередь,
	// последние результаты и свободные матчи турнира.
	Board(ctx context.Context, court *models.Court) (*models.CourtBoard, error)
}

type courtService struct {
	db             *sql.DB
	courtRepo      repositories.CourtRepository
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
	publicBaseURL  string
}

func NewCourtService(
	db *sql.DB,
	courtRepo repositories.CourtRepository,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
	publicBaseURL string,
) CourtService {
	return &courtService{
		db:             db,
		courtRepo:      courtRepo,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
		publicBaseURL:  publicBaseURL,
	}
}

func (s *courtService) CreateCourts(ctx context.Context, tournamentID, count int, replaceExisting bool, managerNames []string) ([]*models.Court, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrCourtCountInvalid, count)
	}
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if replaceExisting {
		if _, err := s.courtRepo.DeleteByTournament(ctx, tx, tournamentID); err != nil {
			return nil, err
		}
	}

	courts := make([]*models.Court, 0, count)
	for i := 1; i <= count; i++ {
		token, err := generateManagerToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate manager token: %w", err)
		}

		court := &models.Court{
			TournamentID: tournamentID,
			CourtNumber:  i,
			ManagerToken: token,
			Status:       models.CourtStatusAvailable,
		}
		if i-1 < len(managerNames) && managerNames[i-1] != "" {
			name := managerNames[i-1]
			court.ManagerName = &name
		}

		if err := s.courtRepo.Create(ctx, tx, court); err != nil {
			if errors.Is(err, repositories.ErrCourtNumberConflict) {
				return nil, fmt.Errorf("%w: court %d", ErrCourtNumberConflict, i)
			}
			if errors.Is(err, repositories.ErrCourtTokenConflict) {
				return nil, ErrCourtTokenConflict
			}
			return nil, err
		}
		courts = append(courts, court)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit courts transaction: %w", err)
	}

	for _, court := range courts {
		populateCourtManagerURL(court, s.publicBaseURL)
	}
	return courts, nil
}

func (s *courtService) ListCourts(ctx context.Context, tournamentID int) ([]*models.Court, error) {
	courts, err := s.courtRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, court := range courts {
		populateCourtManagerURL(court, s.publicBaseURL)
	}
	if courts == nil {
		return []*models.Court{}, nil
	}
	return courts, nil
}

func (s *courtService) ResolveToken(ctx context.Context, token string) (*models.Court, error) {
	if token == "" {
		return nil, ErrCourtNotFound
	}
	court, err := s.courtRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrCourtNotFound) {
			return nil, ErrCourtNotFound
		}
		return nil, err
	}
	return court, nil
}

func (s *courtService) Board(ctx context.Context, court *models.Court) (*models.CourtBoard, error) {
	inPlay := models.MatchStatusInPlay
	scheduled := models.MatchStatusScheduled
	completed := models.MatchStatusCompleted

	current, err := s.matchRepo.ListByTournament(ctx, court.TournamentID, repositories.MatchFilter{
		Status: &inPlay, CourtID: &court.ID, Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load current match for court %d: %w", court.ID, err)
	}

	scheduledMatches, err := s.matchRepo.ListByTournament(ctx, court.TournamentID, repositories.MatchFilter{
		Status: &scheduled, CourtID: &court.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduled matches for court %d: %w", court.ID, err)
	}

	completedMatches, err := s.matchRepo.ListByTournament(ctx, court.TournamentID, repositories.MatchFilter{
		Status: &completed, CourtID: &court.ID, RecentFirst: true, Limit: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load completed matches for court %d: %w", court.ID, err)
	}
	populateScoresheetURLs(completedMatches, s.uploader)

	unassigned, err := s.matchRepo.ListByTournament(ctx, court.TournamentID, repositories.MatchFilter{
		Status: &scheduled, Unassigned: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load unassigned matches for tournament %d: %w", court.TournamentID, err)
	}

	board := &models.CourtBoard{
		Court:             court,
		ScheduledMatches:  emptyIfNil(scheduledMatches),
		CompletedMatches:  emptyIfNil(completedMatches),
		UnassignedMatches: emptyIfNil(unassigned),
	}
	if len(current) > 0 {
		board.CurrentMatch = current[0]
	}
	return board, nil
}

func emptyIfNil(matches []*models.Match) []*models.Match {
	if matches == nil {
		return []*models.Match{}
	}
	return matches
}

// generateManagerToken — url-safe случайный токен, аналог
// secrets.token_urlsafe(16): 16 байт энтропии, base64 без паддинга.
func generateManagerToken() (string, error) {
	buf := make([]byte, managerTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
