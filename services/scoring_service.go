package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/repositories"
	"github.com/Dosada05/court-scoring/storage"
)

// LiveBroadcaster — то, что сервису нужно от websocket-хаба: доставить
// событие всем подписчикам турнира.
type LiveBroadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// ScoringService — машина состояний матчей. Все изменения статусов матчей
// и кортов идут только через неё, чтобы инварианты (не больше одного
// матча in_play на корт, счёт целиком или никак, переходы только вперёд)
// проверялись в одном месте, а не в каждом обработчике.
type ScoringService interface {
	Start(ctx context.Context, court *models.Court, matchID int) (*models.Match, error)
	SubmitScore(ctx context.Context, court *models.Court, matchID, score1, score2 int, notes *string) (*models.Match, error)
	Claim(ctx context.Context, court *models.Court, matchID int) (*models.Match, error)
	AssignCourt(ctx context.Context, matchID int, courtID *int) (*models.Match, error)
	Verify(ctx context.Context, matchID int) (*models.Match, error)
	AttachScoresheet(ctx context.Context, court *models.Court, matchID int, contentType string, photo io.Reader) (*models.Match, error)
}

// MatchEvent уходит в комнату турнира после каждого успешного перехода,
// чтобы дашборды обновлялись не дожидаясь следующего опроса.
type MatchEvent struct {
	Type         string        `json:"type"` // MATCH_STARTED, SCORE_SUBMITTED, MATCH_VERIFIED, MATCH_ASSIGNED
	TournamentID int           `json:"tournament_id"`
	Match        *models.Match `json:"match"`
}

type scoringService struct {
	db        *sql.DB
	matchRepo repositories.MatchRepository
	courtRepo repositories.CourtRepository
	uploader  storage.FileUploader
	hub       LiveBroadcaster
	logger    *slog.Logger
}

func NewScoringService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	courtRepo repositories.CourtRepository,
	uploader storage.FileUploader,
	hub LiveBroadcaster,
	logger *slog.Logger,
) ScoringService {
	return &scoringService{
		db:        db,
		matchRepo: matchRepo,
		courtRepo: courtRepo,
		uploader:  uploader,
		hub:       hub,
		logger:    logger,
	}
}

func (s *scoringService) Start(ctx context.Context, court *models.Court, matchID int) (*models.Match, error) {
	match, err := s.getScopedMatch(ctx, court, matchID)
	if err != nil {
		return nil, err
	}

	// Повторный start с того же корта — ретрай мобильного клиента,
	// показываем текущее состояние вместо ошибки.
	if match.Status == models.MatchStatusInPlay && match.CourtID != nil && *match.CourtID == court.ID {
		return match, nil
	}
	if match.Status != models.MatchStatusScheduled {
		return nil, transitionError("start", match.ID, match.Status, models.MatchStatusScheduled)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Сначала занимаем корт условным апдейтом: из двух одновременных
	// start по одному корту здесь выигрывает ровно один.
	if err := s.courtRepo.UpdateStatus(ctx, tx, court.ID, models.CourtStatusAvailable, models.CourtStatusInPlay); err != nil {
		if errors.Is(err, repositories.ErrCourtStatusConflict) {
			return nil, fmt.Errorf("%w: court %d", ErrCourtBusy, court.CourtNumber)
		}
		return nil, fmt.Errorf("failed to occupy court %d: %w", court.ID, err)
	}

	if err := s.matchRepo.MarkInPlay(ctx, tx, match.ID, court.ID, court.CourtNumber, time.Now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return nil, transitionError("start", match.ID, match.Status, models.MatchStatusScheduled)
		}
		return nil, fmt.Errorf("failed to mark match %d in play: %w", match.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit start transaction: %w", err)
	}

	started, err := s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload started match %d: %w", match.ID, err)
	}
	s.broadcast("MATCH_STARTED", started)
	return started, nil
}

func (s *scoringService) SubmitScore(ctx context.Context, court *models.Court, matchID, score1, score2 int, notes *string) (*models.Match, error) {
	if score1 < 0 || score2 < 0 {
		return nil, fmt.Errorf("%w: got %d and %d", ErrScoreInvalid, score1, score2)
	}

	match, err := s.getScopedMatch(ctx, court, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInPlay {
		// Сюда же попадает повторный submit по уже завершённому матчу:
		// сетевой ретрай не должен перезаписать счёт.
		return nil, transitionError("submit_score", match.ID, match.Status, models.MatchStatusInPlay)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.matchRepo.CompleteWithScore(ctx, tx, match.ID, score1, score2, notes, court.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return nil, transitionError("submit_score", match.ID, match.Status, models.MatchStatusInPlay)
		}
		return nil, fmt.Errorf("failed to complete match %d: %w", match.ID, err)
	}

	// Освобождаем корт. Если он уже available (например, поправил
	// администратор), это не повод терять уже записанный счёт.
	if err := s.courtRepo.UpdateStatus(ctx, tx, court.ID, models.CourtStatusInPlay, models.CourtStatusAvailable); err != nil {
		if !errors.Is(err, repositories.ErrCourtStatusConflict) {
			return nil, fmt.Errorf("failed to release court %d: %w", court.ID, err)
		}
		s.logger.WarnContext(ctx, "court was not in_play on score submission",
			slog.Int("court_id", court.ID), slog.Int("match_id", match.ID))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit score transaction: %w", err)
	}

	completed, err := s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload completed match %d: %w", match.ID, err)
	}
	s.broadcast("SCORE_SUBMITTED", completed)
	return completed, nil
}

func (s *scoringService) Claim(ctx context.Context, court *models.Court, matchID int) (*models.Match, error) {
	match, err := s.getScopedMatch(ctx, court, matchID)
	if err != nil {
		return nil, err
	}

	// Матч уже закреплён за этим кортом — ретрай, отдаём как есть.
	if match.CourtID != nil && *match.CourtID == court.ID {
		return match, nil
	}
	if match.Status != models.MatchStatusScheduled {
		return nil, transitionError("claim", match.ID, match.Status, models.MatchStatusScheduled)
	}

	if err := s.matchRepo.ClaimUnassigned(ctx, s.db, match.ID, court.ID, court.CourtNumber); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			// Гонку за свободный матч выиграл другой корт.
			return nil, fmt.Errorf("%w: match %d", ErrMatchOwnedByOtherCourt, match.ID)
		}
		return nil, fmt.Errorf("failed to claim match %d: %w", match.ID, err)
	}

	claimed, err := s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload claimed match %d: %w", match.ID, err)
	}
	s.broadcast("MATCH_ASSIGNED", claimed)
	return claimed, nil
}

func (s *scoringService) AssignCourt(ctx context.Context, matchID int, courtID *int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	var courtNumber *int
	if courtID != nil {
		court, err := s.courtRepo.GetByID(ctx, *courtID)
		if err != nil {
			if errors.Is(err, repositories.ErrCourtNotFound) {
				return nil, ErrCourtNotFound
			}
			return nil, err
		}
		if court.TournamentID != match.TournamentID {
			return nil, ErrCourtCrossTournament
		}
		// Идущий матч нельзя перенести на другой корт: старый корт
		// остался бы in_play без матча, а новый — available с матчем.
		if match.Status == models.MatchStatusInPlay && (match.CourtID == nil || *match.CourtID != court.ID) {
			return nil, transitionError("assign_court", match.ID, match.Status, models.MatchStatusScheduled)
		}
		courtNumber = &court.CourtNumber
	} else if match.Status != models.MatchStatusScheduled {
		// Снять корт можно только с ещё не начатого матча, иначе
		// нарушится зеркалирование статуса корта.
		return nil, transitionError("assign_court", match.ID, match.Status, models.MatchStatusScheduled)
	}

	if err := s.matchRepo.UpdateCourtAssignment(ctx, s.db, match.ID, courtID, courtNumber); err != nil {
		return nil, fmt.Errorf("failed to assign court for match %d: %w", match.ID, err)
	}

	assigned, err := s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload assigned match %d: %w", match.ID, err)
	}
	s.broadcast("MATCH_ASSIGNED", assigned)
	return assigned, nil
}

func (s *scoringService) Verify(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	if err := s.matchRepo.MarkVerified(ctx, s.db, match.ID); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return nil, transitionError("verify", match.ID, match.Status, models.MatchStatusCompleted)
		}
		return nil, fmt.Errorf("failed to verify match %d: %w", match.ID, err)
	}

	verified, err := s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload verified match %d: %w", match.ID, err)
	}
	s.broadcast("MATCH_VERIFIED", verified)
	return verified, nil
}

func (s *scoringService) AttachScoresheet(ctx context.Context, court *models.Court, matchID int, contentType string, photo io.Reader) (*models.Match, error) {
	if s.uploader == nil {
		return nil, ErrScoresheetStorageDisabled
	}

	match, err := s.getScopedMatch(ctx, court, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusCompleted {
		return nil, transitionError("attach_scoresheet", match.ID, match.Status, models.MatchStatusCompleted)
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	key := fmt.Sprintf("scoresheets/tournament_%d/match_%d%s", match.TournamentID, match.ID, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, photo); err != nil {
		return nil, fmt.Errorf("failed to upload scoresheet for match %d: %w", match.ID, err)
	}

	if err := s.matchRepo.SetScoresheetKey(ctx, s.db, match.ID, key); err != nil {
		if errors.Is(err, repositories.ErrMatchStatusConflict) {
			return nil, transitionError("attach_scoresheet", match.ID, match.Status, models.MatchStatusCompleted)
		}
		return nil, fmt.Errorf("failed to store scoresheet key for match %d: %w", match.ID, err)
	}

	updated, err := s.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match %d: %w", match.ID, err)
	}
	populateScoresheetURL(updated, s.uploader)
	return updated, nil
}

// getScopedMatch загружает матч и проверяет права судьи: матч либо уже
// принадлежит этому корту, либо никому — чужие матчи трогать нельзя.
// Матчи других турниров для держателя токена не существуют.
func (s *scoringService) getScopedMatch(ctx context.Context, court *models.Court, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.TournamentID != court.TournamentID {
		return nil, ErrMatchNotFound
	}
	if match.CourtID != nil && *match.CourtID != court.ID {
		return nil, fmt.Errorf("%w: match %d is assigned to court %d", ErrMatchOwnedByOtherCourt, match.ID, *match.CourtID)
	}
	return match, nil
}

func (s *scoringService) broadcast(eventType string, match *models.Match) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(tournamentRoom(match.TournamentID), MatchEvent{
		Type:         eventType,
		TournamentID: match.TournamentID,
		Match:        match,
	})
}

func tournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

// transitionError формирует ошибку 409 с попыткой и фактическим статусом,
// чтобы клиенту было видно, какой переход он запросил.
func transitionError(action string, matchID int, actual, expected models.MatchStatus) error {
	return fmt.Errorf("%w: cannot %s match %d in status %q (expected %q)",
		ErrInvalidTransition, action, matchID, actual, expected)
}
