package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/repositories"
	"github.com/Dosada05/court-scoring/schedule"
	"github.com/Dosada05/court-scoring/storage"
)

// MatchInput — поля матча, которыми управляет администратор.
// Статус и счёт сюда намеренно не входят: ими владеет ScoringService.
type MatchInput struct {
	MatchNumber    string     `json:"match_number"`
	RoundName      *string    `json:"round_name"`
	Category       *string    `json:"category"`
	Team1Name      string     `json:"team1_name"`
	Team2Name      string     `json:"team2_name"`
	Team1Player1ID *int       `json:"team1_player1_id"`
	Team1Player2ID *int       `json:"team1_player2_id"`
	Team2Player1ID *int       `json:"team2_player1_id"`
	Team2Player2ID *int       `json:"team2_player2_id"`
	CourtID        *int       `json:"court_id"`
	ScheduledTime  *time.Time `json:"scheduled_time"`
	Notes          *string    `json:"notes"`
}

// ImportInput — параметры массового импорта расписания.
type ImportInput struct {
	Text string `json:"text"`
	// BaseDate — день, на который назначены матчи; времена HH:MM из
	// текста комбинируются с ним.
	BaseDate *time.Time `json:"base_date"`
	// Значения по умолчанию для строк без собственного контекста.
	Category  string `json:"category"`
	RoundName string `json:"round_name"`
}

// ImportResult — итог импорта. Ноль принятых строк — не ошибка (§ политика
// парсера), фронтенд показывает счётчики как есть.
type ImportResult struct {
	Imported   int                  `json:"imported"`
	Duplicates int                  `json:"duplicates"`
	Stats      schedule.ImportStats `json:"stats"`
}

type MatchService interface {
	Create(ctx context.Context, tournamentID int, input MatchInput) (*models.Match, error)
	GetByID(ctx context.Context, matchID int) (*models.Match, error)
	Update(ctx context.Context, matchID int, input MatchInput) (*models.Match, error)
	Delete(ctx context.Context, matchID int) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	ImportSchedule(ctx context.Context, tournamentID int, input ImportInput) (*ImportResult, error)
}

type matchService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	courtRepo      repositories.CourtRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
	// teamLookup — внешний сервис профилей; nil допустим, тогда имена
	// команд обязаны приходить в запросе.
	teamLookup TeamLookup
	logger     *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	courtRepo repositories.CourtRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
	teamLookup TeamLookup,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:             db,
		matchRepo:      matchRepo,
		courtRepo:      courtRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
		teamLookup:     teamLookup,
		logger:         logger,
	}
}

func (s *matchService) Create(ctx context.Context, tournamentID int, input MatchInput) (*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	if err := s.resolveTeamNames(ctx, &input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Team1Name) == "" || strings.TrimSpace(input.Team2Name) == "" {
		return nil, ErrTeamNamesRequired
	}

	match := &models.Match{
		TournamentID:   tournamentID,
		MatchNumber:    input.MatchNumber,
		RoundName:      input.RoundName,
		Category:       input.Category,
		Team1Name:      strings.TrimSpace(input.Team1Name),
		Team2Name:      strings.TrimSpace(input.Team2Name),
		Team1Player1ID: input.Team1Player1ID,
		Team1Player2ID: input.Team1Player2ID,
		Team2Player1ID: input.Team2Player1ID,
		Team2Player2ID: input.Team2Player2ID,
		Status:         models.MatchStatusScheduled,
		ScheduledTime:  input.ScheduledTime,
		Notes:          input.Notes,
	}

	if input.CourtID != nil {
		court, err := s.courtRepo.GetByID(ctx, *input.CourtID)
		if err != nil {
			if errors.Is(err, repositories.ErrCourtNotFound) {
				return nil, ErrCourtNotFound
			}
			return nil, err
		}
		if court.TournamentID != tournamentID {
			return nil, ErrCourtCrossTournament
		}
		match.CourtID = input.CourtID
		match.CourtNumber = &court.CourtNumber
	}

	if err := s.matchRepo.Create(ctx, s.db, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) GetByID(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	populateScoresheetURL(match, s.uploader)
	return match, nil
}

func (s *matchService) Update(ctx context.Context, matchID int, input MatchInput) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	if err := s.resolveTeamNames(ctx, &input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Team1Name) == "" || strings.TrimSpace(input.Team2Name) == "" {
		return nil, ErrTeamNamesRequired
	}

	match.MatchNumber = input.MatchNumber
	match.RoundName = input.RoundName
	match.Category = input.Category
	match.Team1Name = strings.TrimSpace(input.Team1Name)
	match.Team2Name = strings.TrimSpace(input.Team2Name)
	match.ScheduledTime = input.ScheduledTime
	match.Notes = input.Notes

	if err := s.matchRepo.Update(ctx, matchID, match); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) Delete(ctx context.Context, matchID int) error {
	// Удаление — единственный способ убрать ошибочную запись: обратных
	// переходов статуса у матчей нет.
	if err := s.matchRepo.Delete(ctx, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	return nil
}

func (s *matchService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, repositories.MatchFilter{})
	if err != nil {
		return nil, err
	}
	populateScoresheetURLs(matches, s.uploader)
	if matches == nil {
		return []*models.Match{}, nil
	}
	return matches, nil
}

func (s *matchService) ImportSchedule(ctx context.Context, tournamentID int, input ImportInput) (*ImportResult, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: schedule text is empty", ErrValidationFailed)
	}
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	// Номер корта из расписания превращаем в court_id, если такой корт
	// уже создан; иначе матч остаётся без корта, но номер сохраняем.
	courts, err := s.courtRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	courtsByNumber := make(map[int]*models.Court, len(courts))
	for _, court := range courts {
		courtsByNumber[court.CourtNumber] = court
	}

	var baseDate time.Time
	if input.BaseDate != nil {
		baseDate = *input.BaseDate
	}

	result := &ImportResult{}
	parser := schedule.NewTextParser(input.Text, baseDate)
	for parser.Next() {
		parsed := parser.Match()

		exists, err := s.matchRepo.ExistsImported(ctx, tournamentID, parsed.Label, parsed.CourtNumber, parsed.Team1)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Duplicates++
			continue
		}

		match := &models.Match{
			TournamentID:  tournamentID,
			MatchNumber:   parsed.Label,
			Team1Name:     parsed.Team1,
			Team2Name:     parsed.Team2,
			Status:        models.MatchStatusScheduled,
			ScheduledTime: parsed.ScheduledTime,
			CourtNumber:   parsed.CourtNumber,
		}
		if category := firstNonEmpty(parsed.Category, input.Category); category != "" {
			match.Category = &category
		}
		if round := firstNonEmpty(parsed.Round, input.RoundName); round != "" {
			match.RoundName = &round
		}
		if parsed.CourtNumber != nil {
			if court, ok := courtsByNumber[*parsed.CourtNumber]; ok {
				match.CourtID = &court.ID
			}
		}

		if err := s.matchRepo.Create(ctx, s.db, match); err != nil {
			// Одна битая строка не должна ронять весь импорт.
			s.logger.WarnContext(ctx, "failed to insert imported match",
				slog.String("label", parsed.Label), slog.Any("error", err))
			continue
		}
		result.Imported++
	}

	result.Stats = parser.Stats()
	return result, nil
}

// resolveTeamNames дополняет пустые имена команд через внешний TeamLookup,
// если заданы ссылки на игроков.
func (s *matchService) resolveTeamNames(ctx context.Context, input *MatchInput) error {
	if s.teamLookup == nil {
		return nil
	}
	if strings.TrimSpace(input.Team1Name) == "" {
		if name, ok := s.lookupTeam(ctx, input.Team1Player1ID, input.Team1Player2ID); ok {
			input.Team1Name = name
		}
	}
	if strings.TrimSpace(input.Team2Name) == "" {
		if name, ok := s.lookupTeam(ctx, input.Team2Player1ID, input.Team2Player2ID); ok {
			input.Team2Name = name
		}
	}
	return nil
}

func (s *matchService) lookupTeam(ctx context.Context, playerIDs ...*int) (string, bool) {
	var ids []int
	for _, id := range playerIDs {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	name, err := s.teamLookup.TeamDisplayName(ctx, ids...)
	if err != nil {
		s.logger.Warn("team lookup failed", slog.Any("player_ids", ids), slog.Any("error", err))
		return "", false
	}
	return name, name != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
