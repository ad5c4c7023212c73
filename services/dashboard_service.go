package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/repositories"
	"github.com/Dosada05/court-scoring/storage"
	"golang.org/x/sync/errgroup"
)

// recentScoresWindow — сколько последних завершённых матчей показывает
// лента дашборда.
const recentScoresWindow = 20

// DashboardService — проекция без права записи. Live — чистая функция от
// текущего состояния стора: её можно дёргать сколь угодно часто, побочных
// эффектов нет, отсутствие матчей на корте — нормальное состояние (null),
// а не ошибка.
type DashboardService interface {
	Live(ctx context.Context, tournamentID int) (*models.LiveDashboard, error)
}

type dashboardService struct {
	courtRepo      repositories.CourtRepository
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
}

func NewDashboardService(
	courtRepo repositories.CourtRepository,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
) DashboardService {
	return &dashboardService{
		courtRepo:      courtRepo,
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
	}
}

func (s *dashboardService) Live(ctx context.Context, tournamentID int) (*models.LiveDashboard, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	courts, err := s.courtRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list courts for tournament %d: %w", tournamentID, err)
	}

	dashboard := &models.LiveDashboard{
		TournamentID: tournamentID,
		Courts:       make([]models.CourtSummary, len(courts)),
		Timestamp:    time.Now().UTC().Format("15:04:05"),
	}

	// Сводки кортов независимы друг от друга — собираем их параллельно.
	g, gctx := errgroup.WithContext(ctx)
	for i, court := range courts {
		i, court := i, court
		g.Go(func() error {
			summary, err := s.courtSummary(gctx, court)
			if err != nil {
				return err
			}
			dashboard.Courts[i] = summary
			return nil
		})
	}

	g.Go(func() error {
		completed := models.MatchStatusCompleted
		recent, err := s.matchRepo.ListByTournament(gctx, tournamentID, repositories.MatchFilter{
			Status: &completed, RecentFirst: true, Limit: recentScoresWindow,
		})
		if err != nil {
			return fmt.Errorf("failed to load recent scores: %w", err)
		}
		populateScoresheetURLs(recent, s.uploader)
		if recent == nil {
			recent = []*models.Match{}
		}
		dashboard.RecentScores = recent
		return nil
	})

	g.Go(func() error {
		stats, err := s.stats(gctx, tournamentID)
		if err != nil {
			return err
		}
		dashboard.Stats = stats
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

func (s *dashboardService) courtSummary(ctx context.Context, court *models.Court) (models.CourtSummary, error) {
	summary := models.CourtSummary{
		CourtID:     court.ID,
		CourtNumber: court.CourtNumber,
		Name:        court.DisplayName(),
		ManagerName: derefString(court.ManagerName),
		Status:      court.Status,
	}

	inPlay := models.MatchStatusInPlay
	scheduled := models.MatchStatusScheduled
	completed := models.MatchStatusCompleted

	current, err := s.matchRepo.ListByTournament(ctx, court.TournamentID, repositories.MatchFilter{
		Status: &inPlay, CourtID: &court.ID, Limit: 1,
	})
	if err != nil {
		return summary, fmt.Errorf("failed to load current match for court %d: %w", court.ID, err)
	}
	if len(current) > 0 {
		summary.CurrentMatch = current[0]
	}

	latest, err := s.matchRepo.ListByTournament(ctx, court.TournamentID, repositories.MatchFilter{
		Status: &completed, CourtID: &court.ID, RecentFirst: true, Limit: 1,
	})
	if err != nil {
		return summary, fmt.Errorf("failed to load latest result for court %d: %w", court.ID, err)
	}
	if len(latest) > 0 {
		populateScoresheetURL(latest[0], s.uploader)
		summary.LatestResult = latest[0]
	}

	next, err := s.matchRepo.ListByTournament(ctx, court.TournamentID, repositories.MatchFilter{
		Status: &scheduled, CourtID: &court.ID, Limit: 1,
	})
	if err != nil {
		return summary, fmt.Errorf("failed to load next match for court %d: %w", court.ID, err)
	}
	if len(next) > 0 {
		summary.NextMatch = next[0]
	}

	return summary, nil
}

func (s *dashboardService) stats(ctx context.Context, tournamentID int) (models.DashboardStats, error) {
	var stats models.DashboardStats

	total, err := s.matchRepo.CountByTournament(ctx, tournamentID, repositories.CountFilter{})
	if err != nil {
		return stats, fmt.Errorf("failed to count matches: %w", err)
	}

	completed := models.MatchStatusCompleted
	completedCount, err := s.matchRepo.CountByTournament(ctx, tournamentID, repositories.CountFilter{Status: &completed})
	if err != nil {
		return stats, fmt.Errorf("failed to count completed matches: %w", err)
	}

	inPlay := models.MatchStatusInPlay
	inPlayCount, err := s.matchRepo.CountByTournament(ctx, tournamentID, repositories.CountFilter{Status: &inPlay})
	if err != nil {
		return stats, fmt.Errorf("failed to count in-play matches: %w", err)
	}

	unverified, err := s.matchRepo.CountByTournament(ctx, tournamentID, repositories.CountFilter{
		Status: &completed, UnverifiedOnly: true,
	})
	if err != nil {
		return stats, fmt.Errorf("failed to count unverified matches: %w", err)
	}

	stats.Total = total
	stats.Completed = completedCount
	stats.InPlay = inPlayCount
	stats.Scheduled = total - completedCount - inPlayCount
	stats.Unverified = unverified
	return stats, nil
}
