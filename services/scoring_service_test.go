package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu       sync.Mutex
	uploaded map[string]string // key -> content type
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(map[string]string)}
}

func (u *fakeUploader) Upload(_ context.Context, key string, contentType string, _ io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploaded[key] = contentType
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.uploaded, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type scoringFixture struct {
	service    ScoringService
	courts     *fakeCourtRepo
	matches    *fakeMatchRepo
	hub        *recordingHub
	uploader   *fakeUploader
	tournament int
}

func newScoringFixture(t *testing.T) *scoringFixture {
	t.Helper()

	db := newStubDB()
	t.Cleanup(func() { db.Close() })

	courts := newFakeCourtRepo()
	matches := newFakeMatchRepo()
	hub := &recordingHub{}
	uploader := newFakeUploader()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &scoringFixture{
		service:    NewScoringService(db, matches, courts, uploader, hub, logger),
		courts:     courts,
		matches:    matches,
		hub:        hub,
		uploader:   uploader,
		tournament: 1,
	}
}

func (f *scoringFixture) addCourt(number int) *models.Court {
	return f.courts.add(&models.Court{
		TournamentID: f.tournament,
		CourtNumber:  number,
		ManagerToken: fmt.Sprintf("token-%d", number),
		Status:       models.CourtStatusAvailable,
	})
}

func (f *scoringFixture) addScheduledMatch(court *models.Court) *models.Match {
	match := &models.Match{
		TournamentID: f.tournament,
		MatchNumber:  "Match 1",
		Team1Name:    "Alice & Bob",
		Team2Name:    "Carol & Dave",
		Status:       models.MatchStatusScheduled,
	}
	if court != nil {
		match.CourtID = &court.ID
		match.CourtNumber = &court.CourtNumber
	}
	return f.matches.add(match)
}

func TestScoringStart(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	started, err := f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusInPlay, started.Status)
	require.NotNil(t, started.StartedAt)
	require.NotNil(t, started.CourtID)
	assert.Equal(t, court.ID, *started.CourtID)

	// Корт зеркалирует статус матча.
	updated, err := f.courts.GetByID(context.Background(), court.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CourtStatusInPlay, updated.Status)

	assert.Equal(t, []string{"MATCH_STARTED"}, f.hub.eventTypes())
}

func TestScoringStartRetrySameCourt(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	_, err := f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)

	// Ретрай мобильного клиента: тот же корт повторяет start.
	again, err := f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInPlay, again.Status)
	assert.Equal(t, []string{"MATCH_STARTED"}, f.hub.eventTypes(), "retry must not broadcast a second event")
}

func TestScoringStartCourtBusy(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	first := f.addScheduledMatch(court)
	second := f.addScheduledMatch(court)

	_, err := f.service.Start(context.Background(), court, first.ID)
	require.NoError(t, err)

	_, err = f.service.Start(context.Background(), court, second.ID)
	assert.ErrorIs(t, err, ErrCourtBusy)
}

func TestScoringConcurrentStartsSameCourt(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	first := f.addScheduledMatch(court)
	second := f.addScheduledMatch(court)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, matchID := range []int{first.ID, second.ID} {
		matchID := matchID
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Start(context.Background(), court, matchID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, busy int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrCourtBusy):
			busy++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one start must win the court")
	assert.Equal(t, 1, busy)

	updated, err := f.courts.GetByID(context.Background(), court.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CourtStatusInPlay, updated.Status)
}

func TestScoringSubmitScore(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	_, err := f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)

	completed, err := f.service.SubmitScore(context.Background(), court, match.ID, 21, 15, strPtr("clean game"))
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusCompleted, completed.Status)
	require.NotNil(t, completed.ScoreTeam1)
	require.NotNil(t, completed.ScoreTeam2)
	assert.Equal(t, 21, *completed.ScoreTeam1)
	assert.Equal(t, 15, *completed.ScoreTeam2)
	assert.Equal(t, "Alice & Bob", completed.Winner())
	require.NotNil(t, completed.SubmittedByCourtID)
	assert.Equal(t, court.ID, *completed.SubmittedByCourtID)
	assert.False(t, completed.ScoresheetVerified)

	// Корт снова свободен для следующего матча.
	updated, err := f.courts.GetByID(context.Background(), court.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CourtStatusAvailable, updated.Status)

	assert.Equal(t, []string{"MATCH_STARTED", "SCORE_SUBMITTED"}, f.hub.eventTypes())
}

func TestScoringSubmitScoreDuplicate(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	_, err := f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)
	_, err = f.service.SubmitScore(context.Background(), court, match.ID, 21, 15, nil)
	require.NoError(t, err)

	// Сетевой ретрай не должен перезаписать уже записанный счёт.
	_, err = f.service.SubmitScore(context.Background(), court, match.ID, 5, 5, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := f.matches.GetByID(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, 21, *stored.ScoreTeam1)
	assert.Equal(t, 15, *stored.ScoreTeam2)
}

func TestScoringSubmitScoreValidation(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	_, err := f.service.SubmitScore(context.Background(), court, match.ID, -1, 10, nil)
	assert.ErrorIs(t, err, ErrScoreInvalid)

	// Счёт по ещё не начатому матчу.
	_, err = f.service.SubmitScore(context.Background(), court, match.ID, 21, 10, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestScoringForeignCourtRejected(t *testing.T) {
	f := newScoringFixture(t)
	ours := f.addCourt(1)
	theirs := f.addCourt(2)
	match := f.addScheduledMatch(ours)

	_, err := f.service.Start(context.Background(), theirs, match.ID)
	assert.ErrorIs(t, err, ErrMatchOwnedByOtherCourt)

	_, err = f.service.SubmitScore(context.Background(), theirs, match.ID, 21, 10, nil)
	assert.ErrorIs(t, err, ErrMatchOwnedByOtherCourt)
}

func TestScoringMatchFromOtherTournamentHidden(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	foreign := f.matches.add(&models.Match{
		TournamentID: f.tournament + 1,
		MatchNumber:  "Match 9",
		Team1Name:    "X",
		Team2Name:    "Y",
		Status:       models.MatchStatusScheduled,
	})

	// Для держателя токена матчи чужого турнира не существуют.
	_, err := f.service.Start(context.Background(), court, foreign.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestScoringClaim(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(nil)

	claimed, err := f.service.Claim(context.Background(), court, match.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed.CourtID)
	assert.Equal(t, court.ID, *claimed.CourtID)
	assert.Equal(t, models.MatchStatusScheduled, claimed.Status, "claim assigns but does not start")

	// Повторный claim тем же кортом — ретрай, не ошибка.
	again, err := f.service.Claim(context.Background(), court, match.ID)
	require.NoError(t, err)
	assert.Equal(t, court.ID, *again.CourtID)
}

func TestScoringConcurrentClaims(t *testing.T) {
	f := newScoringFixture(t)
	court1 := f.addCourt(1)
	court2 := f.addCourt(2)
	match := f.addScheduledMatch(nil)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, court := range []*models.Court{court1, court2} {
		court := court
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Claim(context.Background(), court, match.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, lost int
	for err := range errs {
		if err == nil {
			succeeded++
		} else if assert.ErrorIs(t, err, ErrMatchOwnedByOtherCourt) {
			lost++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one court may claim a free match")
	assert.Equal(t, 1, lost)
}

func TestScoringVerify(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	// Верифицировать можно только завершённый матч.
	_, err := f.service.Verify(context.Background(), match.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)
	_, err = f.service.SubmitScore(context.Background(), court, match.ID, 21, 19, nil)
	require.NoError(t, err)

	verified, err := f.service.Verify(context.Background(), match.ID)
	require.NoError(t, err)
	assert.True(t, verified.ScoresheetVerified)
	assert.Contains(t, f.hub.eventTypes(), "MATCH_VERIFIED")
}

func TestScoringAssignCourt(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(nil)

	assigned, err := f.service.AssignCourt(context.Background(), match.ID, &court.ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.CourtID)
	assert.Equal(t, court.ID, *assigned.CourtID)
	require.NotNil(t, assigned.CourtNumber)
	assert.Equal(t, court.CourtNumber, *assigned.CourtNumber)

	// Снять корт со scheduled-матча можно.
	cleared, err := f.service.AssignCourt(context.Background(), match.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.CourtID)

	// После старта — уже нельзя.
	_, err = f.service.AssignCourt(context.Background(), match.ID, &court.ID)
	require.NoError(t, err)
	_, err = f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)
	_, err = f.service.AssignCourt(context.Background(), match.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestScoringAssignCourtWhileInPlay(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	otherCourt := f.addCourt(2)
	match := f.addScheduledMatch(court)

	_, err := f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)

	// Перенос идущего матча на другой корт рассинхронизировал бы
	// статусы обоих кортов.
	_, err = f.service.AssignCourt(context.Background(), match.ID, &otherCourt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Повторное назначение на тот же корт — безвредный ретрай.
	same, err := f.service.AssignCourt(context.Background(), match.ID, &court.ID)
	require.NoError(t, err)
	require.NotNil(t, same.CourtID)
	assert.Equal(t, court.ID, *same.CourtID)
}

func TestScoringAssignCourtCrossTournament(t *testing.T) {
	f := newScoringFixture(t)
	match := f.addScheduledMatch(nil)
	foreignCourt := f.courts.add(&models.Court{
		TournamentID: f.tournament + 1,
		CourtNumber:  1,
		ManagerToken: "foreign",
		Status:       models.CourtStatusAvailable,
	})

	_, err := f.service.AssignCourt(context.Background(), match.ID, &foreignCourt.ID)
	assert.ErrorIs(t, err, ErrCourtCrossTournament)
}

func TestScoringAttachScoresheet(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	// До завершения матча фото не принимаем.
	_, err := f.service.AttachScoresheet(context.Background(), court, match.ID, "image/jpeg", strings.NewReader("img"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)
	_, err = f.service.SubmitScore(context.Background(), court, match.ID, 21, 12, nil)
	require.NoError(t, err)

	updated, err := f.service.AttachScoresheet(context.Background(), court, match.ID, "image/jpeg", strings.NewReader("img"))
	require.NoError(t, err)
	require.NotNil(t, updated.ScoresheetURL)
	assert.Contains(t, *updated.ScoresheetURL, fmt.Sprintf("match_%d.jpg", match.ID))

	f.uploader.mu.Lock()
	assert.Len(t, f.uploader.uploaded, 1)
	f.uploader.mu.Unlock()
}

func TestScoringAttachScoresheetStorageDisabled(t *testing.T) {
	db := newStubDB()
	t.Cleanup(func() { db.Close() })
	courts := newFakeCourtRepo()
	matches := newFakeMatchRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewScoringService(db, matches, courts, nil, nil, logger)

	court := courts.add(&models.Court{TournamentID: 1, CourtNumber: 1, ManagerToken: "t", Status: models.CourtStatusAvailable})
	match := matches.add(&models.Match{TournamentID: 1, MatchNumber: "Match 1", Team1Name: "A", Team2Name: "B", Status: models.MatchStatusCompleted})

	_, err := service.AttachScoresheet(context.Background(), court, match.ID, "image/jpeg", strings.NewReader("img"))
	assert.ErrorIs(t, err, ErrScoresheetStorageDisabled)
}

// Время завершения и время отправки счёта должны совпадать.
func TestScoringSubmitScoreTimestamps(t *testing.T) {
	f := newScoringFixture(t)
	court := f.addCourt(1)
	match := f.addScheduledMatch(court)

	_, err := f.service.Start(context.Background(), court, match.ID)
	require.NoError(t, err)

	before := time.Now().UTC()
	completed, err := f.service.SubmitScore(context.Background(), court, match.ID, 11, 9, nil)
	require.NoError(t, err)

	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.ScoreSubmittedAt)
	assert.True(t, completed.CompletedAt.Equal(*completed.ScoreSubmittedAt))
	assert.False(t, completed.CompletedAt.Before(before))
}
