package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/court-scoring/models"
	"github.com/Dosada05/court-scoring/repositories"
)

// --- Заглушка database/sql ---
//
// Сервисы открывают транзакции на *sql.DB, но все данные в тестах живут
// в in-memory репозиториях, которые игнорируют exec. Регистрируем
// минимальный драйвер, у которого Begin/Commit/Rollback — no-op: этого
// достаточно, чтобы пройти транзакционные ветки кода.

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

var registerStubDriver sync.Once

func newStubDB() *sql.DB {
	registerStubDriver.Do(func() {
		sql.Register("scoring-stub", stubDriver{})
	})
	db, err := sql.Open("scoring-stub", "")
	if err != nil {
		panic(err)
	}
	return db
}

// --- In-memory репозитории ---
//
// Фейки повторяют контракт условных апдейтов настоящих репозиториев:
// проверка статуса и изменение происходят под одним мьютексом, поэтому
// гонки разрешаются так же, как WHERE status = ... в Postgres.

type fakeTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo(ids ...int) *fakeTournamentRepo {
	repo := &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament)}
	for _, id := range ids {
		repo.tournaments[id] = &models.Tournament{ID: id, Name: "Open", CreatedAt: time.Now()}
	}
	return repo
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	clone := *t
	return &clone, nil
}

type fakeCourtRepo struct {
	mu     sync.Mutex
	nextID int
	courts map[int]*models.Court
}

func newFakeCourtRepo() *fakeCourtRepo {
	return &fakeCourtRepo{nextID: 1, courts: make(map[int]*models.Court)}
}

func (r *fakeCourtRepo) add(court *models.Court) *models.Court {
	r.mu.Lock()
	defer r.mu.Unlock()
	court.ID = r.nextID
	r.nextID++
	if court.Status == "" {
		court.Status = models.CourtStatusAvailable
	}
	court.CreatedAt = time.Now()
	clone := *court
	r.courts[court.ID] = &clone
	return court
}

func (r *fakeCourtRepo) Create(_ context.Context, _ repositories.SQLExecutor, court *models.Court) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.courts {
		if existing.TournamentID == court.TournamentID && existing.CourtNumber == court.CourtNumber {
			return repositories.ErrCourtNumberConflict
		}
		if existing.ManagerToken == court.ManagerToken {
			return repositories.ErrCourtTokenConflict
		}
	}
	court.ID = r.nextID
	r.nextID++
	court.CreatedAt = time.Now()
	clone := *court
	r.courts[court.ID] = &clone
	return nil
}

func (r *fakeCourtRepo) GetByID(_ context.Context, id int) (*models.Court, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	court, ok := r.courts[id]
	if !ok {
		return nil, repositories.ErrCourtNotFound
	}
	clone := *court
	return &clone, nil
}

func (r *fakeCourtRepo) GetByToken(_ context.Context, token string) (*models.Court, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, court := range r.courts {
		if court.ManagerToken == token {
			clone := *court
			return &clone, nil
		}
	}
	return nil, repositories.ErrCourtNotFound
}

func (r *fakeCourtRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Court, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var courts []*models.Court
	for _, court := range r.courts {
		if court.TournamentID == tournamentID {
			clone := *court
			courts = append(courts, &clone)
		}
	}
	sort.Slice(courts, func(i, j int) bool { return courts[i].CourtNumber < courts[j].CourtNumber })
	return courts, nil
}

func (r *fakeCourtRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, court := range r.courts {
		if court.TournamentID == tournamentID {
			delete(r.courts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakeCourtRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.CourtStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	court, ok := r.courts[id]
	if !ok || court.Status != from {
		return repositories.ErrCourtStatusConflict
	}
	court.Status = to
	return nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: make(map[int]*models.Match)}
}

func (r *fakeMatchRepo) add(match *models.Match) *models.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	match.ID = r.nextID
	r.nextID++
	if match.Status == "" {
		match.Status = models.MatchStatusScheduled
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now()
	}
	clone := *match
	r.matches[match.ID] = &clone
	return match
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match.ID = r.nextID
	r.nextID++
	match.CreatedAt = time.Now()
	clone := *match
	r.matches[match.ID] = &clone
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	clone := *match
	return &clone, nil
}

func (r *fakeMatchRepo) Update(_ context.Context, id int, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.MatchNumber = match.MatchNumber
	stored.RoundName = match.RoundName
	stored.Category = match.Category
	stored.Team1Name = match.Team1Name
	stored.Team2Name = match.Team2Name
	stored.ScheduledTime = match.ScheduledTime
	stored.Notes = match.Notes
	return nil
}

func (r *fakeMatchRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(r.matches, id)
	return nil
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int, filter repositories.MatchFilter) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*models.Match
	for _, match := range r.matches {
		if match.TournamentID != tournamentID {
			continue
		}
		if filter.Status != nil && match.Status != *filter.Status {
			continue
		}
		if filter.CourtID != nil && (match.CourtID == nil || *match.CourtID != *filter.CourtID) {
			continue
		}
		if filter.Unassigned && match.CourtID != nil {
			continue
		}
		clone := *match
		matches = append(matches, &clone)
	}

	if filter.RecentFirst {
		sort.Slice(matches, func(i, j int) bool {
			a, b := matches[i], matches[j]
			switch {
			case a.CompletedAt == nil && b.CompletedAt == nil:
				return a.ID > b.ID
			case a.CompletedAt == nil:
				return false
			case b.CompletedAt == nil:
				return true
			case !a.CompletedAt.Equal(*b.CompletedAt):
				return a.CompletedAt.After(*b.CompletedAt)
			}
			return a.ID > b.ID
		})
	} else {
		sort.Slice(matches, func(i, j int) bool {
			a, b := matches[i], matches[j]
			switch {
			case a.ScheduledTime == nil && b.ScheduledTime == nil:
			case a.ScheduledTime == nil:
				return false
			case b.ScheduledTime == nil:
				return true
			case !a.ScheduledTime.Equal(*b.ScheduledTime):
				return a.ScheduledTime.Before(*b.ScheduledTime)
			}
			return a.ID < b.ID
		})
	}

	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (r *fakeMatchRepo) CountByTournament(_ context.Context, tournamentID int, filter repositories.CountFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, match := range r.matches {
		if match.TournamentID != tournamentID {
			continue
		}
		if filter.Status != nil && match.Status != *filter.Status {
			continue
		}
		if filter.UnverifiedOnly && match.ScoresheetVerified {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeMatchRepo) ExistsImported(_ context.Context, tournamentID int, matchNumber string, courtNumber *int, team1Name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, match := range r.matches {
		if match.TournamentID != tournamentID || match.MatchNumber != matchNumber || match.Team1Name != team1Name {
			continue
		}
		switch {
		case match.CourtNumber == nil && courtNumber == nil:
			return true, nil
		case match.CourtNumber != nil && courtNumber != nil && *match.CourtNumber == *courtNumber:
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeMatchRepo) UpdateCourtAssignment(_ context.Context, _ repositories.SQLExecutor, matchID int, courtID, courtNumber *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.CourtID = courtID
	match.CourtNumber = courtNumber
	return nil
}

func (r *fakeMatchRepo) ClaimUnassigned(_ context.Context, _ repositories.SQLExecutor, matchID, courtID, courtNumber int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[matchID]
	if !ok || match.CourtID != nil || match.Status != models.MatchStatusScheduled {
		return repositories.ErrMatchStatusConflict
	}
	match.CourtID = &courtID
	match.CourtNumber = &courtNumber
	return nil
}

func (r *fakeMatchRepo) MarkInPlay(_ context.Context, _ repositories.SQLExecutor, matchID, courtID, courtNumber int, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[matchID]
	if !ok || match.Status != models.MatchStatusScheduled {
		return repositories.ErrMatchStatusConflict
	}
	match.Status = models.MatchStatusInPlay
	match.CourtID = &courtID
	match.CourtNumber = &courtNumber
	match.StartedAt = &startedAt
	return nil
}

func (r *fakeMatchRepo) CompleteWithScore(_ context.Context, _ repositories.SQLExecutor, matchID, score1, score2 int, notes *string, submittedByCourtID int, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[matchID]
	if !ok || match.Status != models.MatchStatusInPlay {
		return repositories.ErrMatchStatusConflict
	}
	match.Status = models.MatchStatusCompleted
	match.ScoreTeam1 = &score1
	match.ScoreTeam2 = &score2
	match.CompletedAt = &completedAt
	match.ScoreSubmittedAt = &completedAt
	match.SubmittedByCourtID = &submittedByCourtID
	if notes != nil {
		match.Notes = notes
	}
	return nil
}

func (r *fakeMatchRepo) MarkVerified(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[matchID]
	if !ok || match.Status != models.MatchStatusCompleted {
		return repositories.ErrMatchStatusConflict
	}
	match.ScoresheetVerified = true
	return nil
}

func (r *fakeMatchRepo) SetScoresheetKey(_ context.Context, _ repositories.SQLExecutor, matchID int, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[matchID]
	if !ok || match.Status != models.MatchStatusCompleted {
		return repositories.ErrMatchStatusConflict
	}
	match.ScoresheetKey = &key
	return nil
}

// recordingHub запоминает отправленные в комнаты события.
type recordingHub struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	room    string
	message interface{}
}

func (h *recordingHub) BroadcastToRoom(roomID string, message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{room: roomID, message: message})
}

func (h *recordingHub) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var types []string
	for _, e := range h.events {
		if event, ok := e.message.(MatchEvent); ok {
			types = append(types, event.Type)
		}
	}
	return types
}

func intPtr(v int) *int              { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(v time.Time) *time.Time { return &v }
