package models

import (
	"fmt"
	"time"
)

// MatchStatus представляет статусы матча, соответствующие ENUM в БД.
// Переходы только вперёд: scheduled -> in_play -> completed.
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusInPlay    MatchStatus = "in_play"
	MatchStatusCompleted MatchStatus = "completed"
)

// Match — один матч (один сет) между двумя командами или игроками.
type Match struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	CourtID      *int `json:"court_id,omitempty" db:"court_id"`
	// CourtNumber копируется с корта при назначении, чтобы дашборд не
	// делал лишний join ради отображения.
	CourtNumber *int `json:"court_number,omitempty" db:"court_number"`

	// MatchNumber — текстовая метка из расписания ("Match 12",
	// "Semi Final 1*1"). Только для отображения, уникальность не гарантируется.
	MatchNumber string  `json:"match_number" db:"match_number"`
	RoundName   *string `json:"round_name,omitempty" db:"round_name"`
	Category    *string `json:"category,omitempty" db:"category"`

	Team1Name string `json:"team1_name" db:"team1_name"`
	Team2Name string `json:"team2_name" db:"team2_name"`

	// Опциональные ссылки на игроков (профили игроков живут во внешнем сервисе).
	Team1Player1ID *int `json:"team1_player1_id,omitempty" db:"team1_player1_id"`
	Team1Player2ID *int `json:"team1_player2_id,omitempty" db:"team1_player2_id"`
	Team2Player1ID *int `json:"team2_player1_id,omitempty" db:"team2_player1_id"`
	Team2Player2ID *int `json:"team2_player2_id,omitempty" db:"team2_player2_id"`

	// Оба счёта либо NULL (матч не завершён), либо заполнены.
	ScoreTeam1 *int `json:"score_team1,omitempty" db:"score_team1"`
	ScoreTeam2 *int `json:"score_team2,omitempty" db:"score_team2"`

	Status MatchStatus `json:"status" db:"status"`

	ScheduledTime    *time.Time `json:"scheduled_time,omitempty" db:"scheduled_time"`
	StartedAt        *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ScoreSubmittedAt *time.Time `json:"score_submitted_at,omitempty" db:"score_submitted_at"`

	// ScoresheetVerified — директор сверил цифровой счёт с бумажным протоколом.
	ScoresheetVerified bool `json:"scoresheet_verified" db:"scoresheet_verified"`
	// ScoresheetKey — ключ фотографии протокола в объектном хранилище.
	ScoresheetKey *string `json:"-" db:"scoresheet_key"`
	ScoresheetURL *string `json:"scoresheet_url,omitempty" db:"-"`

	// SubmittedByCourtID — какой корт прислал счёт (аудит).
	SubmittedByCourtID *int    `json:"submitted_by_court_id,omitempty" db:"submitted_by_court_id"`
	Notes              *string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Winner возвращает имя победившей команды, либо пустую строку при ничьей
// или незавершённом матче.
func (m *Match) Winner() string {
	if m.ScoreTeam1 == nil || m.ScoreTeam2 == nil {
		return ""
	}
	switch {
	case *m.ScoreTeam1 > *m.ScoreTeam2:
		return m.Team1Name
	case *m.ScoreTeam2 > *m.ScoreTeam1:
		return m.Team2Name
	}
	return ""
}

// ScoreDisplay возвращает счёт в виде "11 - 9" или "-- : --".
func (m *Match) ScoreDisplay() string {
	if m.ScoreTeam1 != nil && m.ScoreTeam2 != nil {
		return fmt.Sprintf("%d - %d", *m.ScoreTeam1, *m.ScoreTeam2)
	}
	return "-- : --"
}
