package models

import (
	"strconv"
	"time"
)

// CourtStatus представляет статусы корта, соответствующие ENUM в БД.
type CourtStatus string

const (
	CourtStatusAvailable CourtStatus = "available"
	CourtStatusInPlay    CourtStatus = "in_play"
)

// Court — физический корт. ManagerToken выдаётся один раз при создании
// корта и является единственным "паролем" судьи корта (доступ без логина).
type Court struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	CourtNumber  int         `json:"court_number" db:"court_number"`
	Name         *string     `json:"name,omitempty" db:"name"`
	ManagerToken string      `json:"manager_token" db:"manager_token"`
	ManagerName  *string     `json:"manager_name,omitempty" db:"manager_name"`
	Status       CourtStatus `json:"status" db:"status"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`

	// ManagerURL не хранится в БД, заполняется сервисом из базового URL.
	ManagerURL string `json:"manager_url,omitempty" db:"-"`
}

// DisplayName возвращает имя корта для отображения ("Center Court" или "Court 3").
func (c *Court) DisplayName() string {
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	return "Court " + strconv.Itoa(c.CourtNumber)
}
