package models

import "time"

// Tournament представляет событие, для которого ведётся судейство.
// Создаётся администратором заранее; этот сервис его не изменяет.
type Tournament struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
