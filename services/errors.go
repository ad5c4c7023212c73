package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурсы не найдены (404)
	ErrNotFound           = errors.New("requested resource not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrCourtNotFound      = errors.New("court not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Нарушения машины состояний (409)
	ErrInvalidTransition = errors.New("invalid match state transition")
	// ErrCourtBusy — на корте уже идёт матч; в частности её получает
	// проигравший из двух одновременных start по одному корту.
	ErrCourtBusy = errors.New("court already has a match in play")
	// ErrMatchOwnedByOtherCourt — попытка судьи изменить матч,
	// закреплённый за другим кортом.
	ErrMatchOwnedByOtherCourt = errors.New("match belongs to another court")

	// Конфликты уникальности при создании кортов (409)
	ErrCourtNumberConflict = errors.New("court number already exists for this tournament")
	// ErrCourtTokenConflict — сгенерированный токен совпал с уже выданным;
	// повторный запрос создаст корты с новыми токенами.
	ErrCourtTokenConflict = errors.New("manager token collision, retry court creation")

	// Ошибки валидации (400)
	ErrValidationFailed     = errors.New("validation failed")
	ErrScoreInvalid         = errors.New("both scores are required and must be non-negative")
	ErrTeamNamesRequired    = errors.New("both team names are required")
	ErrCourtCountInvalid    = errors.New("court count must be positive")
	ErrCourtCrossTournament = errors.New("court and match belong to different tournaments")

	// Инфраструктурные
	ErrScoresheetStorageDisabled = errors.New("scoresheet photo storage is not configured")
)
