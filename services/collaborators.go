package services

import "context"

// Интерфейсы внешних сервисов основного приложения. Ядро судейства их
// потребляет, но не реализует: профили игроков, рассылки и wallet-пассы
// живут за этой границей.

// TeamLookup разрешает ссылки на игроков в отображаемое имя команды
// ("Alice & Bob"). Используется при ручном создании матча, когда переданы
// только идентификаторы игроков.
type TeamLookup interface {
	TeamDisplayName(ctx context.Context, playerIDs ...int) (string, error)
}

// Notifier уведомляет директоров о неподтверждённых счетах. Вызывается
// окружающим приложением по его собственному расписанию, не этим ядром.
type Notifier interface {
	NotifyUnverifiedScores(ctx context.Context, tournamentID int, count int) error
}

// PassIssuer выпускает wallet-пассы для участников. Здесь только граница.
type PassIssuer interface {
	IssuePass(ctx context.Context, playerID int) ([]byte, error)
}
