package models

// DashboardStats — агрегированные счётчики по турниру для живого дашборда.
type DashboardStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InPlay     int `json:"in_play"`
	Scheduled  int `json:"scheduled"`
	Unverified int `json:"unverified"`
}

// CourtSummary — состояние одного корта на дашборде директора.
// Отсутствующий матч представляется как nil, а не как ошибка.
type CourtSummary struct {
	CourtID      int         `json:"court_id"`
	CourtNumber  int         `json:"court_number"`
	Name         string      `json:"name"`
	ManagerName  string      `json:"manager_name"`
	Status       CourtStatus `json:"status"`
	CurrentMatch *Match      `json:"current_match"`
	LatestResult *Match      `json:"latest_result"`
	NextMatch    *Match      `json:"next_match"`
}

// LiveDashboard — полный payload для GET /api/live/{tournamentID}.
type LiveDashboard struct {
	TournamentID int            `json:"tournament_id"`
	Courts       []CourtSummary `json:"courts"`
	RecentScores []*Match       `json:"recent_scores"`
	Stats        DashboardStats `json:"stats"`
	Timestamp    string         `json:"timestamp"`
}

// CourtBoard — всё, что видит судья корта на своём телефоне.
type CourtBoard struct {
	Court             *Court   `json:"court"`
	CurrentMatch      *Match   `json:"current_match"`
	ScheduledMatches  []*Match `json:"scheduled_matches"`
	CompletedMatches  []*Match `json:"completed_matches"`
	UnassignedMatches []*Match `json:"unassigned_matches"`
}
