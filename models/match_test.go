package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchWinner(t *testing.T) {
	score := func(a, b int) *Match {
		return &Match{Team1Name: "A", Team2Name: "B", ScoreTeam1: &a, ScoreTeam2: &b}
	}

	assert.Equal(t, "A", score(21, 15).Winner())
	assert.Equal(t, "B", score(15, 21).Winner())
	assert.Equal(t, "", score(11, 11).Winner(), "draw has no winner")
	assert.Equal(t, "", (&Match{Team1Name: "A", Team2Name: "B"}).Winner(), "unfinished match has no winner")
}

func TestMatchScoreDisplay(t *testing.T) {
	a, b := 11, 9
	assert.Equal(t, "11 - 9", (&Match{ScoreTeam1: &a, ScoreTeam2: &b}).ScoreDisplay())
	assert.Equal(t, "-- : --", (&Match{}).ScoreDisplay())
	assert.Equal(t, "-- : --", (&Match{ScoreTeam1: &a}).ScoreDisplay(), "half a score is no score")
}

func TestCourtDisplayName(t *testing.T) {
	name := "Center Court"
	assert.Equal(t, "Center Court", (&Court{CourtNumber: 1, Name: &name}).DisplayName())
	assert.Equal(t, "Court 3", (&Court{CourtNumber: 3}).DisplayName())
}
