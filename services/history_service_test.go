package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

func seat(n int) *int { return &n }

func cardWith(points int) yahtzee.Scorecard {
	var c yahtzee.Scorecard
	c.Set(yahtzee.Chance, points)
	return c
}

func finishedRoom(id, winnerID, winnerName string, at time.Time) *models.Room {
	return &models.Room{
		ID:     id,
		Name:   "Room " + id,
		Status: models.StatusFinished,
		GameState: &yahtzee.GameState{
			TurnNumber: 13,
			Winner:     &yahtzee.Winner{PlayerID: winnerID, Name: winnerName},
		},
		UpdatedAt: at,
	}
}

func TestHistoryService_Record(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryStore()
	h := NewHistoryService(db)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	players := []*models.Player{
		{ID: "p2", Name: "Bob", TurnOrder: seat(1), Scorecard: cardWith(20)},
		{ID: "watcher", Name: "Cy", IsSpectator: true},
		{ID: "p1", Name: "Ann", TurnOrder: seat(0), Scorecard: cardWith(20)},
		{ID: "p3", Name: "Dee", TurnOrder: seat(2), Scorecard: cardWith(25)},
	}
	rec, err := h.Record(ctx, finishedRoom("ROOM01", "p3", "Dee", at), players)
	require.NoError(t, err)

	assert.Equal(t, "Dee", rec.WinnerName)
	assert.Equal(t, 13, rec.Turns)
	assert.Equal(t, at, rec.CreatedAt)
	// 同分按座位顺序
	assert.Equal(t, []models.PlayerInfo{
		{PlayerID: "p3", Name: "Dee", Points: 25},
		{PlayerID: "p1", Name: "Ann", Points: 20},
		{PlayerID: "p2", Name: "Bob", Points: 20},
	}, rec.Players)

	games, err := h.RecentGames(ctx, 5)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, *rec, games[0])
}

func TestHistoryService_RecordWithoutWinner(t *testing.T) {
	h := NewHistoryService(persistence.NewMemoryStore())
	_, err := h.Record(context.Background(), &models.Room{ID: "ROOM01"}, nil)
	assert.ErrorIs(t, err, ErrNoWinner)
}

func TestHistoryService_Leaderboard(t *testing.T) {
	ctx := context.Background()
	db := persistence.NewMemoryStore()
	h := NewHistoryService(db)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	games := []struct {
		id, winner string
		score      int
	}{
		{"R1", "Ann", 180},
		{"R2", "Bob", 210},
		{"R3", "Ann", 150},
		{"R4", "Cy", 210},
	}
	for i, g := range games {
		players := []*models.Player{{ID: "id-" + g.winner, Name: g.winner, TurnOrder: seat(0), Scorecard: cardWith(g.score)}}
		_, err := h.Record(ctx, finishedRoom(g.id, "id-"+g.winner, g.winner, at.Add(time.Duration(i)*time.Minute)), players)
		require.NoError(t, err)
	}

	board, err := h.Leaderboard(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []WinCount{
		{Name: "Ann", Wins: 2, BestScore: 180},
		{Name: "Bob", Wins: 1, BestScore: 210},
		{Name: "Cy", Wins: 1, BestScore: 210},
	}, board)

	// 只统计最近两局
	board, err = h.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []WinCount{
		{Name: "Cy", Wins: 1, BestScore: 210},
		{Name: "Ann", Wins: 1, BestScore: 150},
	}, board)
}
