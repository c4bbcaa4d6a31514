// services/history_service.go
package services

import (
	"context"
	"sort"

	"github.com/SanderKaatee/yahtzee/models"
	"github.com/SanderKaatee/yahtzee/persistence"
	"github.com/SanderKaatee/yahtzee/yahtzee"
)

// HistoryService 已结束对局的记录与统计
type HistoryService struct {
	db persistence.Database
}

func NewHistoryService(db persistence.Database) *HistoryService {
	return &HistoryService{db: db}
}

// Record 保存一局结束的游戏，玩家按得分排序
func (s *HistoryService) Record(ctx context.Context, rec *models.Room, players []*models.Player) (*models.GameRecord, error) {
	g := rec.GameState
	if g == nil || g.Winner == nil {
		return nil, ErrNoWinner
	}

	persistence.SortPlayers(players)
	standings := make([]yahtzee.Standing, 0, len(players))
	for _, p := range players {
		if p.IsSpectator {
			continue
		}
		standings = append(standings, yahtzee.Standing{
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    p.Scorecard.Total(),
		})
	}

	out := &models.GameRecord{
		RoomID:     rec.ID,
		RoomName:   rec.Name,
		WinnerID:   g.Winner.PlayerID,
		WinnerName: g.Winner.Name,
		Turns:      g.TurnNumber,
		CreatedAt:  rec.UpdatedAt,
	}
	for _, st := range yahtzee.Ranked(standings) {
		out.Players = append(out.Players, models.PlayerInfo{
			PlayerID: st.PlayerID,
			Name:     st.Name,
			Points:   st.Score,
		})
	}
	if err := s.db.SaveGameRecord(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentGames 最近的对局，新的在前
func (s *HistoryService) RecentGames(ctx context.Context, limit int) ([]models.GameRecord, error) {
	return s.db.RecentGames(ctx, limit)
}

// WinCount is one leaderboard row.
type WinCount struct {
	Name      string `json:"name"`
	Wins      int    `json:"wins"`
	BestScore int    `json:"bestScore"`
}

// Leaderboard tallies wins by display name over the last window games.
func (s *HistoryService) Leaderboard(ctx context.Context, window int) ([]WinCount, error) {
	games, err := s.db.RecentGames(ctx, window)
	if err != nil {
		return nil, err
	}

	byName := map[string]*WinCount{}
	for _, g := range games {
		w, ok := byName[g.WinnerName]
		if !ok {
			w = &WinCount{Name: g.WinnerName}
			byName[g.WinnerName] = w
		}
		w.Wins++
		for _, p := range g.Players {
			if p.PlayerID == g.WinnerID && p.Points > w.BestScore {
				w.BestScore = p.Points
			}
		}
	}

	out := make([]WinCount, 0, len(byName))
	for _, w := range byName {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].BestScore != out[j].BestScore {
			return out[i].BestScore > out[j].BestScore
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
