package yahtzee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource replays a sequence of draws, wrapping around.
type fixedSource struct {
	values []int
	next   int
}

func (s *fixedSource) Intn(n int) int {
	v := s.values[s.next%len(s.values)] % n
	s.next++
	return v
}

func heldMask(idx ...int) [5]bool {
	var h [5]bool
	for _, i := range idx {
		h[i] = true
	}
	return h
}

func TestRoller_RollKeepsHeldDice(t *testing.T) {
	r := NewRoller(nil)
	held := heldMask(0, 3)
	start := Dice{2, 5, 5, 4, 1}

	for i := 0; i < 500; i++ {
		d := r.Roll(start, held)
		assert.Equal(t, 2, d[0])
		assert.Equal(t, 4, d[3])
		for j, v := range d {
			if !held[j] {
				require.GreaterOrEqual(t, v, 1)
				require.LessOrEqual(t, v, 6)
			}
		}
	}
}

func TestRoller_RollUsesSource(t *testing.T) {
	r := NewRoller(&fixedSource{values: []int{0, 1, 2, 3, 4, 5}})
	d := r.Roll(Dice{1, 1, 1, 1, 1}, [5]bool{})
	assert.Equal(t, Dice{1, 2, 3, 4, 5}, d)
}

func TestCheatEnabled(t *testing.T) {
	assert.True(t, CheatEnabled("Sander"))
	assert.True(t, CheatEnabled("xXsAnDeRXx"))
	assert.False(t, CheatEnabled("Sandra"))
	assert.False(t, CheatEnabled(""))
}

func TestGuaranteed(t *testing.T) {
	tests := []struct {
		name   string
		dice   Dice
		held   [5]bool
		target Category
		want   Dice
	}{
		{
			name:   "yahtzee completes the held face",
			dice:   Dice{3, 1, 2, 5, 6},
			held:   heldMask(0),
			target: Yahtzee,
			want:   Dice{3, 3, 3, 3, 3},
		},
		{
			name:   "yahtzee with mixed held faces falls back to sixes",
			dice:   Dice{3, 4, 2, 5, 1},
			held:   heldMask(0, 1),
			target: Yahtzee,
			want:   Dice{3, 4, 6, 6, 6},
		},
		{
			name:   "upper fills every unheld die",
			dice:   Dice{1, 2, 3, 4, 5},
			held:   heldMask(4),
			target: Fours,
			want:   Dice{4, 4, 4, 4, 5},
		},
		{
			name:   "three of a kind without holds uses sixes",
			dice:   Dice{1, 2, 3, 4, 5},
			held:   [5]bool{},
			target: ThreeOfAKind,
			want:   Dice{6, 6, 6, 6, 6},
		},
		{
			name:   "three of a kind ties go to the first seen face",
			dice:   Dice{2, 5, 2, 5, 1},
			held:   heldMask(0, 1, 2, 3),
			target: ThreeOfAKind,
			want:   Dice{2, 5, 2, 5, 2},
		},
		{
			name:   "four of a kind from a held pair",
			dice:   Dice{4, 4, 1, 1, 1},
			held:   heldMask(0, 1),
			target: FourOfAKind,
			want:   Dice{4, 4, 4, 4, 6},
		},
		{
			name:   "full house from nothing",
			dice:   Dice{1, 2, 3, 4, 5},
			held:   [5]bool{},
			target: FullHouse,
			want:   Dice{6, 6, 6, 5, 5},
		},
		{
			name:   "full house around held sixes uses fives",
			dice:   Dice{6, 1, 2, 3, 4},
			held:   heldMask(0),
			target: FullHouse,
			want:   Dice{6, 6, 6, 5, 5},
		},
		{
			name:   "full house from two held faces",
			dice:   Dice{2, 3, 3, 1, 1},
			held:   heldMask(0, 1, 2),
			target: FullHouse,
			want:   Dice{2, 3, 3, 3, 2},
		},
		{
			name:   "small straight fills the first feasible window",
			dice:   Dice{1, 2, 6, 6, 6},
			held:   heldMask(0, 1),
			target: SmallStraight,
			want:   Dice{1, 2, 3, 4, 1},
		},
		{
			name:   "small straight tolerates one outside die",
			dice:   Dice{6, 3, 1, 1, 1},
			held:   heldMask(0, 1),
			target: SmallStraight,
			want:   Dice{6, 3, 1, 2, 4},
		},
		{
			name:   "large straight from a held five",
			dice:   Dice{5, 1, 1, 1, 1},
			held:   heldMask(0),
			target: LargeStraight,
			want:   Dice{5, 1, 2, 3, 4},
		},
		{
			name:   "large straight with a held duplicate falls back",
			dice:   Dice{3, 3, 1, 1, 1},
			held:   heldMask(0, 1),
			target: LargeStraight,
			want:   Dice{3, 3, 1, 2, 3},
		},
		{
			name:   "chance maximises the sum",
			dice:   Dice{1, 2, 3, 4, 5},
			held:   heldMask(0),
			target: Chance,
			want:   Dice{1, 6, 6, 6, 6},
		},
	}

	r := NewRoller(&fixedSource{values: []int{0}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Guaranteed(tt.dice, tt.held, tt.target)
			assert.Equal(t, tt.want, got)
			for i := range got {
				if tt.held[i] {
					assert.Equal(t, tt.dice[i], got[i], "held die %d changed", i)
				}
			}
		})
	}
}

func TestGuaranteed_YahtzeeFromNothingScores50(t *testing.T) {
	r := NewRoller(&fixedSource{values: []int{3}})
	d := r.Guaranteed(Dice{1, 2, 3, 4, 5}, [5]bool{}, Yahtzee)
	assert.Equal(t, Dice{4, 4, 4, 4, 4}, d)
	assert.Equal(t, 50, Score(d, Yahtzee))
}

func TestGuaranteed_FeasibleTargetsScore(t *testing.T) {
	r := NewRoller(nil)
	start := Dice{2, 3, 4, 6, 1}
	held := heldMask(0, 1)
	for _, c := range Achievable(start, held, Scorecard{}) {
		got := r.Guaranteed(start, held, c)
		if c.IsUpper() {
			assert.GreaterOrEqual(t, Score(got, c), 3*c.Face(), "category %s", c)
			continue
		}
		assert.Positive(t, Score(got, c), "category %s with %v", c, got)
	}
}

func TestAchievable_Order(t *testing.T) {
	got := Achievable(Dice{1, 1, 1, 1, 1}, [5]bool{}, Scorecard{})
	assert.Equal(t, Categories, got)
}

func TestAchievable_SkipsScored(t *testing.T) {
	var card Scorecard
	card.Set(Ones, 2)
	card.Set(Chance, 22)
	got := Achievable(Dice{1, 1, 1, 1, 1}, [5]bool{}, card)
	assert.NotContains(t, got, Ones)
	assert.NotContains(t, got, Chance)
	assert.Equal(t, Twos, got[0])
}

func TestAchievable_WithHolds(t *testing.T) {
	// three held fives, two free dice
	got := Achievable(Dice{5, 5, 5, 2, 3}, heldMask(0, 1, 2), Scorecard{})
	assert.Equal(t, []Category{
		Fives, ThreeOfAKind, FourOfAKind, FullHouse, Yahtzee, Chance,
	}, got)
}

func TestAchievable_MixedHoldsRuleOutYahtzee(t *testing.T) {
	got := Achievable(Dice{1, 2, 3, 4, 6}, heldMask(0, 1, 2, 3), Scorecard{})
	assert.Equal(t, []Category{SmallStraight, LargeStraight, Chance}, got)
}

func TestHints_Labels(t *testing.T) {
	hints := Hints(Dice{5, 5, 5, 2, 3}, heldMask(0, 1, 2), Scorecard{})
	require.NotEmpty(t, hints)
	assert.Equal(t, Hint{Category: Fives, Label: "Fives (25 pts)"}, hints[0])
	assert.Equal(t, "Chance (30 pts)", hints[len(hints)-1].Label)
}

func TestGameState_ResetTurn(t *testing.T) {
	now := time.Now()
	g := NewGameState(now)
	g.Dice = Dice{6, 5, 4, 3, 2}
	g.Held = heldMask(1)
	g.RollsLeft = 0
	g.IsRolling = true

	later := now.Add(time.Minute)
	g.ResetTurn(later)
	assert.Equal(t, Dice{1, 1, 1, 1, 1}, g.Dice)
	assert.Equal(t, [5]bool{}, g.Held)
	assert.Equal(t, RollsPerTurn, g.RollsLeft)
	assert.False(t, g.IsRolling)
	assert.Equal(t, later, g.TurnStartTime)
}

func TestGameState_CloneCopiesWinner(t *testing.T) {
	g := NewGameState(time.Now())
	g.Winner = &Winner{PlayerID: "p1", Score: 200}
	c := g.Clone()
	c.Winner.Score = 1
	assert.Equal(t, 200, g.Winner.Score)
}
