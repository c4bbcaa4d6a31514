package yahtzee

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		dice     Dice
		category Category
		want     int
	}{
		{"ones counts only ones", Dice{1, 1, 2, 3, 1}, Ones, 3},
		{"sixes", Dice{6, 6, 6, 2, 1}, Sixes, 18},
		{"upper with no match", Dice{2, 2, 3, 4, 5}, Ones, 0},
		{"three of a kind sums all dice", Dice{3, 3, 3, 4, 5}, ThreeOfAKind, 18},
		{"three of a kind missing", Dice{3, 3, 2, 4, 5}, ThreeOfAKind, 0},
		{"four of a kind", Dice{2, 2, 2, 2, 6}, FourOfAKind, 14},
		{"four of a kind with only three", Dice{2, 2, 2, 5, 6}, FourOfAKind, 0},
		{"full house", Dice{2, 2, 3, 3, 3}, FullHouse, 25},
		{"yahtzee is a full house", Dice{1, 1, 1, 1, 1}, FullHouse, 25},
		{"three distinct faces are not a house", Dice{1, 1, 2, 2, 3}, FullHouse, 0},
		{"four plus one is not a house", Dice{4, 4, 4, 4, 2}, FullHouse, 0},
		{"small straight low", Dice{1, 2, 3, 4, 6}, SmallStraight, 30},
		{"small straight with duplicate", Dice{3, 4, 5, 3, 6}, SmallStraight, 30},
		{"small straight gap", Dice{1, 2, 3, 5, 6}, SmallStraight, 0},
		{"large straight low", Dice{1, 2, 3, 4, 5}, LargeStraight, 40},
		{"large straight high unsorted", Dice{6, 2, 5, 3, 4}, LargeStraight, 40},
		{"large straight counts as small", Dice{2, 3, 4, 5, 6}, SmallStraight, 30},
		{"no large straight", Dice{1, 2, 3, 4, 6}, LargeStraight, 0},
		{"yahtzee", Dice{1, 1, 1, 1, 1}, Yahtzee, 50},
		{"no yahtzee", Dice{1, 1, 1, 1, 2}, Yahtzee, 0},
		{"chance", Dice{1, 2, 3, 4, 6}, Chance, 16},
		{"unknown category", Dice{6, 6, 6, 6, 6}, Category("bogus"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.dice, tt.category))
		})
	}
}

func TestScore_AllOutcomes(t *testing.T) {
	var d Dice
	for a := 1; a <= 6; a++ {
		for b := 1; b <= 6; b++ {
			for c := 1; c <= 6; c++ {
				for e := 1; e <= 6; e++ {
					for f := 1; f <= 6; f++ {
						d = Dice{a, b, c, e, f}
						for _, cat := range Categories {
							got := Score(d, cat)
							if got < 0 {
								t.Fatalf("negative score %d for %v in %s", got, d, cat)
							}
							if again := Score(d, cat); again != got {
								t.Fatalf("score not deterministic for %v in %s", d, cat)
							}
						}
						if Score(d, Chance) != a+b+c+e+f {
							t.Fatalf("chance for %v should be the face sum", d)
						}
					}
				}
			}
		}
	}
}

func TestScorecard_UpperBonus(t *testing.T) {
	var card Scorecard
	card.Set(Ones, 5)
	card.Set(Twos, 10)
	card.Set(Threes, 15)
	card.Set(Fours, 20)
	card.Set(Fives, 20)
	card.Set(Sixes, 5)

	assert.Equal(t, 75, card.UpperSum())
	assert.Equal(t, UpperBonusPoints, card.UpperBonus())
	assert.Equal(t, 75+35, card.Total())
}

func TestScorecard_NoUpperBonusBelowThreshold(t *testing.T) {
	var card Scorecard
	card.Set(Sixes, 30)
	card.Set(Fives, 25)
	card.Set(Fours, 4)
	assert.Equal(t, 59, card.Total())
}

func TestScorecard_TotalIncludesYahtzeeBonus(t *testing.T) {
	var card Scorecard
	card.Set(Yahtzee, 50)
	card.Set(Chance, 20)
	card.YahtzeeBonus = 200
	assert.Equal(t, 270, card.Total())
}

func TestScorecard_Complete(t *testing.T) {
	var card Scorecard
	for i, c := range Categories {
		require.False(t, card.Complete(), "card complete after %d slots", i)
		card.Set(c, 0)
	}
	assert.True(t, card.Complete())
}

func TestScorecard_ZeroIsScored(t *testing.T) {
	var card Scorecard
	assert.False(t, card.IsScored(Yahtzee))
	card.Set(Yahtzee, 0)
	assert.True(t, card.IsScored(Yahtzee))
}

func TestCanScoreYahtzeeBonus(t *testing.T) {
	var card Scorecard
	assert.False(t, CanScoreYahtzeeBonus(Dice{4, 4, 4, 4, 4}, card), "yahtzee slot still empty")

	card.Set(Yahtzee, 0)
	assert.False(t, CanScoreYahtzeeBonus(Dice{4, 4, 4, 4, 4}, card), "scratched yahtzee earns no bonus")

	card.Set(Yahtzee, 50)
	assert.True(t, CanScoreYahtzeeBonus(Dice{4, 4, 4, 4, 4}, card))
	assert.False(t, CanScoreYahtzeeBonus(Dice{4, 4, 4, 4, 3}, card))
}

func TestScorecard_JSON(t *testing.T) {
	var card Scorecard
	card.Set(Ones, 3)
	card.Set(Chance, 0)
	card.YahtzeeBonus = 100

	data, err := json.Marshal(card)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Nil(t, raw["twos"])
	assert.EqualValues(t, 3, raw["ones"])
	assert.EqualValues(t, 0, raw["chance"])
	assert.EqualValues(t, 100, raw["yahtzeeBonus"])

	var back Scorecard
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, card, back)
}

func TestLeader_TiesKeepFirst(t *testing.T) {
	w, ok := Leader([]Standing{
		{PlayerID: "a", Score: 120},
		{PlayerID: "b", Score: 150},
		{PlayerID: "c", Score: 150},
	})
	require.True(t, ok)
	assert.Equal(t, "b", w.PlayerID)

	_, ok = Leader(nil)
	assert.False(t, ok)
}

func TestCategory_Helpers(t *testing.T) {
	assert.True(t, Fives.IsUpper())
	assert.Equal(t, 5, Fives.Face())
	assert.False(t, Chance.IsUpper())
	assert.True(t, FullHouse.Valid())
	assert.False(t, Category("yahtzeeBonus").Valid())
	assert.Equal(t, "Full House", FullHouse.Label())
}
