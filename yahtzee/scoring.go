package yahtzee

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Category 计分项
type Category string

const (
	Ones          Category = "ones"
	Twos          Category = "twos"
	Threes        Category = "threes"
	Fours         Category = "fours"
	Fives         Category = "fives"
	Sixes         Category = "sixes"
	ThreeOfAKind  Category = "threeOfAKind"
	FourOfAKind   Category = "fourOfAKind"
	FullHouse     Category = "fullHouse"
	SmallStraight Category = "smallStraight"
	LargeStraight Category = "largeStraight"
	Yahtzee       Category = "yahtzee"
	Chance        Category = "chance"
)

const (
	UpperBonusThreshold = 63
	UpperBonusPoints    = 35
	YahtzeeBonusPoints  = 100

	fullHousePoints     = 25
	smallStraightPoints = 30
	largeStraightPoints = 40
	yahtzeePoints       = 50
)

// Categories lists every category in scorecard order.
var Categories = []Category{
	Ones, Twos, Threes, Fours, Fives, Sixes,
	ThreeOfAKind, FourOfAKind, FullHouse, SmallStraight, LargeStraight, Yahtzee, Chance,
}

var categoryLabels = map[Category]string{
	Ones:          "Ones",
	Twos:          "Twos",
	Threes:        "Threes",
	Fours:         "Fours",
	Fives:         "Fives",
	Sixes:         "Sixes",
	ThreeOfAKind:  "3 of a Kind",
	FourOfAKind:   "4 of a Kind",
	FullHouse:     "Full House",
	SmallStraight: "Small Straight",
	LargeStraight: "Large Straight",
	Yahtzee:       "Yahtzee",
	Chance:        "Chance",
}

var categoryIndex = func() map[Category]int {
	idx := make(map[Category]int, len(Categories))
	for i, c := range Categories {
		idx[c] = i
	}
	return idx
}()

// Valid reports whether c is one of the thirteen scorecard categories.
func (c Category) Valid() bool {
	_, ok := categoryIndex[c]
	return ok
}

// Label returns the display name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Face returns the die face of an upper-section category, or 0 for lower-section ones.
func (c Category) Face() int {
	switch c {
	case Ones:
		return 1
	case Twos:
		return 2
	case Threes:
		return 3
	case Fours:
		return 4
	case Fives:
		return 5
	case Sixes:
		return 6
	}
	return 0
}

// IsUpper reports whether c belongs to the upper section.
func (c Category) IsUpper() bool {
	return c.Face() != 0
}

// Dice 五颗骰子的点数
type Dice [5]int

// Sum returns the arithmetic sum of the five faces.
func (d Dice) Sum() int {
	total := 0
	for _, v := range d {
		total += v
	}
	return total
}

func (d Dice) counts() [7]int {
	var c [7]int
	for _, v := range d {
		if v >= 1 && v <= 6 {
			c[v]++
		}
	}
	return c
}

func (d Dice) distinctSorted() []int {
	c := d.counts()
	out := make([]int, 0, 5)
	for face := 1; face <= 6; face++ {
		if c[face] > 0 {
			out = append(out, face)
		}
	}
	return out
}

// IsYahtzee reports whether all five dice share one face.
func (d Dice) IsYahtzee() bool {
	for _, v := range d[1:] {
		if v != d[0] {
			return false
		}
	}
	return true
}

// Score 计算骰子在指定计分项下的得分，未知计分项返回 0
func Score(d Dice, c Category) int {
	counts := d.counts()
	switch c {
	case Ones, Twos, Threes, Fours, Fives, Sixes:
		face := c.Face()
		return counts[face] * face
	case ThreeOfAKind:
		if maxCount(counts) >= 3 {
			return d.Sum()
		}
	case FourOfAKind:
		if maxCount(counts) >= 4 {
			return d.Sum()
		}
	case FullHouse:
		if isFullHouse(counts) {
			return fullHousePoints
		}
	case SmallStraight:
		if hasRun(d.distinctSorted(), 4) {
			return smallStraightPoints
		}
	case LargeStraight:
		if hasRun(d.distinctSorted(), 5) {
			return largeStraightPoints
		}
	case Yahtzee:
		if d.IsYahtzee() {
			return yahtzeePoints
		}
	case Chance:
		return d.Sum()
	}
	return 0
}

func maxCount(counts [7]int) int {
	m := 0
	for _, n := range counts {
		if n > m {
			m = n
		}
	}
	return m
}

// five of a kind counts as a full house
func isFullHouse(counts [7]int) bool {
	three, two := false, false
	for _, n := range counts {
		switch n {
		case 5:
			return true
		case 3:
			three = true
		case 2:
			two = true
		}
	}
	return three && two
}

func hasRun(sorted []int, length int) bool {
	run := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1]+1 {
			run++
			if run >= length {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// Scorecard 记分卡: 13 个计分项（未填为空）以及 Yahtzee 奖励累计
type Scorecard struct {
	scores       [13]int
	filled       [13]bool
	YahtzeeBonus int
}

// Get returns the recorded score for c and whether it has been scored.
func (s Scorecard) Get(c Category) (int, bool) {
	i, ok := categoryIndex[c]
	if !ok {
		return 0, false
	}
	return s.scores[i], s.filled[i]
}

// IsScored reports whether c has already been written.
func (s Scorecard) IsScored(c Category) bool {
	_, ok := s.Get(c)
	return ok
}

// Set writes a score into the slot for c. Unknown categories are ignored.
func (s *Scorecard) Set(c Category, points int) {
	i, ok := categoryIndex[c]
	if !ok {
		return
	}
	s.scores[i] = points
	s.filled[i] = true
}

// Complete reports whether all thirteen slots have been scored.
func (s Scorecard) Complete() bool {
	for _, f := range s.filled {
		if !f {
			return false
		}
	}
	return true
}

// UpperSum is the sum of the six upper-section slots.
func (s Scorecard) UpperSum() int {
	total := 0
	for i := 0; i < 6; i++ {
		total += s.scores[i]
	}
	return total
}

// UpperBonus returns 35 once the upper section reaches 63.
func (s Scorecard) UpperBonus() int {
	if s.UpperSum() >= UpperBonusThreshold {
		return UpperBonusPoints
	}
	return 0
}

// Total is every slot plus the upper bonus plus the yahtzee bonus accumulator.
func (s Scorecard) Total() int {
	total := 0
	for _, v := range s.scores {
		total += v
	}
	return total + s.UpperBonus() + s.YahtzeeBonus
}

// CanScoreYahtzeeBonus reports whether scoring with d earns another 100 points:
// the dice are a yahtzee and the yahtzee slot already holds exactly 50.
func CanScoreYahtzeeBonus(d Dice, s Scorecard) bool {
	v, ok := s.Get(Yahtzee)
	return ok && v == yahtzeePoints && d.IsYahtzee()
}

// MarshalJSON renders the card as a flat object with null for unscored slots.
func (s Scorecard) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(Categories)+1)
	for i, c := range Categories {
		if s.filled[i] {
			out[string(c)] = s.scores[i]
		} else {
			out[string(c)] = nil
		}
	}
	out["yahtzeeBonus"] = s.YahtzeeBonus
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat object form written by MarshalJSON.
func (s *Scorecard) UnmarshalJSON(data []byte) error {
	var raw map[string]*int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode scorecard: %w", err)
	}
	*s = Scorecard{}
	for i, c := range Categories {
		if v := raw[string(c)]; v != nil {
			s.scores[i] = *v
			s.filled[i] = true
		}
	}
	if b := raw["yahtzeeBonus"]; b != nil {
		s.YahtzeeBonus = *b
	}
	return nil
}

// GobEncode 供 net/rpc 使用，复用 JSON 形式
func (s Scorecard) GobEncode() ([]byte, error) {
	return s.MarshalJSON()
}

func (s *Scorecard) GobDecode(data []byte) error {
	return s.UnmarshalJSON(data)
}

// Standing is one player's final total, used to pick the winner.
type Standing struct {
	PlayerID string
	Name     string
	Score    int
}

// Leader returns the standing with the highest score. Ties keep the earliest entry.
func Leader(standings []Standing) (Standing, bool) {
	if len(standings) == 0 {
		return Standing{}, false
	}
	best := standings[0]
	for _, s := range standings[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best, true
}

// Ranked returns the standings ordered by score, keeping list order for ties.
func Ranked(standings []Standing) []Standing {
	out := append([]Standing(nil), standings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
