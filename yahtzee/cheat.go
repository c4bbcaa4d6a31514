package yahtzee

import (
	"fmt"
	"strings"
)

const cheatNameFragment = "sander"

// CheatEnabled reports whether guaranteed rolls are available to a player with this name.
func CheatEnabled(name string) bool {
	return strings.Contains(strings.ToLower(name), cheatNameFragment)
}

var (
	smallStraightWindows = [][]int{{1, 2, 3, 4}, {2, 3, 4, 5}, {3, 4, 5, 6}}
	largeStraightWindows = [][]int{{1, 2, 3, 4, 5}, {2, 3, 4, 5, 6}}
	fullHouseFallback    = []int{6, 6, 6, 5, 5}
)

type faceCount struct {
	face  int
	count int
}

// countFaces tallies held values keeping first-seen order.
func countFaces(values []int) []faceCount {
	var out []faceCount
	for _, v := range values {
		found := false
		for i := range out {
			if out[i].face == v {
				out[i].count++
				found = true
				break
			}
		}
		if !found {
			out = append(out, faceCount{face: v, count: 1})
		}
	}
	return out
}

func repeat(face, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = face
	}
	return out
}

func contains(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func truncate(values []int, n int) []int {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// nOfAKind fills toward n copies of the most frequent held face, then 6s.
func nOfAKind(held []int, unheld, n int) ([]int, bool) {
	target, have := 6, 0
	for _, fc := range countFaces(held) {
		if fc.count > have {
			target, have = fc.face, fc.count
		}
	}
	need := n - have
	if need < 0 {
		need = 0
	}
	if need > unheld {
		return nil, false
	}
	out := repeat(target, need)
	return append(out, repeat(6, unheld-need)...), true
}

func fullHouse(held []int, unheld int) ([]int, bool) {
	faces := countFaces(held)
	switch len(faces) {
	case 0:
		return truncate(append([]int(nil), fullHouseFallback...), unheld), true
	case 1:
		fc := faces[0]
		switch {
		case fc.count == 5:
			return nil, true
		case fc.count == 4:
			return nil, false
		}
		other := 6
		if fc.face == 6 {
			other = 5
		}
		out := repeat(fc.face, 3-fc.count)
		pairs := unheld - len(out)
		if pairs > 2 {
			pairs = 2
		}
		return append(out, repeat(other, pairs)...), true
	case 2:
		hi, lo := faces[0], faces[1]
		if lo.count > hi.count {
			hi, lo = lo, hi
		}
		if hi.count > 3 || lo.count > 2 {
			return nil, false
		}
		out := append(repeat(hi.face, 3-hi.count), repeat(lo.face, 2-lo.count)...)
		if len(out) > unheld {
			return nil, false
		}
		return out, true
	}
	return nil, false
}

// straight returns the missing members of the first feasible window and that window.
func straight(held []int, unheld int, large bool) ([]int, []int, bool) {
	windows := smallStraightWindows
	if large {
		windows = largeStraightWindows
	}
	for _, w := range windows {
		var needed []int
		for _, v := range w {
			if !contains(held, v) {
				needed = append(needed, v)
			}
		}
		if len(needed) > unheld {
			continue
		}
		if large {
			if distinctWithin(held, w) {
				return needed, w, true
			}
			continue
		}
		extra := 0
		for _, v := range held {
			if !contains(w, v) {
				extra++
			}
		}
		if extra <= 1 {
			return needed, w, true
		}
	}
	return nil, nil, false
}

func distinctWithin(held, window []int) bool {
	seen := map[int]bool{}
	for _, v := range held {
		if !contains(window, v) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// yahtzeeFace returns the face every unheld die must show. Zero means any face will do.
func yahtzeeFace(held []int) (int, bool) {
	faces := countFaces(held)
	switch len(faces) {
	case 0:
		return 0, true
	case 1:
		return faces[0].face, true
	}
	return 0, false
}

func split(d Dice, held [5]bool) (values []int, unheld []int) {
	for i, v := range d {
		if held[i] {
			values = append(values, v)
		} else {
			unheld = append(unheld, i)
		}
	}
	return values, unheld
}

// Guaranteed 作弊模式：为未保留的骰子选择点数，使目标计分项成立
func (r *Roller) Guaranteed(d Dice, held [5]bool, target Category) Dice {
	values, slots := split(d, held)
	n := len(slots)

	var needed []int
	switch target {
	case Ones, Twos, Threes, Fours, Fives, Sixes:
		needed = repeat(target.Face(), n)
	case ThreeOfAKind, FourOfAKind:
		k := 3
		if target == FourOfAKind {
			k = 4
		}
		var ok bool
		if needed, ok = nOfAKind(values, n, k); !ok {
			needed = repeat(6, n)
		}
	case FullHouse:
		var ok bool
		if needed, ok = fullHouse(values, n); !ok {
			needed = truncate(append([]int(nil), fullHouseFallback...), n)
		}
	case SmallStraight, LargeStraight:
		large := target == LargeStraight
		missing, window, ok := straight(values, n, large)
		if ok {
			needed = append(missing, repeat(window[0], n-len(missing))...)
		} else if large {
			needed = truncate(append([]int(nil), largeStraightWindows[0]...), n)
		} else {
			needed = truncate(append([]int(nil), smallStraightWindows[0]...), n)
		}
	case Yahtzee:
		face, ok := yahtzeeFace(values)
		switch {
		case !ok:
			face = 6
		case face == 0:
			face = r.Face()
		}
		needed = repeat(face, n)
	case Chance:
		needed = repeat(6, n)
	default:
		return r.Roll(d, held)
	}

	for i, idx := range slots {
		if i < len(needed) {
			d[idx] = needed[i]
		} else {
			d[idx] = 6
		}
	}
	return d
}

// Hint is one entry of the achievable-category list.
type Hint struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
}

func hintLabel(c Category) string {
	switch c {
	case Ones, Twos, Threes, Fours, Fives, Sixes:
		return fmt.Sprintf("%s (%d pts)", c.Label(), c.Face()*5)
	case FullHouse:
		return fmt.Sprintf("%s (%d pts)", c.Label(), fullHousePoints)
	case SmallStraight:
		return fmt.Sprintf("%s (%d pts)", c.Label(), smallStraightPoints)
	case LargeStraight:
		return fmt.Sprintf("%s (%d pts)", c.Label(), largeStraightPoints)
	case Yahtzee:
		return fmt.Sprintf("YAHTZEE! (%d pts)", yahtzeePoints)
	case Chance:
		return fmt.Sprintf("%s (30 pts)", c.Label())
	}
	return c.Label()
}

// Achievable 返回在当前保留骰子下仍可达成的未计分项，按记分卡顺序排列
func Achievable(d Dice, held [5]bool, card Scorecard) []Category {
	values, slots := split(d, held)
	n := len(slots)

	var out []Category
	for _, c := range Categories {
		if card.IsScored(c) {
			continue
		}
		if reachable(c, values, n) {
			out = append(out, c)
		}
	}
	return out
}

func reachable(c Category, held []int, unheld int) bool {
	switch c {
	case Ones, Twos, Threes, Fours, Fives, Sixes:
		have := 0
		for _, v := range held {
			if v == c.Face() {
				have++
			}
		}
		return have+unheld >= 3
	case ThreeOfAKind:
		_, ok := nOfAKind(held, unheld, 3)
		return ok
	case FourOfAKind:
		_, ok := nOfAKind(held, unheld, 4)
		return ok
	case FullHouse:
		_, ok := fullHouse(held, unheld)
		return ok
	case SmallStraight:
		_, _, ok := straight(held, unheld, false)
		return ok
	case LargeStraight:
		_, _, ok := straight(held, unheld, true)
		return ok
	case Yahtzee:
		_, ok := yahtzeeFace(held)
		return ok
	case Chance:
		return true
	}
	return false
}

// Hints labels the achievable categories for display.
func Hints(d Dice, held [5]bool, card Scorecard) []Hint {
	cats := Achievable(d, held, card)
	out := make([]Hint, 0, len(cats))
	for _, c := range cats {
		out = append(out, Hint{Category: c, Label: hintLabel(c)})
	}
	return out
}
