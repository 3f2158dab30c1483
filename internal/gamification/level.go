package gamification

import (
	"errors"
	"sort"
)

var ErrInvalidLevelTable = errors.New("level thresholds must start at 0 and be strictly increasing")

// Level is an ordinal rank derived from lifetime points.
type Level struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Threshold int64  `json:"threshold"`
}

// LevelTable maps lifetime points to a level. Thresholds are sorted
// ascending and the first one is 0, so every point total has a level.
type LevelTable struct {
	levels []Level
}

// DefaultLevels is the product's standard progression.
var DefaultLevels = []Level{
	{Number: 1, Name: "Semilla", Threshold: 0},
	{Number: 2, Name: "Brote", Threshold: 500},
	{Number: 3, Name: "Retoño", Threshold: 1500},
	{Number: 4, Name: "Árbol", Threshold: 3000},
	{Number: 5, Name: "Bosque", Threshold: 6000},
}

func NewLevelTable(levels []Level) (*LevelTable, error) {
	if len(levels) == 0 || levels[0].Threshold != 0 {
		return nil, ErrInvalidLevelTable
	}

	for i := 1; i < len(levels); i++ {
		if levels[i].Threshold <= levels[i-1].Threshold || levels[i].Number <= levels[i-1].Number {
			return nil, ErrInvalidLevelTable
		}
	}

	cp := make([]Level, len(levels))
	copy(cp, levels)

	return &LevelTable{levels: cp}, nil
}

// DefaultLevelTable returns a table built from DefaultLevels.
func DefaultLevelTable() *LevelTable {
	t, err := NewLevelTable(DefaultLevels)
	if err != nil {
		panic(err)
	}

	return t
}

// For returns the highest level whose threshold is <= lifetime.
func (t *LevelTable) For(lifetime int64) Level {
	i := sort.Search(len(t.levels), func(i int) bool {
		return t.levels[i].Threshold > lifetime
	})
	if i == 0 {
		return t.levels[0]
	}

	return t.levels[i-1]
}

// Next returns the level after the one reached with lifetime points, if any.
func (t *LevelTable) Next(lifetime int64) (Level, bool) {
	cur := t.For(lifetime)
	for _, l := range t.levels {
		if l.Number > cur.Number {
			return l, true
		}
	}

	return Level{}, false
}

// Progress is the percentage of the way from the current level threshold to
// the next one. The top level always reports 100.
func (t *LevelTable) Progress(lifetime int64) float64 {
	cur := t.For(lifetime)

	next, ok := t.Next(lifetime)
	if !ok {
		return 100
	}

	span := next.Threshold - cur.Threshold

	return float64(lifetime-cur.Threshold) / float64(span) * 100
}
