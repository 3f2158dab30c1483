// Package gamification runs the points economy: how much an action earns,
// which level lifetime points reach, and how daily activity streaks evolve.
package gamification

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSkipBonus is the reward for deliberately skipping a discretionary
// expense.
const DefaultSkipBonus int64 = 15

// Progress is the gamification slice of a user profile.
type Progress struct {
	PointsBalance  int64
	LifetimePoints int64
	Level          int
	StreakCount    int
	LastActivity   time.Time
}

// LevelUp is emitted once when an award moves the profile to a new level.
type LevelUp struct {
	From Level `json:"from"`
	To   Level `json:"to"`
}

type Engine struct {
	policy    Policy
	levels    *LevelTable
	skipBonus int64
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithLevels(t *LevelTable) Option {
	return func(e *Engine) { e.levels = t }
}

func WithSkipBonus(points int64) Option {
	return func(e *Engine) { e.skipBonus = points }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		policy:    ReferencePolicy{},
		levels:    DefaultLevelTable(),
		skipBonus: DefaultSkipBonus,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) Levels() *LevelTable {
	return e.levels
}

// PointsFor delegates to the configured policy.
func (e *Engine) PointsFor(isFormal bool, amount decimal.Decimal) int64 {
	return e.policy.PointsFor(isFormal, amount)
}

// Award adds delta points to the balance and to lifetime points, then
// re-derives the level. A LevelUp is returned only when the level number
// differs from the one stored in p, so repeated awards within a level never
// re-fire it. Non-positive deltas leave p unchanged.
func (e *Engine) Award(p Progress, delta int64) (Progress, *LevelUp) {
	if delta <= 0 {
		return p, nil
	}

	prev := e.levelOf(p)

	p.PointsBalance += delta
	p.LifetimePoints += delta

	next := e.levels.For(p.LifetimePoints)
	p.Level = next.Number

	if next.Number == prev.Number {
		return p, nil
	}

	return p, &LevelUp{From: prev, To: next}
}

// Touch registers activity at now and updates the streak.
func (e *Engine) Touch(p Progress, now time.Time) Progress {
	p.StreakCount = UpdateStreak(p.LastActivity, p.StreakCount, now)
	p.LastActivity = now

	return p
}

// ExpenseCaptured awards the policy points for a new expense and records the
// activity. It returns the points attached to the expense.
func (e *Engine) ExpenseCaptured(p Progress, isFormal bool, amount decimal.Decimal, now time.Time) (Progress, int64, *LevelUp) {
	p = e.Touch(p, now)
	points := e.PointsFor(isFormal, amount)
	p, up := e.Award(p, points)

	return p, points, up
}

// SkipBonus rewards not recording a discretionary expense. It goes through
// the same award and streak path as an expense but touches no ledger.
func (e *Engine) SkipBonus(p Progress, now time.Time) (Progress, int64, *LevelUp) {
	p = e.Touch(p, now)
	p, up := e.Award(p, e.skipBonus)

	return p, e.skipBonus, up
}

func (e *Engine) levelOf(p Progress) Level {
	if p.Level == 0 {
		return e.levels.For(p.LifetimePoints)
	}

	for _, l := range e.levels.levels {
		if l.Number == p.Level {
			return l
		}
	}

	return e.levels.For(p.LifetimePoints)
}
