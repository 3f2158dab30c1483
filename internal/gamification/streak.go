package gamification

import "time"

// UpdateStreak returns the streak count after activity at `now`, given the
// previous activity date and count. Days are calendar days in now's location:
//
//	same day        -> unchanged
//	next day        -> +1
//	gap over 1 day  -> restart at 1
//
// A zero lastActivity (no prior activity) starts the streak at 1.
func UpdateStreak(lastActivity time.Time, current int, now time.Time) int {
	if lastActivity.IsZero() {
		return 1
	}

	gap := calendarDays(lastActivity.In(now.Location()), now)

	switch {
	case gap <= 0:
		// Same day, or an out-of-order event stamped before the last one.
		return current
	case gap == 1:
		return current + 1
	default:
		return 1
	}
}

// calendarDays counts midnights crossed between a and b by comparing dates
// only, so a 23h or 25h DST day still counts as one.
func calendarDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	return int(db.Sub(da) / (24 * time.Hour))
}
