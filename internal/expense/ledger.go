package expense

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the expense collection of a single account. It is not safe for
// concurrent use; the account engine serialises access per account.
type Ledger struct {
	records []*Record
}

// NewLedger builds a ledger from already-stored records.
func NewLedger(records []*Record) *Ledger {
	l := &Ledger{records: make([]*Record, 0, len(records))}
	for _, r := range records {
		cp := *r
		l.records = append(l.records, &cp)
	}

	return l
}

// Append validates the candidate, assigns an id and stores the record with
// its derived fields computed.
func (l *Ledger) Append(c Candidate, now time.Time) (*Record, error) {
	if c.Category == "" {
		c.Category = CategoryOther
	}

	if err := validate(c.Amount, c.Category); err != nil {
		return nil, err
	}

	if c.Source == "" {
		c.Source = SourceClassifier
	}

	date := c.Date
	if date.IsZero() {
		date = now
	}

	r := &Record{
		ID:         uuid.New(),
		Merchant:   c.Merchant,
		Amount:     c.Amount,
		Date:       date,
		Category:   c.Category,
		IsFormal:   c.IsFormal,
		Source:     c.Source,
		Confidence: c.Confidence,
		CreatedAt:  now,
	}
	computeDerived(r)

	l.records = append(l.records, r)

	return r, nil
}

// Remove deletes the record and returns it.
func (l *Ledger) Remove(id uuid.UUID) (*Record, error) {
	for i, r := range l.records {
		if r.ID != id {
			continue
		}

		l.records = append(l.records[:i], l.records[i+1:]...)

		return r, nil
	}

	return nil, ErrNotFound
}

// Edit applies the patch to the record and recomputes its derived fields.
// It returns a copy of the record as it was before the edit and the updated
// record. PointsEarned is left untouched; callers re-attach points.
func (l *Ledger) Edit(id uuid.UUID, p Patch) (Record, *Record, error) {
	r := l.find(id)
	if r == nil {
		return Record{}, nil, ErrNotFound
	}

	next := *r

	if p.Merchant != nil {
		next.Merchant = *p.Merchant
	}

	if p.Amount != nil {
		next.Amount = *p.Amount
	}

	if p.Category != nil {
		next.Category = *p.Category
	}

	if p.IsFormal != nil {
		next.IsFormal = *p.IsFormal
	}

	if p.Date != nil {
		next.Date = *p.Date
	}

	if err := validate(next.Amount, next.Category); err != nil {
		return Record{}, nil, err
	}

	computeDerived(&next)

	prev := *r
	*r = next

	return prev, r, nil
}

// Get returns the record with the given id.
func (l *Ledger) Get(id uuid.UUID) (*Record, error) {
	r := l.find(id)
	if r == nil {
		return nil, ErrNotFound
	}

	return r, nil
}

func (l *Ledger) find(id uuid.UUID) *Record {
	for _, r := range l.records {
		if r.ID == id {
			return r
		}
	}

	return nil
}

// Records returns the records in insertion order. The slice is a copy; the
// records are shared.
func (l *Ledger) Records() []*Record {
	out := make([]*Record, len(l.records))
	copy(out, l.records)

	return out
}

func (l *Ledger) Count() int {
	return len(l.records)
}

// Total is the sum of all amounts.
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.records {
		total = total.Add(r.Amount)
	}

	return total
}

// FormalTotal is the sum of formal amounts.
func (l *Ledger) FormalTotal() decimal.Decimal {
	total := decimal.Zero

	for _, r := range l.records {
		if !r.IsFormal {
			continue
		}

		total = total.Add(r.Amount)
	}

	return total
}

// SpentIn sums the amounts of records in the given categories, or of the
// whole ledger when categories is empty.
func (l *Ledger) SpentIn(categories []Category) decimal.Decimal {
	if len(categories) == 0 {
		return l.Total()
	}

	set := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}

	total := decimal.Zero

	for _, r := range l.records {
		if _, ok := set[r.Category]; !ok {
			continue
		}

		total = total.Add(r.Amount)
	}

	return total
}

// Between returns a view of the records dated in [from, to). The view shares
// records with l and must not be mutated.
func (l *Ledger) Between(from, to time.Time) *Ledger {
	view := &Ledger{}

	for _, r := range l.records {
		if r.Date.Before(from) || !r.Date.Before(to) {
			continue
		}

		view.records = append(view.records, r)
	}

	return view
}

// DailyTotals returns the amount spent on each of the `days` calendar days
// ending at (and including) the day of `end`. Index 0 is the oldest day.
// When categories are given only those are summed.
func (l *Ledger) DailyTotals(end time.Time, days int, categories ...Category) []decimal.Decimal {
	if days <= 0 {
		return nil
	}

	set := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}

	totals := make([]decimal.Decimal, days)
	for i := range totals {
		totals[i] = decimal.Zero
	}

	last := dayStart(end)
	first := last.AddDate(0, 0, -(days - 1))

	for _, r := range l.records {
		if len(set) > 0 {
			if _, ok := set[r.Category]; !ok {
				continue
			}
		}

		d := dayStart(r.Date.In(end.Location()))
		if d.Before(first) || d.After(last) {
			continue
		}

		idx := daysBetween(first, d)
		if idx < 0 || idx >= days {
			continue
		}

		totals[idx] = totals[idx].Add(r.Amount)
	}

	return totals
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days, which is not the same as dividing a
// duration by 24h across DST changes.
func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	return int(b.Sub(a).Hours() / 24)
}
