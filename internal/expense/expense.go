package expense

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrInvalidCategory = errors.New("unknown expense category")
	ErrNotFound        = errors.New("expense not found")
)

// Category classifies an expense for projections and reports.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTransport     Category = "transport"
	CategoryHealth        Category = "health"
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategoryHousing       Category = "housing"
	CategoryServices      Category = "services"
	CategoryShopping      Category = "shopping"
	CategoryOther         Category = "other"
)

var categories = map[Category]struct{}{
	CategoryFood:          {},
	CategoryTransport:     {},
	CategoryHealth:        {},
	CategoryEducation:     {},
	CategoryEntertainment: {},
	CategoryHousing:       {},
	CategoryServices:      {},
	CategoryShopping:      {},
	CategoryOther:         {},
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Source records where an expense candidate came from.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceManual     Source = "manual"
	SourceImport     Source = "import"
)

var (
	// IGVRate is the tax credit recovered on a formal (invoiced) expense.
	IGVRate = decimal.RequireFromString("0.18")
	// LostSavingsRate is the opportunity cost attributed to an informal expense.
	LostSavingsRate = decimal.RequireFromString("0.10")
)

// Record is a single captured expense. Derived fields (IGV, LostSavings) are
// computed by the ledger and must not be set by callers.
type Record struct {
	ID           uuid.UUID
	Merchant     string
	Amount       decimal.Decimal
	Date         time.Time
	Category     Category
	IsFormal     bool
	IGV          decimal.Decimal
	LostSavings  decimal.Decimal
	PointsEarned int64
	Source       Source
	Confidence   float64
	CreatedAt    time.Time
}

// Candidate is the shape delivered by the external classification service.
type Candidate struct {
	Merchant   string
	Amount     decimal.Decimal
	Category   Category
	IsFormal   bool
	Date       time.Time
	Source     Source
	Confidence float64
}

// Patch carries the editable fields of a record. Nil fields are left as-is.
type Patch struct {
	Merchant *string
	Amount   *decimal.Decimal
	Category *Category
	IsFormal *bool
	Date     *time.Time
}

// ManualFallback turns a candidate whose classification failed into a
// low-confidence manual entry so the append is never blocked.
func ManualFallback(c Candidate) Candidate {
	c.Category = CategoryOther
	c.IsFormal = false
	c.Source = SourceManual
	c.Confidence = 0

	return c
}

// computeDerived resets and recomputes the tax fields of r.
func computeDerived(r *Record) {
	r.IGV = decimal.Zero
	r.LostSavings = decimal.Zero

	if r.IsFormal {
		r.IGV = r.Amount.Mul(IGVRate)
		return
	}

	r.LostSavings = r.Amount.Mul(LostSavingsRate)
}

func validate(amount decimal.Decimal, category Category) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if !category.Valid() {
		return ErrInvalidCategory
	}

	return nil
}
