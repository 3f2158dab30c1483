// Package merchant holds the shared offer catalog and the points redemption
// rules of the merchant economy.
package merchant

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientBalance = errors.New("insufficient points balance")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrInvalidOffer        = errors.New("offer must have an id and a positive cost")
)

// Offer is a merchant reward. The redemption counter is shared by every
// account and updated atomically.
type Offer struct {
	ID         string
	Merchant   string
	Title      string
	CostPoints int64

	redemptions atomic.Int64
}

// Redemptions returns how many times the offer has been redeemed.
func (o *Offer) Redemptions() int64 {
	return o.redemptions.Load()
}

// Redemption records a single successful redemption by an account.
type Redemption struct {
	ID         uuid.UUID
	OfferID    string
	CostPoints int64
	RedeemedAt time.Time
}

// Catalog is a read-mostly set of offers.
type Catalog struct {
	mu     sync.RWMutex
	offers map[string]*Offer
}

// OfferSpec is the serialised form of an offer in a catalog file.
type OfferSpec struct {
	ID          string `json:"id"`
	Merchant    string `json:"merchant"`
	Title       string `json:"title"`
	CostPoints  int64  `json:"cost_points"`
	Redemptions int64  `json:"redemptions"`
}

// DefaultOffers seeds the catalog when no file is configured.
var DefaultOffers = []OfferSpec{
	{ID: "cine-2x1", Merchant: "Cineplanet", Title: "2x1 en entradas", CostPoints: 800},
	{ID: "cafe-free", Merchant: "Tostaduría Bisetti", Title: "Café americano gratis", CostPoints: 300},
	{ID: "gym-month", Merchant: "Smart Fit", Title: "Un mes de membresía", CostPoints: 2000},
	{ID: "books-20", Merchant: "Crisol", Title: "20% en libros", CostPoints: 1200},
}

func NewCatalog(specs []OfferSpec) (*Catalog, error) {
	c := &Catalog{offers: make(map[string]*Offer, len(specs))}

	for _, s := range specs {
		if s.ID == "" || s.CostPoints <= 0 {
			return nil, fmt.Errorf("offer %q: %w", s.ID, ErrInvalidOffer)
		}

		o := &Offer{ID: s.ID, Merchant: s.Merchant, Title: s.Title, CostPoints: s.CostPoints}
		o.redemptions.Store(s.Redemptions)
		c.offers[s.ID] = o
	}

	return c, nil
}

// ReadOffers decodes a JSON array of offers.
func ReadOffers(r io.Reader) ([]OfferSpec, error) {
	var specs []OfferSpec
	if err := json.NewDecoder(r).Decode(&specs); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	return specs, nil
}

func (c *Catalog) Get(id string) (*Offer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	o, ok := c.offers[id]
	if !ok {
		return nil, ErrOfferNotFound
	}

	return o, nil
}

// List returns the offers ordered by cost, then id.
func (c *Catalog) List() []*Offer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Offer, 0, len(c.offers))
	for _, o := range c.offers {
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CostPoints != out[j].CostPoints {
			return out[i].CostPoints < out[j].CostPoints
		}

		return out[i].ID < out[j].ID
	})

	return out
}

// Redeem checks balance >= cost and, only then, bumps the offer's counter
// and returns the new balance. On failure nothing is mutated. The caller must
// hold the account's lock so the balance check and the debit are atomic.
func (c *Catalog) Redeem(balance int64, offerID string, now time.Time) (int64, *Redemption, error) {
	o, err := c.Get(offerID)
	if err != nil {
		return balance, nil, err
	}

	if balance < o.CostPoints {
		return balance, nil, ErrInsufficientBalance
	}

	o.redemptions.Add(1)

	return balance - o.CostPoints, &Redemption{
		ID:         uuid.New(),
		OfferID:    o.ID,
		CostPoints: o.CostPoints,
		RedeemedAt: now,
	}, nil
}

// Revert undoes the counter bump of a redemption whose persistence failed.
func (c *Catalog) Revert(r *Redemption) {
	o, err := c.Get(r.OfferID)
	if err != nil {
		return
	}

	o.redemptions.Add(-1)
}
