package account

import (
	"context"
	"fmt"

	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

// Redeem spends points on a catalog offer. The balance check, the debit and
// the offer counter move together or not at all.
func (e *Engine) Redeem(ctx context.Context, accountID, offerID string) (merchant.Redemption, Profile, error) {
	var (
		out     merchant.Redemption
		profile Profile
	)

	err := e.mutate(ctx, accountID, func(next *state, tx Tx, ch *change) error {
		now := e.clock()

		balance, r, err := e.catalog.Redeem(next.profile.PointsBalance, offerID, now)
		if err != nil {
			return err
		}

		ch.onAbort = append(ch.onAbort, func() { e.catalog.Revert(r) })

		next.profile.PointsBalance = balance
		next.redemptions = append(next.redemptions, r)

		if err := tx.SaveRedemption(ctx, accountID, r); err != nil {
			return fmt.Errorf("saving redemption: %w", err)
		}

		if err := e.saveProfile(ctx, tx, next, &profile); err != nil {
			return err
		}

		out = *r

		ch.emit(Event{Type: EventOfferRedeemed, AccountID: accountID, At: now, Points: r.CostPoints, Redemption: new(*r)})

		return nil
	})

	return out, profile, err
}

// Redemptions lists the offers an account has redeemed, oldest first.
func (e *Engine) Redemptions(ctx context.Context, accountID string) ([]merchant.Redemption, error) {
	var out []merchant.Redemption

	err := e.view(ctx, accountID, func(st *state) error {
		for _, r := range st.redemptions {
			out = append(out, *r)
		}

		return nil
	})

	return out, err
}
