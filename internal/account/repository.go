package account

import (
	"context"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
)

//go:generate mockgen -source=repository.go -destination=repository_mock.go -package=account
type Repository interface {
	// Load returns ErrNotFound when the account does not exist.
	Load(ctx context.Context, accountID string) (*Snapshot, error)
	ListAccountIDs(ctx context.Context) ([]string, error)

	// Begin opens a transaction that serialises writers of the same account.
	Begin(ctx context.Context, accountID string) (Tx, error)
}

type Tx interface {
	// Load reads the account under the transaction's lock.
	Load(ctx context.Context, accountID string) (*Snapshot, error)
	CreateProfile(ctx context.Context, p *Profile) error
	SaveProfile(ctx context.Context, p *Profile) error
	SaveExpense(ctx context.Context, accountID string, r *expense.Record) error
	DeleteExpense(ctx context.Context, accountID string, id uuid.UUID) error
	SaveWithdrawal(ctx context.Context, accountID string, r *ewa.Request) error
	SaveRedemption(ctx context.Context, accountID string, r *merchant.Redemption) error
	Commit() error
	Rollback() error
}
