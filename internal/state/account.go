package state

import (
	"context"

	"github.com/fentz26/taskdeck/internal/async"
	"github.com/fentz26/taskdeck/internal/models"
)

// Account loads and holds the signed-in user's account.
type Account struct {
	get *async.Operation[struct{}, models.Account]
}

func newAccount(d Deps) *Account {
	get := async.New(func(ctx context.Context, _ struct{}) (*models.Account, error) {
		tok, err := accessToken(d.Tokens)
		if err != nil {
			return nil, err
		}
		account, err := d.API.GetAccount(ctx, *tok)
		if err != nil {
			return nil, err
		}
		d.Telemetry.SetUser(models.IdentityOf(*account))
		return account, nil
	}, async.WithPolicy(d.Policy))

	return &Account{get: get}
}

// GetAccountDetails fetches the account the persisted token belongs to. It
// fails with ErrAccessTokenNotFound, without a network call, when no token is
// persisted.
func (a *Account) GetAccountDetails(ctx context.Context) (*models.Account, error) {
	return a.get.Invoke(ctx, struct{}{})
}

// AccountDetails returns the last fetched account, or the zero Account.
func (a *Account) AccountDetails() models.Account {
	if acc := a.get.Result(); acc != nil {
		return *acc
	}
	return models.Account{}
}

// ID returns the loaded account's id, empty until GetAccountDetails succeeds.
func (a *Account) ID() string {
	return a.AccountDetails().ID
}

// IsLoading reports whether the account is being fetched.
func (a *Account) IsLoading() bool { return a.get.IsLoading() }

// Error returns the last fetch failure.
func (a *Account) Error() *async.ErrorInfo { return a.get.Err() }

// OnChange registers fn for every account state transition.
func (a *Account) OnChange(fn func()) { a.get.OnChange(fn) }
