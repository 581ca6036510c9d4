package service

import (
	"context"

	"github.com/famtrack/tracker-server-go/internal/database"
	"github.com/famtrack/tracker-server-go/internal/model"
)

// TxRunner is satisfied by *database.DB; tests substitute a fake that
// invokes the function directly.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

var _ TxRunner = (*database.DB)(nil)

// Actor is the authenticated user on whose behalf a request runs, as
// resolved from the user token by the auth middleware.
type Actor struct {
	ID       string
	Role     model.Role
	Verified bool
}

func (a Actor) IsParent() bool {
	return a.Role == model.RoleParent
}
