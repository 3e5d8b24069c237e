package user

import (
	"context"

	"github.com/carebridge/carechat/internal/domain"
)

// UserRepository handles account lookups for the messaging core. Account
// creation beyond seeding, login and credential issuance live outside this
// subsystem.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByID(ctx context.Context, id uint) (bool, error)
}
