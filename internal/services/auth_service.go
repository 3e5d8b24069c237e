// File: internal/services/auth_service.go
package services

import (
	"context"
	"errors"

	"github.com/carebridge/carechat/internal/auth"
	"github.com/carebridge/carechat/internal/domain"
	"github.com/carebridge/carechat/internal/repository/user"
)

// ErrUnauthenticated is the single outcome for every credential failure.
// Absent, malformed and expired credentials are deliberately
// indistinguishable to the caller.
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthService resolves an opaque session credential to a Principal. It is
// the only component allowed to touch the shared secret; everything behind
// it deals in already-authenticated identities.
type AuthService struct {
	secretKey []byte
	userRepo  user.UserRepository
	logger    Logger
}

func NewAuthService(secretKey string, userRepo user.UserRepository, logger Logger) *AuthService {
	return &AuthService{
		secretKey: []byte(secretKey),
		userRepo:  userRepo,
		logger:    logger,
	}
}

// Authenticate validates the credential and confirms the account it names
// still exists. Fails closed: any defect maps to ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, credential string) (domain.Principal, error) {
	if credential == "" {
		return domain.Principal{}, ErrUnauthenticated
	}

	userID, role, err := auth.ValidateToken(credential, s.secretKey)
	if err != nil {
		s.logger.Debug("credential rejected", "reason", err.Error())
		return domain.Principal{}, ErrUnauthenticated
	}

	account, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		// Token was valid but the account is gone or the store failed;
		// either way the connection must not proceed.
		s.logger.Warn("principal lookup failed during handshake", "user_id", userID)
		return domain.Principal{}, ErrUnauthenticated
	}

	if account.Role != role {
		s.logger.Warn("token role does not match account role", "user_id", userID)
		return domain.Principal{}, ErrUnauthenticated
	}

	name := account.DisplayName
	if name == "" {
		name = account.Username
	}

	return domain.Principal{ID: account.ID, Role: account.Role, DisplayName: name}, nil
}

// IssueToken signs a session credential for an account. Exposed for seeding
// and tooling; the production issuer lives outside this subsystem.
func (s *AuthService) IssueToken(userID uint, role domain.UserRole) (string, error) {
	return auth.GenerateJWT(userID, role, s.secretKey)
}
