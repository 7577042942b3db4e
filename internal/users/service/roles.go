package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/store"
)

// RoleClaimService manages the single role claim each user carries.
type RoleClaimService struct {
	store store.Store
}

func NewRoleClaimService(s store.Store) *RoleClaimService {
	return &RoleClaimService{store: s}
}

// SetRole replaces the user's role claim with exactly the given role. The
// remove-and-insert runs in one transaction so a concurrent reader never
// observes the user with zero or two roles.
func (s *RoleClaimService) SetRole(ctx context.Context, userID string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, string(role))
	}

	if _, err := s.store.Users().GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return err
	}

	return s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.RoleClaims().ReplaceRole(ctx, userID, role)
	})
}

// GetRoles returns the user's role values, expected cardinality 0 or 1.
func (s *RoleClaimService) GetRoles(ctx context.Context, userID string) ([]string, error) {
	return s.store.RoleClaims().GetRoles(ctx, userID)
}

// GetRolesBulk resolves roles for many users at once. Every requested id is
// present in the result, mapped to an empty slice when the user has no role.
func (s *RoleClaimService) GetRolesBulk(ctx context.Context, userIDs []string) (map[string][]string, error) {
	return s.store.RoleClaims().GetRolesBulk(ctx, userIDs)
}
