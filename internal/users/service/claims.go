package service

import (
	"context"
	"fmt"

	"github.com/opsarea/userd/internal/users/domain"
	"github.com/opsarea/userd/internal/users/store"
	"github.com/opsarea/userd/pkg/jwtx"

	"github.com/google/uuid"
)

// ClaimsFactory assembles the ordered claim list for a user's access token.
//
// Order is fixed: subject, display name, email, optional token id, then role
// claims. The email claim is always present, empty when the user has none,
// so downstream consumers can rely on its existence.
type ClaimsFactory struct {
	store         store.Store
	roleClaimType string
}

func NewClaimsFactory(s store.Store, roleClaimType string) *ClaimsFactory {
	return &ClaimsFactory{store: s, roleClaimType: roleClaimType}
}

// ForUser builds the claim list. When withTokenID is set a fresh unique jti
// is attached, letting each minted token be distinguished downstream.
func (f *ClaimsFactory) ForUser(ctx context.Context, u domain.User, withTokenID bool) ([]jwtx.Claim, error) {
	claims := []jwtx.Claim{
		{Type: jwtx.ClaimSubject, Value: u.ID},
		{Type: jwtx.ClaimName, Value: u.DisplayName()},
		{Type: jwtx.ClaimEmail, Value: u.Email},
	}

	if withTokenID {
		claims = append(claims, jwtx.Claim{Type: jwtx.ClaimTokenID, Value: uuid.NewString()})
	}

	roles, err := f.store.RoleClaims().GetRoles(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load role claims: %w", err)
	}
	for _, role := range roles {
		claims = append(claims, jwtx.Claim{Type: f.roleClaimType, Value: role})
	}

	return claims, nil
}
