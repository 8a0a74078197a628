package domain

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// User represents an end-user known to the tenant. The protocol engine reads
// users to resolve CIBA hints and to assemble ID token and userinfo claims;
// it never creates or mutates them.
type User struct {
	ID            ulid.ULID  `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// Claims returns the standard OIDC claims the user can supply, keyed by
// claim name
func (u *User) Claims() map[string]interface{} {
	return map[string]interface{}{
		"sub":            u.ID.String(),
		"name":           u.Name,
		"email":          u.Email,
		"email_verified": u.EmailVerified,
		"phone_number":   u.Phone,
	}
}

// UserRepository defines read access to tenant users
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, tenantID string, id ulid.ULID) (*User, error)

	// FindByHint resolves a CIBA login_hint (user id, email or phone) to a user
	FindByHint(ctx context.Context, tenantID, hint string) (*User, error)
}
