package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorizationGranted_Merge(t *testing.T) {
	existing := AuthorizationGranted{
		ID:            "granted-1",
		TenantID:      "tenant-1",
		ClientID:      "client-1",
		UserID:        "user-1",
		Scopes:        []string{"openid", "profile"},
		IDTokenClaims: []string{"name"},
		ConsentClaims: map[string]interface{}{"acr": "urn:mace:incommon:iap:silver"},
	}

	t.Run("unions scopes and claims", func(t *testing.T) {
		merged := existing.Merge(AuthorizationGranted{
			Scopes:         []string{"profile", "email"},
			IDTokenClaims:  []string{"name", "email"},
			UserinfoClaims: []string{"phone_number"},
		})

		assert.Equal(t, []string{"openid", "profile", "email"}, merged.Scopes)
		assert.Equal(t, []string{"name", "email"}, merged.IDTokenClaims)
		assert.Equal(t, []string{"phone_number"}, merged.UserinfoClaims)
		assert.Equal(t, "granted-1", merged.ID)
	})

	t.Run("merging the same grant twice is idempotent", func(t *testing.T) {
		other := AuthorizationGranted{Scopes: []string{"email"}, IDTokenClaims: []string{"email"}}

		once := existing.Merge(other)
		twice := once.Merge(other)

		assert.Equal(t, once.Scopes, twice.Scopes)
		assert.Equal(t, once.IDTokenClaims, twice.IDTokenClaims)
		assert.Equal(t, once.UserinfoClaims, twice.UserinfoClaims)
	})

	t.Run("leaves the receiver untouched", func(t *testing.T) {
		_ = existing.Merge(AuthorizationGranted{Scopes: []string{"email"}})
		assert.Equal(t, []string{"openid", "profile"}, existing.Scopes)
	})
}

func TestAuthorizationGranted_Replace(t *testing.T) {
	existing := AuthorizationGranted{
		ID:       "granted-1",
		TenantID: "tenant-1",
		ClientID: "client-1",
		UserID:   "user-1",
		Scopes:   []string{"openid", "profile", "email"},
	}

	replaced := existing.Replace(AuthorizationGranted{
		Scopes:        []string{"openid"},
		IDTokenClaims: []string{"name"},
	})

	assert.Equal(t, "granted-1", replaced.ID)
	assert.Equal(t, "tenant-1", replaced.TenantID)
	assert.Equal(t, "client-1", replaced.ClientID)
	assert.Equal(t, "user-1", replaced.UserID)
	assert.Equal(t, []string{"openid"}, replaced.Scopes)
	assert.Equal(t, []string{"name"}, replaced.IDTokenClaims)
}

func TestAuthorizationGranted_Unauthorized(t *testing.T) {
	granted := AuthorizationGranted{
		Scopes:         []string{"openid", "profile"},
		IDTokenClaims:  []string{"name"},
		UserinfoClaims: []string{"email"},
	}

	assert.Equal(t, []string{"payments"}, granted.UnauthorizedScopes([]string{"openid", "payments"}))
	assert.Nil(t, granted.UnauthorizedScopes([]string{"openid", "profile"}))
	assert.Equal(t, []string{"email"}, granted.UnauthorizedIDTokenClaims([]string{"name", "email"}))
	assert.Equal(t, []string{"phone_number"}, granted.UnauthorizedUserinfoClaims([]string{"email", "phone_number"}))
}
