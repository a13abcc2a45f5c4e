package registry

import (
	"context"
	"errors"
	"log"

	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/secret"
	"github.com/nichind/fastapi/internal/store"
)

// SeedAdmin makes sure an administrator account exists at startup. This is
// a diagnostic path: failures are logged, never fatal. The blacklist is
// bypassed on purpose since reserved names like "admin" are usually denied
// to regular registrations.
func (r *Registry) SeedAdmin(ctx context.Context, username string, tokenLength int) {
	user, err := r.Users.Get(ctx, store.Filter{"username": username})
	switch {
	case errors.Is(err, store.ErrNotFound):
		password, err := secret.GenerateSecret(16)
		if err != nil {
			log.Printf("⚠️ Admin seed failed: %v", err)
			return
		}
		token, err := secret.GenerateSecret(tokenLength)
		if err != nil {
			log.Printf("⚠️ Admin seed failed: %v", err)
			return
		}

		admin := models.User{
			Username:  models.Ptr(username),
			Password:  password,
			Token:     token,
			TokenHash: models.Ptr(secret.Hash(token)),
			IsAdmin:   true,
		}
		if err := r.Users.Create(ctx, &admin, store.IgnoreBlacklist()); err != nil {
			log.Printf("⚠️ Admin seed failed: %v", err)
			return
		}
		log.Printf("🌱 Seeded admin user %q (id %d), token: %s", username, admin.ID, token)

	case err != nil:
		log.Printf("⚠️ Admin seed failed: %v", err)

	case !user.IsAdmin:
		if _, err := r.Users.Update(ctx, user.ID, models.UserPatch{IsAdmin: models.Ptr(true)},
			store.WithActor("seed")); err != nil {
			log.Printf("⚠️ Admin seed failed: %v", err)
		}
	}
}
