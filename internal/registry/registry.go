// Package registry binds every concrete entity type to its backing domain
// and cross-cutting policy.
package registry

import (
	"github.com/nichind/fastapi/internal/audit"
	"github.com/nichind/fastapi/internal/blacklist"
	database "github.com/nichind/fastapi/internal/db"
	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/perf"
	"github.com/nichind/fastapi/internal/secret"
	"github.com/nichind/fastapi/internal/store"
)

type Deps struct {
	DB        *database.Client
	Codec     *secret.Codec
	Blacklist *blacklist.Checker
	Meter     *perf.Meter
	Sensitive []string
}

// Registry exposes one configured store per entity type. The sensitive
// column set is shared across types; columns a type does not have are
// never matched.
type Registry struct {
	Users    *store.Store[models.User]
	Settings *store.Store[models.ServerSetting]
	Sessions *store.Store[models.Session]

	Audit *audit.Log
	Codec *secret.Codec
	Meter *perf.Meter
}

func New(d Deps) *Registry {
	auditLog := audit.New(d.DB.Main())
	policy := store.Policy{
		Sensitive: d.Sensitive,
		Codec:     d.Codec,
		Blacklist: d.Blacklist,
		Audit:     auditLog,
		Meter:     d.Meter,
	}

	return &Registry{
		Users:    store.New[models.User](d.DB.Domain(models.User{}.Domain()), policy),
		Settings: store.New[models.ServerSetting](d.DB.Domain(models.ServerSetting{}.Domain()), policy),
		Sessions: store.New[models.Session](d.DB.Domain(models.Session{}.Domain()), policy),
		Audit:    auditLog,
		Codec:    d.Codec,
		Meter:    d.Meter,
	}
}
