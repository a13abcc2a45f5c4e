package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nichind/fastapi/internal/audit"
	"github.com/nichind/fastapi/internal/blacklist"
	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/perf"
	"github.com/nichind/fastapi/internal/secret"
)

type env struct {
	db       *gorm.DB
	codec    *secret.Codec
	log      *audit.Log
	denyDir  string
	users    *Store[models.User]
	settings *Store[models.ServerSetting]
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithCodec(t, secret.New("unit-test-key"))
}

func newEnvWithCodec(t *testing.T, codec *secret.Codec) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.AuditEntry{}, &models.ServerSetting{}, &models.Session{}, &models.User{}))

	denyDir := t.TempDir()
	log := audit.New(db)
	policy := Policy{
		Sensitive: []string{"password", "token"},
		Codec:     codec,
		Blacklist: blacklist.New(denyDir),
		Audit:     log,
		Meter:     perf.New(),
	}

	return &env{
		db:       db,
		codec:    codec,
		log:      log,
		denyDir:  denyDir,
		users:    New[models.User](db, policy),
		settings: New[models.ServerSetting](db, policy),
	}
}

func (e *env) deny(t *testing.T, field string, values ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(e.denyDir, field+".txt"),
		[]byte(strings.Join(values, "\n")+"\n"), 0o644))
}

func newUser(username, email, password string) models.User {
	u := models.User{Username: models.Ptr(username), Password: password}
	if email != "" {
		u.Email = models.Ptr(email)
	}
	return u
}

func TestCreateAssignsIdentityAndEncrypts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "a@x.com", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))

	assert.GreaterOrEqual(t, user.ID, uint(1))
	assert.False(t, user.CreatedAt.IsZero())

	// the stored value is ciphertext
	var raw models.User
	require.NoError(t, e.db.First(&raw, user.ID).Error)
	assert.NotEqual(t, "Secret123", raw.Password)

	ok, err := e.codec.Compare("Secret123", raw.Password)
	require.NoError(t, err)
	assert.True(t, ok)

	// Decrypted returns a plaintext copy and leaves the record alone
	plain, err := e.users.Decrypted(raw)
	require.NoError(t, err)
	assert.Equal(t, "Secret123", plain.Password)
	assert.NotEqual(t, "Secret123", raw.Password)
}

func TestCreateRequiresUsernameOrEmail(t *testing.T) {
	e := newEnv(t)

	user := models.User{Password: "Secret123"}
	err := e.users.Create(context.Background(), &user)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username or email")
}

func TestCreateWithoutCryptKey(t *testing.T) {
	e := newEnvWithCodec(t, secret.New(""))
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	err := e.users.Create(ctx, &user)
	assert.ErrorIs(t, err, secret.ErrNoCryptKey)

	// the explicit opt-out stores the value as given
	user = newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user, IgnoreCrypt()))

	var raw models.User
	require.NoError(t, e.db.First(&raw, user.ID).Error)
	assert.Equal(t, "Secret123", raw.Password)
}

func TestBlacklistEnforcement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.deny(t, "username", "admin")

	user := newUser("admin", "", "Secret123")
	err := e.users.Create(ctx, &user)

	var be *BlacklistedError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "username", be.Field)
	assert.Equal(t, "admin", be.Value)

	user = newUser("admin", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user, IgnoreBlacklist()))
}

func TestDuplicateUniqueField(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first := newUser("alice", "a@x.com", "Secret123")
	require.NoError(t, e.users.Create(ctx, &first))

	second := newUser("alice", "other@x.com", "Secret123")
	err := e.users.Create(ctx, &second)

	var de *DuplicateError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "users", de.Table)
}

func TestGetNotFoundIsDistinct(t *testing.T) {
	e := newEnv(t)

	_, err := e.users.Get(context.Background(), Filter{"username": "nobody"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetChunk(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s := models.ServerSetting{Key: fmt.Sprintf("key-%d", i), Value: "v"}
		require.NoError(t, e.settings.Create(ctx, &s))
	}

	page, err := e.settings.GetChunk(ctx, 2, 0, Filter{})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := e.settings.GetChunk(ctx, 2, 4, Filter{})
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	// -1 is the unbounded escape hatch
	all, err := e.settings.GetChunk(ctx, -1, 0, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestUpdateAuditsEachChangedField(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))
	encryptedOld := user.Password

	updated, err := e.users.Update(ctx, user.ID,
		models.UserPatch{Password: models.Ptr("NewSecret456")},
		WithActor("user:1"))
	require.NoError(t, err)

	entries, err := e.log.ByOrigin(ctx, "users", user.ID, "password")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// old and new values are recorded in their stored (encrypted) form
	assert.Equal(t, encryptedOld, entries[0].OldValue)
	assert.Equal(t, updated.Password, entries[0].NewValue)
	assert.Equal(t, "user:1", entries[0].Actor)

	oldPlain, err := e.codec.Decrypt(entries[0].OldValue)
	require.NoError(t, err)
	assert.Equal(t, "Secret123", oldPlain)
	newPlain, err := e.codec.Decrypt(entries[0].NewValue)
	require.NoError(t, err)
	assert.Equal(t, "NewSecret456", newPlain)
}

func TestNoOpUpdateProducesNoAudit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))

	// same password: the diff recognises it through the codec
	_, err := e.users.Update(ctx, user.ID,
		models.UserPatch{Password: models.Ptr("Secret123")})
	require.NoError(t, err)

	// same username: plain comparison
	_, err = e.users.Update(ctx, user.ID,
		models.UserPatch{Username: models.Ptr("alice")})
	require.NoError(t, err)

	entries, err := e.log.ByOrigin(ctx, "users", user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditCountMatchesEffectiveChanges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))

	passwords := []string{"Second234", "Third345", "Third345", "Fourth456"}
	for _, p := range passwords {
		_, err := e.users.Update(ctx, user.ID, models.UserPatch{Password: models.Ptr(p)})
		require.NoError(t, err)
	}

	entries, err := e.log.ByOrigin(ctx, "users", user.ID, "password")
	require.NoError(t, err)
	// the repeated value changed nothing
	assert.Len(t, entries, 3)
}

func TestUpdateBlacklistAndCryptGates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.deny(t, "username", "root")

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))

	_, err := e.users.Update(ctx, user.ID, models.UserPatch{Username: models.Ptr("root")})
	var be *BlacklistedError
	require.ErrorAs(t, err, &be)

	// the rejected change left no audit trace
	entries, err := e.log.ByOrigin(ctx, "users", user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, entries)

	updated, err := e.users.Update(ctx, user.ID,
		models.UserPatch{Username: models.Ptr("root")}, IgnoreBlacklist())
	require.NoError(t, err)
	assert.Equal(t, "root", *updated.Username)
}

func TestUpdateBoolField(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))

	updated, err := e.users.Update(ctx, user.ID,
		models.UserPatch{IsAdmin: models.Ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin)

	entries, err := e.log.ByOrigin(ctx, "users", user.ID, "is_admin")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "false", entries[0].OldValue)
	assert.Equal(t, "true", entries[0].NewValue)

	// setting it again is a no-op
	_, err = e.users.Update(ctx, user.ID, models.UserPatch{IsAdmin: models.Ptr(true)})
	require.NoError(t, err)
	entries, err = e.log.ByOrigin(ctx, "users", user.ID, "is_admin")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdateIdentifierErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.users.Update(ctx, 0, models.UserPatch{})
	assert.ErrorIs(t, err, ErrNoID)

	_, err = e.users.Update(ctx, 999, models.UserPatch{Username: models.Ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBumpsVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))

	updated, err := e.users.Update(ctx, user.ID,
		models.UserPatch{Username: models.Ptr("alice2")})
	require.NoError(t, err)
	assert.Equal(t, user.Version+1, updated.Version)
}

func TestSoftDeleteHidesRecordKeepsHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))
	_, err := e.users.Update(ctx, user.ID, models.UserPatch{Password: models.Ptr("Other234")})
	require.NoError(t, err)

	require.NoError(t, e.users.Delete(ctx, user.ID, WithActor("admin:1")))

	_, err = e.users.Get(ctx, Filter{"id": user.ID})
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := e.users.GetChunk(ctx, -1, 0, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	// the row is still durable, only hidden
	var raw models.User
	require.NoError(t, e.db.Unscoped().First(&raw, user.ID).Error)

	// and the audit trail survives the deletion
	history, err := e.log.ByOrigin(ctx, "users", user.ID, "")
	require.NoError(t, err)
	assert.Len(t, history, 2) // password change + deletion marker
}

func TestAuditGroupedByField(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))

	_, err := e.users.Update(ctx, user.ID, models.UserPatch{
		Username: models.Ptr("alice2"),
		Password: models.Ptr("Other234"),
	})
	require.NoError(t, err)

	current, err := e.users.GetByID(ctx, user.ID)
	require.NoError(t, err)

	grouped, err := e.users.Audit(ctx, *current)
	require.NoError(t, err)
	assert.Len(t, grouped["username"], 1)
	assert.Len(t, grouped["password"], 1)
}

func TestMeterObservesOperations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	before := e.users.policy.Meter.Summary().Count
	user := newUser("alice", "", "Secret123")
	require.NoError(t, e.users.Create(ctx, &user))
	_, err := e.users.Get(ctx, Filter{"username": "alice"})
	require.NoError(t, err)

	assert.Equal(t, before+2, e.users.policy.Meter.Summary().Count)
}
