package credentials_test

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-docs-client/credentials"
	"github.com/jrsteele09/go-docs-client/credentials/repofake"
)

func newTestStore(t *testing.T) (*credentials.Store, *repofake.FakeCredentialsRepo) {
	t.Helper()

	repo := repofake.NewFakeCredentialsRepo()
	store, err := credentials.NewStore(repo)
	require.NoError(t, err)
	return store, repo
}

func testUser() *credentials.User {
	return &credentials.User{
		ID:        42,
		Username:  "jdoe",
		Email:     "john.doe@example.com",
		FirstName: "John",
		LastName:  "Doe",
		FullName:  "John Doe",
		CanUpload: true,
	}
}

func TestStoreSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, jwtlib.MapClaims{"exp": exp.Unix()})

	err := store.Save(ctx, credentials.Credentials{
		AccessToken:  access,
		RefreshToken: "refresh-1",
	}, testUser())
	require.NoError(t, err)

	// Expiry derived from the JWT exp claim.
	require.True(t, store.Credentials().ExpiresAt.Equal(exp))
	require.True(t, store.IsAuthenticated())

	// A fresh store over the same repo sees the persisted state.
	reloaded, err := credentials.NewStore(repo)
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(ctx))

	require.Equal(t, access, reloaded.Credentials().AccessToken)
	require.Equal(t, "refresh-1", reloaded.Credentials().RefreshToken)
	require.NotNil(t, reloaded.User())
	require.Equal(t, "john.doe@example.com", reloaded.User().Email)
}

func TestStoreLoadEmptyRepo(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Load(context.Background()))
	require.False(t, store.IsAuthenticated())
	require.Nil(t, store.User())
}

func TestStoreUpdateTokensKeepsUser(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(ctx, credentials.Credentials{
		AccessToken:  signedToken(t, jwtlib.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}),
		RefreshToken: "refresh-1",
	}, testUser()))

	newAccess := signedToken(t, jwtlib.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, store.UpdateTokens(ctx, newAccess, "refresh-2"))

	require.Equal(t, newAccess, store.Credentials().AccessToken)
	require.Equal(t, "refresh-2", store.Credentials().RefreshToken)
	require.NotNil(t, store.User())

	// Rotation disabled server-side: empty refresh token keeps the old one.
	require.NoError(t, store.UpdateTokens(ctx, newAccess, ""))
	require.Equal(t, "refresh-2", store.Credentials().RefreshToken)
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Save(ctx, credentials.Credentials{
		AccessToken:  signedToken(t, jwtlib.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}),
		RefreshToken: "refresh-1",
	}, testUser()))

	require.NoError(t, store.Clear(ctx))
	require.False(t, store.IsAuthenticated())
	require.Nil(t, store.User())

	_, ok := store.Token()
	require.False(t, ok)
}

func TestStoreReloadDetectsExternalChange(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeCredentialsRepo()

	first, err := credentials.NewStore(repo)
	require.NoError(t, err)
	second, err := credentials.NewStore(repo)
	require.NoError(t, err)

	access := signedToken(t, jwtlib.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, first.Save(ctx, credentials.Credentials{
		AccessToken:  access,
		RefreshToken: "refresh-1",
	}, testUser()))

	changed, err := second.Reload(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, access, second.Credentials().AccessToken)

	changed, err = second.Reload(ctx)
	require.NoError(t, err)
	require.False(t, changed)

	// Logout in the first process is observed by the second.
	require.NoError(t, first.Clear(ctx))
	changed, err = second.Reload(ctx)
	require.NoError(t, err)
	require.True(t, changed)
	require.False(t, second.IsAuthenticated())
}

func TestStoreTokenSource(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, ok := store.Token()
	require.False(t, ok)

	access := signedToken(t, jwtlib.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, store.Save(ctx, credentials.Credentials{AccessToken: access}, nil))

	token, ok := store.Token()
	require.True(t, ok)
	require.Equal(t, access, token)
}
