package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
)

func TestFakeAuthAPI_Defaults(t *testing.T) {
	api := NewFakeAuthAPI()
	ctx := context.Background()

	res, err := api.Login(ctx, domainauth.Credentials{Email: "a", Password: "b"})
	require.NoError(t, err)
	assert.Equal(t, "token-1", res.Token)
	assert.Nil(t, res.User)

	user, err := api.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleResident, user.Role)

	assert.Equal(t, 1, api.Calls("Login"))
	assert.Equal(t, 1, api.Calls("Profile"))
	assert.Equal(t, 0, api.Calls("Logout"))
}

func TestFakeAuthAPI_RegisterEchoesInput(t *testing.T) {
	api := NewFakeAuthAPI()

	res, err := api.Register(context.Background(), billing.RegisterInput{Name: "Ketut", Email: "k@desa.example"})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, "Ketut", res.User.Name)
	assert.Equal(t, "k@desa.example", res.User.Email)
}

func TestFakeAuthAPI_Overrides(t *testing.T) {
	boom := errors.New("boom")
	api := &FakeAuthAPI{
		ProfileFunc: func(context.Context) (domainauth.User, error) { return domainauth.User{}, boom },
	}

	_, err := api.Profile(context.Background())
	assert.ErrorIs(t, err, boom)

	res, err := api.Login(context.Background(), domainauth.Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "token-1", res.Token)
}

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore("")

	tok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, store.Save(ctx, "abc"))
	tok, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, store.Stored())
}

func TestMemoryTokenStore_InjectedFailures(t *testing.T) {
	store := NewMemoryTokenStore("abc")
	store.ClearErr = errors.New("disk full")

	require.Error(t, store.Clear(context.Background()))
	assert.Equal(t, "abc", store.Stored())
}
