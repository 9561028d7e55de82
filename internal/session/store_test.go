package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/mocks"
	mockauth "github.com/kramabill/billing-krama/internal/mocks/auth"
	"github.com/kramabill/billing-krama/internal/observability/metrics"
	"github.com/kramabill/billing-krama/internal/ports"
	"github.com/kramabill/billing-krama/internal/testutil"
)

func newStore(api ports.AuthAPI, tokens ports.TokenStore) *Store {
	return New(Options{API: api, Tokens: tokens})
}

func unauthorized(msg string) error {
	return &apperrors.AppError{Code: apperrors.ErrCodeSessionExpired, Message: msg, Status: http.StatusUnauthorized}
}

func TestInitialize_NoStoredToken(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	s := newStore(api, mockauth.NewMemoryTokenStore(""))

	assert.True(t, s.State().IsLoading())
	require.NoError(t, s.Initialize(context.Background()))

	st := s.State()
	assert.False(t, st.IsLoading())
	assert.Equal(t, domainauth.PhaseAnonymous, st.Phase)
	assert.Nil(t, st.User)
	assert.Equal(t, 0, api.Calls("Profile"))
}

func TestInitialize_ValidStoredToken(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	s := newStore(api, mockauth.NewMemoryTokenStore("stored"))

	require.NoError(t, s.Initialize(context.Background()))

	st := s.State()
	assert.Equal(t, domainauth.PhaseAuthenticated, st.Phase)
	require.NotNil(t, st.User)
	assert.Equal(t, domainauth.RoleResident, st.Role())
	assert.Equal(t, "stored", s.Token())
}

func TestInitialize_RejectedTokenIsCleared(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.ProfileFunc = func(context.Context) (domainauth.User, error) {
		return domainauth.User{}, unauthorized("Unauthenticated.")
	}
	tokens := mockauth.NewMemoryTokenStore("expired")
	s := newStore(api, tokens)

	require.NoError(t, s.Initialize(context.Background()))

	st := s.State()
	assert.False(t, st.IsLoading())
	assert.Nil(t, st.User)
	assert.Empty(t, tokens.Stored())
	assert.Empty(t, s.Token())
}

func TestInitialize_RunsOnceForConcurrentCallers(t *testing.T) {
	var profileCalls atomic.Int32
	release := make(chan struct{})
	api := mockauth.NewFakeAuthAPI()
	api.ProfileFunc = func(context.Context) (domainauth.User, error) {
		profileCalls.Add(1)
		<-release
		return domainauth.User{ID: 1, Role: domainauth.RoleAdmin}, nil
	}
	s := newStore(api, mockauth.NewMemoryTokenStore("stored"))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Initialize(context.Background()))
		}()
	}
	close(release)
	wg.Wait()

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, int32(1), profileCalls.Load())
	assert.Equal(t, domainauth.RoleAdmin, s.State().Role())
}

func TestInitialize_StorageFailureEndsLoading(t *testing.T) {
	tokens := mockauth.NewMemoryTokenStore("")
	tokens.LoadErr = errors.New("permission denied")
	s := newStore(mockauth.NewFakeAuthAPI(), tokens)

	err := s.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
}

func TestLogin_FetchesProfileWhenResponseHasNoUser(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	tokens := mockauth.NewMemoryTokenStore("")
	s := newStore(api, tokens)
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, s.Login(context.Background(), "made@desa.example", "secret"))

	assert.Equal(t, "token-1", tokens.Stored())
	assert.Equal(t, domainauth.PhaseAuthenticated, s.State().Phase)
	assert.Equal(t, 1, api.Calls("Profile"))
}

func TestLogin_UsesUserFromResponse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	api := mocks.NewMockAuthAPI(ctrl)
	tokens := mocks.NewMockTokenStore(ctrl)

	admin := &domainauth.User{ID: 9, Name: "Kelian", Role: domainauth.RoleAdmin}
	api.EXPECT().
		Login(gomock.Any(), domainauth.Credentials{Email: "kelian@desa.example", Password: "pw"}).
		Return(ports.AuthResult{Token: "tok", User: admin}, nil)
	tokens.EXPECT().Save(gomock.Any(), "tok").Return(nil)
	// Profile must not be called when the login response carries the user.

	s := newStore(api, tokens)
	require.NoError(t, s.Login(context.Background(), "kelian@desa.example", "pw"))
	assert.Equal(t, domainauth.RoleAdmin, s.State().Role())
}

func TestLogin_RejectedCredentials(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "backend message",
			err:     unauthorized("Akun tidak ditemukan."),
			wantMsg: "Akun tidak ditemukan.",
		},
		{
			name:    "fallback on 401",
			err:     unauthorized(""),
			wantMsg: "Email atau password salah.",
		},
		{
			name:    "fallback on 422",
			err:     &apperrors.AppError{Code: apperrors.ErrCodeValidation, Status: http.StatusUnprocessableEntity},
			wantMsg: "Email atau password salah.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mockauth.NewFakeAuthAPI()
			api.LoginFunc = func(context.Context, domainauth.Credentials) (ports.AuthResult, error) {
				return ports.AuthResult{}, tt.err
			}
			tokens := mockauth.NewMemoryTokenStore("")
			s := newStore(api, tokens)
			require.NoError(t, s.Initialize(context.Background()))

			err := s.Login(context.Background(), "a@b.c", "wrong")
			require.Error(t, err)
			assert.True(t, apperrors.IsAuthentication(err))
			assert.Equal(t, tt.wantMsg, apperrors.UserMessage(err, ""))
			assert.Empty(t, tokens.Stored())
			assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
		})
	}
}

func TestLogin_OtherFailuresAreServerErrors(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.LoginFunc = func(context.Context, domainauth.Credentials) (ports.AuthResult, error) {
		return ports.AuthResult{}, &apperrors.AppError{Code: apperrors.ErrCodeServer, Status: http.StatusInternalServerError}
	}
	s := newStore(api, mockauth.NewMemoryTokenStore(""))

	err := s.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsServer(err))
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusOf(err))
}

func TestLogin_ProfileFailureKeepsToken(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.ProfileFunc = func(context.Context) (domainauth.User, error) {
		return domainauth.User{}, apperrors.Server("")
	}
	tokens := mockauth.NewMemoryTokenStore("")
	s := newStore(api, tokens)
	require.NoError(t, s.Initialize(context.Background()))

	err := s.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsServer(err))
	assert.Equal(t, "token-1", tokens.Stored())
	assert.Nil(t, s.State().User)
	assert.NotEqual(t, domainauth.PhaseAuthenticated, s.State().Phase)
	assert.Empty(t, s.Token(), "no bearer without a signed-in user")
}

func TestLogin_StorageFailureHoldsNoToken(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	tokens := mockauth.NewMemoryTokenStore("")
	tokens.SaveErr = errors.New("disk full")
	s := newStore(api, tokens)
	require.NoError(t, s.Initialize(context.Background()))

	err := s.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))
	assert.Empty(t, s.Token())
	assert.Empty(t, tokens.Stored())
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
	assert.Equal(t, 0, api.Calls("Profile"))
}

func TestRegister_StorageFailureHoldsNoToken(t *testing.T) {
	tokens := mockauth.NewMemoryTokenStore("")
	tokens.SaveErr = errors.New("read-only file system")
	s := newStore(mockauth.NewFakeAuthAPI(), tokens)
	require.NoError(t, s.Initialize(context.Background()))

	require.Error(t, s.Register(context.Background(), billing.RegisterInput{Name: "Ketut"}))
	assert.Empty(t, s.Token())
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
}

func TestLoginThenLogout_LeavesNothingBehind(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	tokens := mockauth.NewMemoryTokenStore("")
	s := newStore(api, tokens)
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, s.Login(context.Background(), "a@b.c", "pw"))
	s.Logout(context.Background())

	assert.Empty(t, tokens.Stored())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.State().User)
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
	assert.Equal(t, 1, api.Calls("Logout"))
}

func TestLogout_BackendFailureStillClearsLocally(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.LogoutFunc = func(context.Context) error { return errors.New("connection reset") }
	tokens := mockauth.NewMemoryTokenStore("stored")
	s := newStore(api, tokens)
	require.NoError(t, s.Initialize(context.Background()))
	require.Equal(t, domainauth.PhaseAuthenticated, s.State().Phase)

	s.Logout(context.Background())

	assert.Empty(t, tokens.Stored())
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
}

func TestLogout_ExpiredTokenStaysQuiet(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	tokens := mockauth.NewMemoryTokenStore("stored")
	var recorder testutil.MetricsRecorder
	s := New(Options{API: api, Tokens: tokens, Metrics: &recorder})
	require.NoError(t, s.Initialize(context.Background()))

	var expiredReported bool
	api.LogoutFunc = func(context.Context) error {
		// The gateway reports the 401 through the expiry callback.
		expiredReported = s.Invalidate()
		return unauthorized("Unauthenticated.")
	}

	var states []domainauth.SessionState
	cancel := s.Subscribe(func(st domainauth.SessionState) { states = append(states, st) })
	defer cancel()

	s.Logout(context.Background())

	assert.False(t, expiredReported)
	assert.Empty(t, recorder.Counted(metrics.SessionInvalidated))
	assert.Empty(t, tokens.Stored())
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
	require.Len(t, states, 1)
	assert.Equal(t, domainauth.PhaseAnonymous, states[0].Phase)

	// A later expiry is reported normally again.
	require.NoError(t, s.Login(context.Background(), "a@b.c", "pw"))
	assert.True(t, s.Invalidate())
}

func TestRegister_ValidationErrorCarriesFields(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.RegisterFunc = func(context.Context, billing.RegisterInput) (ports.AuthResult, error) {
		return ports.AuthResult{}, &apperrors.AppError{
			Code:   apperrors.ErrCodeValidation,
			Status: http.StatusUnprocessableEntity,
			Fields: map[string][]string{"nik": {"NIK sudah terdaftar."}},
			Field:  "nik",
		}
	}
	s := newStore(api, mockauth.NewMemoryTokenStore(""))

	err := s.Register(context.Background(), billing.RegisterInput{NIK: "5101"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "Data tidak valid.", apperrors.UserMessage(err, ""))
	assert.Equal(t, []string{"NIK sudah terdaftar."}, apperrors.GetFields(err)["nik"])
}

func TestRegister_SignsIn(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	tokens := mockauth.NewMemoryTokenStore("")
	s := newStore(api, tokens)
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, s.Register(context.Background(), billing.RegisterInput{Name: "Ketut", Email: "k@desa.example"}))

	st := s.State()
	assert.Equal(t, domainauth.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "Ketut", st.User.Name)
	assert.Equal(t, "token-1", tokens.Stored())
	assert.Equal(t, 0, api.Calls("Profile"))
}

func TestRegister_WithoutTokenLeavesAnonymous(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	api.RegisterFunc = func(context.Context, billing.RegisterInput) (ports.AuthResult, error) {
		return ports.AuthResult{}, nil
	}
	s := newStore(api, mockauth.NewMemoryTokenStore(""))
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, s.Register(context.Background(), billing.RegisterInput{}))
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
}

func TestUpdateUser(t *testing.T) {
	s := newStore(mockauth.NewFakeAuthAPI(), mockauth.NewMemoryTokenStore("stored"))

	s.UpdateUser(domainauth.User{ID: 5, Name: "Ignored"})
	assert.Nil(t, s.State().User, "ignored before the session is authenticated")

	require.NoError(t, s.Initialize(context.Background()))
	s.UpdateUser(domainauth.User{ID: 1, Name: "Made Baru", Role: domainauth.RoleResident})
	assert.Equal(t, "Made Baru", s.State().User.Name)
}

func TestInvalidate_ReportsTransitionOnce(t *testing.T) {
	tokens := mockauth.NewMemoryTokenStore("stored")
	s := newStore(mockauth.NewFakeAuthAPI(), tokens)
	require.NoError(t, s.Initialize(context.Background()))

	var notified atomic.Int32
	cancel := s.Subscribe(func(domainauth.SessionState) { notified.Add(1) })
	defer cancel()

	assert.True(t, s.Invalidate())
	assert.False(t, s.Invalidate())

	assert.Empty(t, tokens.Stored())
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
	assert.Equal(t, int32(1), notified.Load())
}

func TestInvalidate_DiscardsInFlightLogin(t *testing.T) {
	api := mockauth.NewFakeAuthAPI()
	tokens := mockauth.NewMemoryTokenStore("")
	s := newStore(api, tokens)
	require.NoError(t, s.Initialize(context.Background()))

	api.LoginFunc = func(context.Context, domainauth.Credentials) (ports.AuthResult, error) {
		// A forced expiry lands while the login request is outstanding.
		s.Invalidate()
		return ports.AuthResult{Token: "late"}, nil
	}

	err := s.Login(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Empty(t, tokens.Stored())
	assert.Equal(t, domainauth.PhaseAnonymous, s.State().Phase)
}

func TestSubscribe_CancelStopsNotifications(t *testing.T) {
	s := newStore(mockauth.NewFakeAuthAPI(), mockauth.NewMemoryTokenStore(""))

	var states []domainauth.SessionState
	cancel := s.Subscribe(func(st domainauth.SessionState) { states = append(states, st) })

	require.NoError(t, s.Initialize(context.Background()))
	cancel()
	require.NoError(t, s.Login(context.Background(), "a@b.c", "pw"))

	require.Len(t, states, 1)
	assert.Equal(t, domainauth.PhaseAnonymous, states[0].Phase)
}
