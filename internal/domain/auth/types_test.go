package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"ADMIN", RoleAdmin},
		{"user", RoleResident},
		{"resident", RoleResident},
		{" user ", RoleResident},
		{"", RoleUnknown},
		{"superuser", RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRole(tt.in))
		})
	}
}

func TestUser_DecodesBackendRole(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"name":"Made","email":"made@example.com","role":"user"}`), &u))

	assert.Equal(t, int64(4), u.ID)
	assert.Equal(t, RoleResident, u.Role)

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"role":"user"`)
}

func TestSessionState_Role(t *testing.T) {
	admin := &User{ID: 1, Role: RoleAdmin}

	assert.Equal(t, RoleAdmin, SessionState{Phase: PhaseAuthenticated, User: admin}.Role())
	assert.Equal(t, RoleUnknown, SessionState{Phase: PhaseAnonymous}.Role())
	assert.Equal(t, RoleUnknown, SessionState{Phase: PhaseUnknown, User: admin}.Role())
	assert.True(t, SessionState{}.IsLoading())
}
