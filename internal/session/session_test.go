package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minimal-user/internal/domain"
)

func newTestManager(now time.Time) *Manager {
	m := NewManager(Config{Secret: "test-secret", TTL: time.Hour})
	m.now = func() time.Time { return now }
	return m
}

func TestManager_IssueAndVerify(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)

	token, expires, err := m.Issue(&domain.User{ID: 42, Username: "alice"})
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), expires, time.Second)

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestManager_VerifyRejects(t *testing.T) {
	now := time.Now()
	m := newTestManager(now)
	token, _, err := m.Issue(&domain.User{ID: 1, Username: "alice"})
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := newTestManager(now.Add(2 * time.Hour))
		_, err := later.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewManager(Config{Secret: "another-secret"})
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Verify("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestManager_CookieRoundTrip(t *testing.T) {
	m := NewManager(Config{Secret: "test-secret"})
	assert.Equal(t, DefaultCookieName, m.CookieName())

	w := httptest.NewRecorder()
	require.NoError(t, m.Login(w, &domain.User{ID: 9, Username: "bob"}))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	id, err := m.UserID(r)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)

	_, err = m.UserID(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrInvalidSession)

	w = httptest.NewRecorder()
	m.Logout(w)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)
}
