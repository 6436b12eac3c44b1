package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookieName = "session"

func requestWithCookies(cookies []*http.Cookie) *http.Request {
	request := httptest.NewRequest(http.MethodGet, "/welcome", nil)
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	return request
}

func TestSaveSessionAndRead(t *testing.T) {
	theAuth := New(testCookieName, []byte("secret"), time.Hour)

	recorder := httptest.NewRecorder()
	err := theAuth.SaveSession(recorder, &Session{
		Username:       "Alice",
		Email:          "a@x.com",
		ImageReference: "uploads/pic.png",
	})
	require.NoError(t, err)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	session, ok := theAuth.SessionFromRequest(requestWithCookies(cookies))
	require.True(t, ok)
	assert.Equal(t, &Session{Username: "Alice", Email: "a@x.com", ImageReference: "uploads/pic.png"}, session)
}

func TestSessionFromRequestRejectsForeignSignature(t *testing.T) {
	issuer := New(testCookieName, []byte("one secret"), time.Hour)
	reader := New(testCookieName, []byte("another secret"), time.Hour)

	recorder := httptest.NewRecorder()
	require.NoError(t, issuer.SaveSession(recorder, &Session{Username: "Alice"}))

	_, ok := reader.SessionFromRequest(requestWithCookies(recorder.Result().Cookies()))
	assert.False(t, ok)
}

func TestSessionFromRequestRejectsExpired(t *testing.T) {
	theAuth := New(testCookieName, []byte("secret"), -time.Minute)

	recorder := httptest.NewRecorder()
	require.NoError(t, theAuth.SaveSession(recorder, &Session{Username: "Alice"}))

	_, ok := theAuth.SessionFromRequest(requestWithCookies(recorder.Result().Cookies()))
	assert.False(t, ok)
}

func TestSessionFromRequestWithoutCookie(t *testing.T) {
	theAuth := New(testCookieName, []byte("secret"), time.Hour)

	_, ok := theAuth.SessionFromRequest(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)

	_, ok = theAuth.SessionFromRequest(requestWithCookies([]*http.Cookie{{Name: testCookieName, Value: "garbage"}}))
	assert.False(t, ok)
}

func TestClearSession(t *testing.T) {
	theAuth := New(testCookieName, []byte("secret"), time.Hour)

	recorder := httptest.NewRecorder()
	theAuth.ClearSession(recorder)

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestRequireSession(t *testing.T) {
	theAuth := New(testCookieName, []byte("secret"), time.Hour)

	var seen *Session
	protected := theAuth.RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no session redirects to index", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		protected.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/welcome", nil))

		assert.Equal(t, http.StatusFound, recorder.Code)
		assert.Equal(t, "/", recorder.Header().Get("Location"))
	})

	t.Run("session is passed through the context", func(t *testing.T) {
		saved := httptest.NewRecorder()
		require.NoError(t, theAuth.SaveSession(saved, &Session{Username: "Bob", Email: "b@x.com"}))

		recorder := httptest.NewRecorder()
		protected.ServeHTTP(recorder, requestWithCookies(saved.Result().Cookies()))

		assert.Equal(t, http.StatusOK, recorder.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "Bob", seen.Username)
		assert.Equal(t, "b@x.com", seen.Email)
	})
}

func TestFlash(t *testing.T) {
	theAuth := New(testCookieName, []byte("secret"), time.Hour)

	recorder := httptest.NewRecorder()
	theAuth.SetFlash(recorder, "Signup successful!")

	popRecorder := httptest.NewRecorder()
	message := theAuth.PopFlash(popRecorder, requestWithCookies(recorder.Result().Cookies()))
	assert.Equal(t, "Signup successful!", message)

	cleared := popRecorder.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Less(t, cleared[0].MaxAge, 0)

	assert.Empty(t, theAuth.PopFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}
