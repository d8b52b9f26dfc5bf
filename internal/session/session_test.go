package session

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

var testUser = model.User{ID: 7, FirstNames: "Ana", LastNames: "Pérez", Email: "ana@example.org", Password: "deadbeef", Active: true}

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	kvs := map[string]func(t *testing.T) KV{
		"memory": func(*testing.T) KV { return NewMemoryKV() },
		"file":   func(t *testing.T) KV { return NewFileKV(filepath.Join(t.TempDir(), "nested", "session.json")) },
	}

	for name, newKV := range kvs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			store := NewStore(newKV(t), nil)

			_, ok := store.Load()
			assert.False(t, ok)
			assert.Equal(t, Anonymous, store.State())
			_, ok = store.Token()
			assert.False(t, ok, "no bearer without a session")

			require.NoError(t, store.Login(testUser, "tok-1"))
			sess, ok := store.Load()
			require.True(t, ok)
			assert.Equal(t, "tok-1", sess.Token)
			assert.Equal(t, "Ana", sess.User.FirstNames)
			assert.Empty(t, sess.User.Password, "password hash is not persisted")
			assert.True(t, store.IsAuthenticated())

			token, ok := store.Token()
			assert.True(t, ok)
			assert.Equal(t, "tok-1", token)

			// Login replaces the whole record
			other := model.User{ID: 8, FirstNames: "Luis"}
			require.NoError(t, store.Login(other, "tok-2"))
			sess, ok = store.Load()
			require.True(t, ok)
			assert.Equal(t, 8, sess.User.ID)
			assert.Equal(t, "tok-2", sess.Token)

			require.NoError(t, store.Logout())
			_, ok = store.Load()
			assert.False(t, ok)
			assert.Equal(t, Anonymous, store.State())

			// Logging out twice is harmless
			require.NoError(t, store.Logout())
		})
	}
}

func TestStoreMalformedUserIsAnonymous(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(KeyUser, "{not json"))
	require.NoError(t, kv.Set(KeyToken, "tok"))

	store := NewStore(kv, logger.NewTestLogger(&buf, logger.LogLevelDebug))
	_, ok := store.Load()
	assert.False(t, ok)
	assert.Equal(t, Anonymous, store.State())
	assert.Contains(t, buf.String(), "malformed")
}

func TestStoreRequiresBothKeys(t *testing.T) {
	t.Parallel()

	kv := NewMemoryKV()
	require.NoError(t, kv.Set(KeyUser, `{"idUsuario":1}`))
	store := NewStore(kv, nil)
	assert.False(t, store.IsAuthenticated(), "user without token")

	require.Error(t, store.Login(testUser, ""))
}

func TestSubscribersFireOncePerChange(t *testing.T) {
	t.Parallel()

	store := NewStore(NewMemoryKV(), nil)

	var logins, logouts atomic.Int32
	var lastUser atomic.Int32
	unsubscribe := store.Subscribe(func(state State, sess *model.Session) {
		switch state {
		case Authenticated:
			logins.Add(1)
			lastUser.Store(int32(sess.User.ID))
		case Anonymous:
			logouts.Add(1)
			assert.Nil(t, sess)
		}
	})

	require.NoError(t, store.Login(testUser, "tok"))
	require.NoError(t, store.Logout())
	assert.Equal(t, int32(1), logins.Load())
	assert.Equal(t, int32(1), logouts.Load())
	assert.Equal(t, int32(7), lastUser.Load())

	unsubscribe()
	require.NoError(t, store.Login(testUser, "tok"))
	assert.Equal(t, int32(1), logins.Load())
}

func TestFileKVMalformedFileReadsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	kv := NewFileKV(path)
	_, ok := kv.Get(KeyToken)
	assert.False(t, ok)

	require.NoError(t, kv.Set(KeyToken, "tok"))
	v, ok := kv.Get(KeyToken)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCookieKVRoundTrip(t *testing.T) {
	t.Parallel()

	cookieStore := NewCookieStore("0123456789abcdef0123456789abcdef", 3600, false)

	// First request logs in and receives the cookie
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", http.NoBody)
	store := NewStore(NewCookieKV(cookieStore, req, rec), nil)
	require.NoError(t, store.Login(testUser, "tok"))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	last := cookies[len(cookies)-1]
	assert.Equal(t, CookieName, last.Name)
	assert.True(t, last.HttpOnly)

	// A later request carrying the cookie sees the session
	req2 := httptest.NewRequest(http.MethodGet, "/aves", http.NoBody)
	req2.AddCookie(last)
	store2 := NewStore(NewCookieKV(cookieStore, req2, httptest.NewRecorder()), nil)
	sess, ok := store2.Load()
	require.True(t, ok)
	assert.Equal(t, "tok", sess.Token)

	// A cookie signed with another secret reads as anonymous
	otherStore := NewCookieStore("another-secret-another-secret-xx", 3600, false)
	req3 := httptest.NewRequest(http.MethodGet, "/aves", http.NoBody)
	req3.AddCookie(last)
	store3 := NewStore(NewCookieKV(otherStore, req3, httptest.NewRecorder()), nil)
	assert.False(t, store3.IsAuthenticated())
}
