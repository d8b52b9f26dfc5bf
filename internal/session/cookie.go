package session

import (
	"crypto/sha256"
	"net/http"

	"github.com/gorilla/sessions"
)

// CookieName is the name of the browser session cookie.
const CookieName = "skybound_session"

// NewCookieStore creates the encrypted cookie store used by the web server.
// Authentication and encryption keys are derived from secret.
func NewCookieStore(secret string, maxAge int, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(deriveKey(secret), deriveKey(secret+"encryption"))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// deriveKey stretches seed to the 32 bytes AES-256 expects.
func deriveKey(seed string) []byte {
	sum := sha256.Sum256([]byte(seed))
	return sum[:]
}

// CookieKV stores values in one browser's session cookie. Every change is
// written back to the response immediately.
type CookieKV struct {
	sess *sessions.Session
	r    *http.Request
	w    http.ResponseWriter
}

// NewCookieKV loads the session cookie of r. A cookie that fails
// verification yields a fresh, empty session rather than an error.
func NewCookieKV(store sessions.Store, r *http.Request, w http.ResponseWriter) *CookieKV {
	// Get still returns a usable new session on decode errors
	sess, _ := store.Get(r, CookieName)
	if sess == nil {
		sess = sessions.NewSession(store, CookieName)
	}
	return &CookieKV{sess: sess, r: r, w: w}
}

// Session exposes the underlying cookie session, e.g. for flash messages.
func (c *CookieKV) Session() *sessions.Session { return c.sess }

// Save writes the session cookie to the response.
func (c *CookieKV) Save() error {
	return c.sess.Save(c.r, c.w)
}

func (c *CookieKV) Get(key string) (string, bool) {
	v, ok := c.sess.Values[key].(string)
	return v, ok
}

func (c *CookieKV) Set(key, value string) error {
	c.sess.Values[key] = value
	return c.Save()
}

func (c *CookieKV) Delete(key string) error {
	delete(c.sess.Values, key)
	return c.Save()
}
