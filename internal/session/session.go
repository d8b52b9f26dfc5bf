// Package session keeps track of who is logged in. The record is two string
// values, the JSON encoded user and the bearer token, held in a KV backend:
// a signed cookie for browsers or a file for the CLI.
package session

import (
	"encoding/json"
	"sync"

	"github.com/skybound/skybound/internal/errors"
	"github.com/skybound/skybound/internal/logger"
	"github.com/skybound/skybound/internal/model"
)

// Storage keys of the two session values.
const (
	KeyUser  = "usuario"
	KeyToken = "token"
)

// State is the authentication state derived from the stored record.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// KV is the persistence backend of a Store.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// Listener is notified after every login and logout.
type Listener func(State, *model.Session)

// Store reads and replaces the session record. It is safe for concurrent use.
type Store struct {
	kv  KV
	log logger.Logger

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

// NewStore wraps kv.
func NewStore(kv KV, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{kv: kv, log: log, listeners: make(map[int]Listener)}
}

// Load returns the stored session. A missing or malformed record reads as
// absent and never fails.
func (s *Store) Load() (*model.Session, bool) {
	rawUser, ok := s.kv.Get(KeyUser)
	if !ok || rawUser == "" {
		return nil, false
	}
	token, ok := s.kv.Get(KeyToken)
	if !ok || token == "" {
		return nil, false
	}

	var user model.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.log.Debug("ignoring malformed stored user", logger.Error(err))
		return nil, false
	}
	return &model.Session{User: user, Token: token}, true
}

// State reports whether a session is stored.
func (s *Store) State() State {
	if _, ok := s.Load(); ok {
		return Authenticated
	}
	return Anonymous
}

// IsAuthenticated is the gate used by mutation controls and protected screens.
func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// Token returns the bearer token of the stored session, so a Store can be
// used directly as an httpclient.TokenSource.
func (s *Store) Token() (string, bool) {
	sess, ok := s.Load()
	if !ok {
		return "", false
	}
	return sess.Token, true
}

// Login replaces the stored record with user and token and notifies
// listeners. The password hash is never persisted in the session.
func (s *Store) Login(user model.User, token string) error {
	if token == "" {
		return errors.Newf("cannot store a session without a token").
			Component("session").
			Category(errors.CategoryValidation).
			Build()
	}

	user.Password = ""
	data, err := json.Marshal(user)
	if err != nil {
		return errors.New(err).
			Component("session").
			Category(errors.CategorySession).
			Context("operation", "encode-user").
			Build()
	}

	if err := s.kv.Set(KeyUser, string(data)); err != nil {
		return s.storageError(err, "store-user")
	}
	if err := s.kv.Set(KeyToken, token); err != nil {
		return s.storageError(err, "store-token")
	}

	s.log.Info("user logged in", logger.Int("user_id", user.ID))
	s.notify(Authenticated, &model.Session{User: user, Token: token})
	return nil
}

// Logout deletes both values and notifies listeners.
func (s *Store) Logout() error {
	userErr := s.kv.Delete(KeyUser)
	tokenErr := s.kv.Delete(KeyToken)
	if err := errors.Join(userErr, tokenErr); err != nil {
		return s.storageError(err, "delete-session")
	}

	s.log.Info("user logged out")
	s.notify(Anonymous, nil)
	return nil
}

// Subscribe registers fn for login and logout notifications and returns a
// function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(state State, sess *model.Session) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state, sess)
	}
}

func (s *Store) storageError(err error, operation string) error {
	return errors.New(err).
		Component("session").
		Category(errors.CategorySession).
		Context("operation", operation).
		Build()
}
