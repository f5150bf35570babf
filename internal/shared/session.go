package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	// createdField keeps the hash alive while the session holds no values.
	createdField = "_created"
)

// SessionManager keeps anonymous sessions in Redis hashes. The cookie carries
// the session ID signed with the manager secret.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-request view of one stored hash. Only changed fields are
// written back on commit.
type Session struct {
	ID        string
	values    map[string]string
	changed   map[string]string
	removed   map[string]struct{}
	fresh     bool
	destroyed bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load resolves the session named by the request cookie. A missing, tampered
// or expired cookie yields a fresh session with a new ID.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sm.newSession(), nil
	}
	if err != nil {
		return nil, err
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return sm.newSession(), nil
	}

	fields, err := sm.client.HGetAll(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: load session: %w", err)
	}
	if len(fields) == 0 {
		return sm.newSession(), nil
	}
	delete(fields, createdField)
	return &Session{ID: id, values: fields}, nil
}

// Commit writes pending changes, slides the expiry and refreshes the cookie.
// A destroyed session is deleted and its cookie cleared.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, _ *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	key := sessionKeyPrefix + sess.ID

	if sess.destroyed {
		if err := sm.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("shared: destroy session: %w", err)
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}

	_, err := sm.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if sess.fresh {
			pipe.HSet(ctx, key, createdField, time.Now().UTC().Format(time.RFC3339))
		}
		if len(sess.removed) > 0 {
			fields := make([]string, 0, len(sess.removed))
			for field := range sess.removed {
				fields = append(fields, field)
			}
			pipe.HDel(ctx, key, fields...)
		}
		if len(sess.changed) > 0 {
			pairs := make([]interface{}, 0, 2*len(sess.changed))
			for field, value := range sess.changed {
				pairs = append(pairs, field, value)
			}
			pipe.HSet(ctx, key, pairs...)
		}
		pipe.Expire(ctx, key, sm.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("shared: commit session: %w", err)
	}
	sess.fresh = false
	sess.changed = nil
	sess.removed = nil

	http.SetCookie(w, sm.cookie(sm.sign(sess.ID), 0))
	return nil
}

// Destroy marks the session for deletion on the next commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Set stores a value.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if s.changed == nil {
		s.changed = make(map[string]string)
	}
	s.values[key] = value
	s.changed[key] = value
	delete(s.removed, key)
}

// Get retrieves a value, "" when absent.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	delete(s.changed, key)
	if s.removed == nil {
		s.removed = make(map[string]struct{})
	}
	s.removed[key] = struct{}{}
}

func (sm *SessionManager) newSession() *Session {
	return &Session{ID: uuid.NewString(), values: make(map[string]string), fresh: true}
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.Expires = time.Now().Add(sm.ttl)
	}
	return c
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + sm.mac(id)
}

func (sm *SessionManager) verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 {
		return "", false
	}
	id, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(sm.mac(id))) {
		return "", false
	}
	return id, true
}

func (sm *SessionManager) mac(id string) string {
	h := hmac.New(sha256.New, sm.secret)
	_, _ = h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)[:18])
}
