package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL policy for the session key-space. Token records carry their own TTL
// (the token's remaining lifetime, supplied by the caller); the other
// families use fixed windows.
const (
	UserDataTTL = 30 * 24 * time.Hour
	SessionTTL  = 7 * 24 * time.Hour
)

// Key layout. These four patterns are the whole contract; nothing else in
// the process writes to the jwt: or user: prefixes.
func jwtKey(jti string) string      { return "jwt:" + jti }
func userDataKey(id string) string  { return "user:" + id + ":data" }
func latestJTIKey(id string) string { return "user:" + id + ":latest_jti" }
func sessionKey(id string) string   { return "user:" + id + ":session" }

// SessionCache is the typed façade over the token/user/session key-space.
// Callers never build key strings themselves and never pick TTLs outside
// this package. It is stateless apart from the underlying connection pool;
// concurrent use is safe and same-key write races resolve last-write-wins.
type SessionCache struct {
	store *RedisCache
}

func NewSessionCache(store *RedisCache) *SessionCache {
	return &SessionCache{store: store}
}

// StoreJWTPayload writes the decoded claim set at jwt:{jti} with the
// caller-supplied TTL (the token's remaining lifetime). When the payload
// carries a "sub" claim, the user's latest_jti pointer is refreshed in the
// same MULTI/EXEC transaction, record first, so the pointer can never name
// a token record that is not yet visible.
func (s *SessionCache) StoreJWTPayload(ctx context.Context, jti string, payload map[string]interface{}, ttl time.Duration) error {
	if err := validateID(jti); err != nil {
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: non-positive ttl %v", ErrInvalidKey, ttl)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal jwt payload: %w", err)
	}

	sub, _ := payload["sub"].(string)
	if sub == "" {
		return s.store.Set(ctx, jwtKey(jti), data, ttl)
	}
	if err := validateID(sub); err != nil {
		return fmt.Errorf("subject claim: %w", err)
	}

	_, err = s.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jwtKey(jti), data, ttl)
		pipe.Set(ctx, latestJTIKey(sub), jti, UserDataTTL)
		return nil
	})
	if err != nil {
		s.store.metrics.RecordUnavailable()
		return classifyErr(err)
	}
	s.store.metrics.RecordSet()
	return nil
}

// GetJWTPayload returns the stored claim set, or ErrCacheMiss once the
// token's TTL has lapsed or if it was never stored.
func (s *SessionCache) GetJWTPayload(ctx context.Context, jti string) (map[string]interface{}, error) {
	if err := validateID(jti); err != nil {
		return nil, err
	}
	return s.getJSON(ctx, jwtKey(jti))
}

// StoreUserData replaces the user's data record in full under the 30-day
// window. No merge with a prior value is performed.
func (s *SessionCache) StoreUserData(ctx context.Context, userID string, payload map[string]interface{}) error {
	if err := validateID(userID); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal user data: %w", err)
	}
	return s.store.Set(ctx, userDataKey(userID), data, UserDataTTL)
}

func (s *SessionCache) GetUserData(ctx context.Context, userID string) (map[string]interface{}, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	return s.getJSON(ctx, userDataKey(userID))
}

// StoreSessionData writes the user's transient session record with a 7-day
// window, stamping updated_at. Each write resets the TTL.
func (s *SessionCache) StoreSessionData(ctx context.Context, userID string, data map[string]interface{}) error {
	if err := validateID(userID); err != nil {
		return err
	}
	session := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		session[k] = v
	}
	session["updated_at"] = time.Now().Unix()

	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}
	return s.store.Set(ctx, sessionKey(userID), raw, SessionTTL)
}

func (s *SessionCache) GetSessionData(ctx context.Context, userID string) (map[string]interface{}, error) {
	if err := validateID(userID); err != nil {
		return nil, err
	}
	return s.getJSON(ctx, sessionKey(userID))
}

// GetUserLatestJTI returns the id of the most recently stored token for the
// user. The pointer outlives individual tokens, so the record it names may
// already have expired.
func (s *SessionCache) GetUserLatestJTI(ctx context.Context, userID string) (string, error) {
	if err := validateID(userID); err != nil {
		return "", err
	}
	data, err := s.store.Get(ctx, latestJTIKey(userID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsUserDataValid reports whether a live user-data record exists. It is a
// pure existence check; the payload is not fetched or decoded.
func (s *SessionCache) IsUserDataValid(ctx context.Context, userID string) (bool, error) {
	if err := validateID(userID); err != nil {
		return false, err
	}
	return s.store.Exists(ctx, userDataKey(userID))
}

// DeleteUserData removes the user-data record and the latest_jti pointer.
// It deliberately does not cascade to the session record or to jwt:{jti}
// records: the four families have independent lifetimes, and token validity
// is determined by the token family alone. Deleting an absent user is a
// no-op, not an error.
func (s *SessionCache) DeleteUserData(ctx context.Context, userID string) error {
	if err := validateID(userID); err != nil {
		return err
	}
	return s.store.Delete(ctx, userDataKey(userID), latestJTIKey(userID))
}

// DeleteSessionData removes only the session record. Used by the session
// cleanup worker; idempotent.
func (s *SessionCache) DeleteSessionData(ctx context.Context, userID string) error {
	if err := validateID(userID); err != nil {
		return err
	}
	return s.store.Delete(ctx, sessionKey(userID))
}

func (s *SessionCache) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

func (s *SessionCache) Stats() map[string]interface{} {
	return s.store.Stats()
}

func (s *SessionCache) getJSON(ctx context.Context, key string) (map[string]interface{}, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return payload, nil
}

// validateID rejects identifiers that would break the key layout: empty
// strings, whitespace, and the ':' delimiter.
func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case strings.ContainsAny(id, ": \t\n"):
		return fmt.Errorf("%w: %q", ErrInvalidKey, id)
	case len(id) > 128:
		return fmt.Errorf("%w: identifier too long", ErrInvalidKey)
	}
	return nil
}

// IsNotFound reports whether err is a normal cache miss, as opposed to a
// backend failure. Handlers use it to pick 404 over 503.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// IsUnavailable reports whether err means the backend could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCacheUnavailable)
}
