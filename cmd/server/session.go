package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/quotecalc/internal/describe"
	"github.com/Simplici0/quotecalc/internal/quote"
	"github.com/Simplici0/quotecalc/internal/storage"
)

const sessionCookieName = "quotecalc_session"

type sessionKey struct{}

// sessionService signs session cookies. The cookie carries only a random session id.
type sessionService struct {
	sessionSecret []byte
}

func newSessionService(sessionSecret string) *sessionService {
	return &sessionService{sessionSecret: []byte(sessionSecret)}
}

func (a *sessionService) createSessionValue(id string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(id))
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + signature
}

func (a *sessionService) verifySessionValue(value string) (string, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return "", false
	}

	payload := parts[0]
	signature := parts[1]

	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(provided, expected) {
		return "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	if _, err := uuid.ParseBytes(decoded); err != nil {
		return "", false
	}

	return string(decoded), true
}

func (a *sessionService) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    a.createSessionValue(id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionMiddleware attaches the caller's session id to the request context, issuing a
// new signed cookie when the request has none or a forged one.
func (s *server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := "", false
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			id, ok = s.sessions.verifySessionValue(cookie.Value)
		}
		if !ok {
			id = uuid.NewString()
			s.sessions.setSessionCookie(w, id)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionKey{}).(string)
	return id
}

// workspace is one session's state. mu serializes every call into mgr; describer is safe
// for concurrent use on its own.
type workspace struct {
	mu        sync.Mutex
	mgr       *quote.Manager
	describer *describe.Service

	lastUsed time.Time // guarded by workspaces.mu
}

// sessionLimits bounds the workspaces held in memory.
type sessionLimits struct {
	idleTTL time.Duration
	max     int
}

var defaultSessionLimits = sessionLimits{idleTTL: 30 * time.Minute, max: 1000}

// workspaces lazily creates one workspace per session, each persisting its histories under
// its own keys. Idle workspaces are dropped; a returning session reloads its histories
// from the store and starts a new draft.
type workspaces struct {
	store  storage.Store
	gen    describe.Generator
	logger *zap.Logger
	limits sessionLimits
	opts   []quote.Option
	now    func() time.Time

	mu   sync.Mutex
	byID map[string]*workspace
}

func newWorkspaces(store storage.Store, gen describe.Generator, logger *zap.Logger, limits sessionLimits, opts ...quote.Option) *workspaces {
	if limits.idleTTL <= 0 {
		limits.idleTTL = defaultSessionLimits.idleTTL
	}
	if limits.max < 1 {
		limits.max = defaultSessionLimits.max
	}
	return &workspaces{
		store:  store,
		gen:    gen,
		logger: logger,
		limits: limits,
		opts:   opts,
		now:    time.Now,
		byID:   make(map[string]*workspace),
	}
}

func (ws *workspaces) get(ctx context.Context, id string) *workspace {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := ws.now()
	if w, ok := ws.byID[id]; ok {
		w.lastUsed = now
		return w
	}
	ws.evictLocked(now)

	logger := ws.logger.With(zap.String("session", id))
	opts := append([]quote.Option{
		quote.WithHistoryKey(quote.HistoryKey + ":" + id),
		quote.WithLogger(logger),
	}, ws.opts...)
	w := &workspace{
		mgr:       quote.NewManager(ctx, ws.store, opts...),
		describer: describe.NewService(ctx, ws.gen, ws.store, logger, describe.WithHistoryKey(describe.HistoryKey+":"+id)),
		lastUsed:  now,
	}
	ws.byID[id] = w
	return w
}

// evictLocked drops idle workspaces, then the least recently used ones until there is
// room for one more.
func (ws *workspaces) evictLocked(now time.Time) {
	for id, w := range ws.byID {
		if now.Sub(w.lastUsed) > ws.limits.idleTTL {
			delete(ws.byID, id)
		}
	}
	for len(ws.byID) >= ws.limits.max {
		var (
			oldest string
			at     time.Time
		)
		for id, w := range ws.byID {
			if oldest == "" || w.lastUsed.Before(at) {
				oldest, at = id, w.lastUsed
			}
		}
		delete(ws.byID, oldest)
	}
}

// sweep drops idle workspaces and returns how many are left.
func (ws *workspaces) sweep() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	now := ws.now()
	for id, w := range ws.byID {
		if now.Sub(w.lastUsed) > ws.limits.idleTTL {
			delete(ws.byID, id)
		}
	}
	return len(ws.byID)
}

func (ws *workspaces) size() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.byID)
}

// janitor sweeps idle workspaces every interval until ctx is done.
func (ws *workspaces) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ws.logger.Debug("sessions swept", zap.Int("active", ws.sweep()))
		}
	}
}
