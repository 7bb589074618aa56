package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"operaciones/internal/api"
	"operaciones/internal/cache"
	"operaciones/internal/controller"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
)

const sessionCookie = "op_session"

// session is one browser tab's view state.
type session struct {
	id   string
	list *controller.ListController
	form *controller.FormController
}

type sessionStore struct {
	repo     api.Repository
	debounce time.Duration
	ttl      time.Duration
	logger   *log.Logger
	metrics  *metrics.Metrics
	sessions *cache.LRUCache[*session]
}

func newSessionStore(repo api.Repository, capacity int, ttl, debounce time.Duration, logger *log.Logger, m *metrics.Metrics) *sessionStore {
	st := &sessionStore{
		repo:     repo,
		debounce: debounce,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
	}
	st.sessions = cache.NewLRUCache(capacity, ttl,
		cache.WithSlidingExpiry[*session](),
		cache.WithEvictHook(func(_ string, _ *session) {
			if st.metrics != nil {
				st.metrics.ActiveSessions.Dec()
			}
		}),
	)
	return st
}

// get returns the caller's session, creating one and setting the cookie
// when the request has none or it expired.
func (st *sessionStore) get(w http.ResponseWriter, r *http.Request) *session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := st.sessions.Get(c.Value); ok {
			return sess
		}
	}

	sess := st.newSession()
	st.sessions.Set(sess.id, sess)
	if st.metrics != nil {
		st.metrics.ActiveSessions.Inc()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.id,
		Path:     "/",
		MaxAge:   int(st.ttl.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	log.FromContext(r.Context()).Debug("Session created", log.FieldSessionID, sess.id)
	return sess
}

func (st *sessionStore) newSession() *session {
	id := uuid.NewString()
	logger := st.logger.With(log.FieldSessionID, id)
	return &session{
		id: id,
		list: controller.NewListController(st.repo, requestConfirmer{}, requestNotifier{},
			controller.WithDebounce(st.debounce),
			controller.WithListLogger(logger)),
		form: controller.NewFormController(st.repo, requestConfirmer{}, requestNotifier{},
			controller.WithFormLogger(logger)),
	}
}

func (st *sessionStore) size() int {
	return st.sessions.Size()
}
