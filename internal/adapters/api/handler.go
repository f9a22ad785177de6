package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"xpost-studio/internal/adapters/intent"
	"xpost-studio/internal/domain"
	httpinfra "xpost-studio/internal/infra/http"
	"xpost-studio/internal/usecase/drafts"
	"xpost-studio/internal/usecase/session"
	"xpost-studio/internal/usecase/threads"
	"xpost-studio/internal/usecase/welcome"
)

const maxBodyBytes = 1 << 20

// Config описывает параметры обработчика.
type Config struct {
	SuccessRedirect string
	FailureRedirect string
	SecureCookies   bool
}

// Handler обслуживает REST API студии.
type Handler struct {
	log       zerolog.Logger
	cfg       Config
	sessionUC *session.Service
	welcomeUC *welcome.Service
	draftsUC  *drafts.Service
	threadsUC *threads.Service
	now       func() time.Time
}

// NewHandler создаёт обработчик.
func NewHandler(log zerolog.Logger, cfg Config, sessionUC *session.Service, welcomeUC *welcome.Service, draftsUC *drafts.Service, threadsUC *threads.Service) *Handler {
	return &Handler{
		log:       log.With().Str("component", "api").Logger(),
		cfg:       cfg,
		sessionUC: sessionUC,
		welcomeUC: welcomeUC,
		draftsUC:  draftsUC,
		threadsUC: threadsUC,
		now:       time.Now,
	}
}

// Routes монтирует маршруты /api/v1.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httpinfra.SessionMiddleware(h.sessionUC))

		r.Post("/auth/signup", h.handleSignup)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/me", h.handleMe)
		r.Get("/auth/oauth/google", h.handleOAuthStart)
		r.Get("/auth/oauth/google/callback", h.handleOAuthCallback)

		r.Get("/drafts/health", h.handleDraftsHealth)
		r.Get("/drafts/test-key", h.handleDraftsTestKey)
		r.Post("/drafts/edit", h.handleDraftsEdit)
		r.Post("/drafts/split", h.handleDraftsSplit)
		r.Post("/drafts/share", h.handleDraftsShare)

		r.Group(func(r chi.Router) {
			r.Use(httpinfra.RequireUser)

			r.Get("/welcome", h.handleWelcome)
			r.Post("/welcome/complete", h.handleWelcomeComplete)

			r.Post("/drafts/generate", h.handleGenerate)

			r.Get("/threads", h.handleThreadsLoad)
			r.Post("/threads", h.handleThreadsSave)
			r.Get("/threads/state", h.handleThreadsState)
			r.Delete("/threads/{threadID}", h.handleThreadDelete)
			r.Get("/threads/{threadID}/share", h.handleThreadShare)
		})
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) currentUser(r *http.Request) domain.User {
	return *httpinfra.SessionFrom(r.Context()).User
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	IsNewUser bool        `json:"isNewUser"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, user, err := h.sessionUC.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		httpinfra.WriteDomainError(w, r, h.log, err)
		return
	}
	httpinfra.SetSessionCookie(w, sess, h.cfg.SecureCookies)
	httpinfra.WriteJSON(w, http.StatusCreated, authResponse{User: user, Token: sess.Token, ExpiresAt: sess.ExpiresAt, IsNewUser: true})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, user, err := h.sessionUC.Login(r.Context(), httpinfra.TokenFrom(r.Context()), req.Email, req.Password)
	if err != nil {
		httpinfra.WriteDomainError(w, r, h.log, err)
		return
	}
	httpinfra.SetSessionCookie(w, sess, h.cfg.SecureCookies)
	httpinfra.WriteJSON(w, http.StatusOK, authResponse{User: user, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessionUC.Logout(r.Context(), httpinfra.TokenFrom(r.Context()))
	httpinfra.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, httpinfra.SessionFrom(r.Context()))
}

func (h *Handler) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	target, err := h.sessionUC.BeginOAuth(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("oauth: не удалось начать вход")
		http.Redirect(w, r, h.cfg.FailureRedirect, http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess, user, isNew, err := h.sessionUC.CompleteOAuth(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		h.log.Warn().Err(err).Msg("oauth: вход не удался")
		http.Redirect(w, r, h.cfg.FailureRedirect, http.StatusFound)
		return
	}
	httpinfra.SetSessionCookie(w, sess, h.cfg.SecureCookies)
	target := h.cfg.SuccessRedirect
	if isNew {
		target = withQuery(target, "new", "1")
	}
	h.log.Info().Str("user_id", user.ID).Bool("new", isNew).Msg("oauth: вход выполнен")
	http.Redirect(w, r, target, http.StatusFound)
}

func withQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func (h *Handler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	show := h.welcomeUC.ShouldShowWelcome(r.Context(), h.currentUser(r))
	httpinfra.WriteJSON(w, http.StatusOK, map[string]bool{"showWelcome": show})
}

func (h *Handler) handleWelcomeComplete(w http.ResponseWriter, r *http.Request) {
	h.welcomeUC.MarkWelcomeCompleted(r.Context(), h.currentUser(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Tone     string `json:"tone"`
	PostType string `json:"postType"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := h.draftsUC.Generate(r.Context(), req.Prompt, req.Tone, req.PostType)
	if err != nil {
		httpinfra.WriteDomainError(w, r, h.log, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"posts": items})
}

type contentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) handleDraftsEdit(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !h.decode(w, r, &req) {
		return
	}
	d, err := h.draftsUC.Edit(req.Content)
	if err != nil {
		httpinfra.WriteDomainError(w, r, h.log, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDraftsSplit(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := h.draftsUC.Split(req.Content)
	if err != nil {
		httpinfra.WriteDomainError(w, r, h.log, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"posts": items})
}

type shareRequest struct {
	Posts []string `json:"posts"`
	Mode  string   `json:"mode"`
}

func (h *Handler) handleDraftsShare(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.share(w, r, req.Mode, req.Posts)
}

func (h *Handler) handleDraftsHealth(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, h.draftsUC.Health(r.Context()))
}

func (h *Handler) handleDraftsTestKey(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, h.draftsUC.TestKey(r.Context()))
}

type saveThreadRequest struct {
	ThreadID string   `json:"threadId"`
	Posts    []string `json:"posts"`
}

func (h *Handler) handleThreadsSave(w http.ResponseWriter, r *http.Request) {
	var req saveThreadRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.draftsUC.SaveThread(r.Context(), h.currentUser(r).ID, req.ThreadID, req.Posts)
	if err != nil {
		httpinfra.WriteDomainError(w, r, h.log, err)
		return
	}
	threadID := req.ThreadID
	if len(saved) > 0 {
		threadID = saved[0].ThreadID
	}
	httpinfra.WriteJSON(w, http.StatusCreated, map[string]any{"threadId": threadID, "posts": saved})
}

func (h *Handler) handleThreadsLoad(w http.ResponseWriter, r *http.Request) {
	state, err := h.threadsUC.Load(r.Context(), h.currentUser(r).ID)
	if err != nil {
		httpinfra.WriteDomainError(w, r, h.log, err)
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleThreadsState(w http.ResponseWriter, r *http.Request) {
	page, ok := h.threadsUC.Page(h.currentUser(r).ID)
	if !ok {
		httpinfra.WriteJSON(w, http.StatusOK, threads.PageState{Threads: []domain.Thread{}, Deleting: []string{}})
		return
	}
	httpinfra.WriteJSON(w, http.StatusOK, page.State())
}

type deleteResponse struct {
	Outcome threads.DeleteOutcome `json:"outcome"`
	State   threads.PageState     `json:"state"`
}

func (h *Handler) handleThreadDelete(w http.ResponseWriter, r *http.Request) {
	userID := h.currentUser(r).ID
	outcome := h.threadsUC.DeleteThread(r.Context(), userID, chi.URLParam(r, "threadID"))
	resp := deleteResponse{Outcome: outcome}
	if page, ok := h.threadsUC.Page(userID); ok {
		resp.State = page.State()
	}
	httpinfra.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleThreadShare(w http.ResponseWriter, r *http.Request) {
	userID := h.currentUser(r).ID
	threadID := chi.URLParam(r, "threadID")
	page, ok := h.threadsUC.Page(userID)
	if !ok {
		if _, err := h.threadsUC.Load(r.Context(), userID); err != nil {
			httpinfra.WriteDomainError(w, r, h.log, err)
			return
		}
		page, ok = h.threadsUC.Page(userID)
	}
	var thread domain.Thread
	if ok {
		thread, ok = page.Thread(threadID)
	}
	if !ok {
		httpinfra.WriteError(w, http.StatusNotFound, "thread not found")
		return
	}
	contents := make([]string, 0, len(thread.Posts))
	for _, p := range thread.Posts {
		contents = append(contents, p.Content)
	}
	h.share(w, r, r.URL.Query().Get("mode"), contents)
}

// share отдаёт тред в одном из режимов публикации.
func (h *Handler) share(w http.ResponseWriter, r *http.Request, mode string, posts []string) {
	if len(posts) == 0 {
		httpinfra.WriteDomainError(w, r, h.log, domain.Invalid("posts", "nothing to share"))
		return
	}
	switch mode {
	case "", "composed":
		httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"url": intent.PostURL(intent.ComposeThread(posts))})
	case "sequential":
		seq := intent.SequentialPosts(posts)
		urls := make([]string, 0, len(seq))
		for _, text := range seq {
			urls = append(urls, intent.PostURL(text))
		}
		httpinfra.WriteJSON(w, http.StatusOK, map[string][]string{"urls": urls})
	case "copy":
		httpinfra.WriteJSON(w, http.StatusOK, map[string]string{"text": intent.ClipboardText(posts)})
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+intent.ExportFilename(h.now())+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(intent.TextExport(posts)))
	default:
		httpinfra.WriteDomainError(w, r, h.log, domain.Invalid("mode", "unknown share mode"))
	}
}
