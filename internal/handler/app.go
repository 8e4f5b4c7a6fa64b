// Package handler serves the operator UI: the fixture list, the generated
// add and edit forms, checkout and return, settings, domain management,
// export and the activity log.
//
// Every request that reads or changes application state runs under one
// mutex, so operator actions execute one at a time to completion.
package handler

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/activity"
	"github.com/matthewbaird/jigtrack/internal/event"
	"github.com/matthewbaird/jigtrack/internal/jig"
	"github.com/matthewbaird/jigtrack/internal/logger"
	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/settings"
	"github.com/matthewbaird/jigtrack/internal/store"
	"github.com/matthewbaird/jigtrack/internal/table"
)

// SessionCookie carries the operator session token.
const SessionCookie = "jigtrack_session"

// Config wires the application components into the UI.
type Config struct {
	Schema   *schema.Schema
	Rows     *store.Table
	View     *table.Coordinator
	Jigs     *jig.Service
	Domains  *jig.Domains
	Settings *settings.Store
	Activity activity.Store
	Recorder event.Recorder // may be nil
	Live     *Live
	Creds    jig.Credentials
	Log      *zap.Logger
	Now      func() time.Time // defaults to time.Now
}

// App holds the UI state shared by all requests.
type App struct {
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
	pages    map[string]*template.Template
	mu       sync.Mutex
	sessions map[string]jig.Operator
	filter   string // filter text behind the view's criteria
}

// New parses the page templates and returns the app.
func New(cfg Config) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Live == nil {
		cfg.Live = NewLive(cfg.Log)
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:      cfg,
		log:      cfg.Log,
		now:      cfg.Now,
		pages:    pages,
		sessions: map[string]jig.Operator{},
	}, nil
}

// Routes registers every route on a new router.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(a.log), Logging(a.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws", a.cfg.Live.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(a.serialize)
		r.Get("/login", a.loginPage)
		r.Post("/login", a.login)
		r.Post("/login/guest", a.guestLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireOperator)
			r.Post("/logout", a.logout)

			r.Get("/", a.list)
			r.Get("/api/jigs", a.listJSON)
			r.Get("/jigs/new", a.newForm)
			r.Post("/jigs", a.create)
			r.Get("/jigs/{id}/edit", a.editForm)
			r.Post("/jigs/{id}", a.update)
			r.Post("/jigs/{id}/checkout", a.checkout)
			r.Post("/jigs/{id}/return", a.giveBack)
			r.Post("/jigs/{id}/delete", a.delete)
			r.Get("/export/{format}", a.export)

			r.Get("/settings", a.settingsPage)
			r.Post("/settings", a.saveSettings)
			r.Get("/domains/{name}", a.domainPage)
			r.Post("/domains/{name}", a.saveDomain)
			r.Post("/domains/{name}/reset", a.resetDomain)
			r.Get("/activity", a.activityPage)
		})
	})
	return r
}

func (a *App) serialize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		defer a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type operatorKey struct{}

func (a *App) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, ok := a.session(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey{}, op)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func operatorFrom(ctx context.Context) jig.Operator {
	op, _ := ctx.Value(operatorKey{}).(jig.Operator)
	return op
}

func (a *App) session(r *http.Request) (jig.Operator, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return jig.Operator{}, false
	}
	op, ok := a.sessions[c.Value]
	return op, ok
}

func (a *App) startSession(w http.ResponseWriter, r *http.Request, op jig.Operator, guest bool) {
	token := uuid.NewString()
	a.sessions[token] = op
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	logger.WithUser(a.log, op.Name).Info("operator logged in", zap.String("op", "login"), zap.Bool("guest", guest))
	a.record(r.Context(), op.Name, event.NewOperatorLoggedIn(event.OperatorPayload{User: op.Name, Guest: guest}))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "login", loginData{})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	op, err := jig.Login(a.cfg.Creds, r.PostFormValue("user"), r.PostFormValue("password"))
	if err != nil {
		a.log.Info("login rejected", zap.String("op", "login"), zap.String("user", r.PostFormValue("user")))
		a.render(w, r, http.StatusUnauthorized, "login", loginData{Error: err.Error()})
		return
	}
	a.startSession(w, r, op, false)
}

func (a *App) guestLogin(w http.ResponseWriter, r *http.Request) {
	op, err := jig.GuestLogin(r.PostFormValue("name"))
	if err != nil {
		a.render(w, r, http.StatusUnprocessableEntity, "login", loginData{GuestError: err.Error()})
		return
	}
	a.startSession(w, r, op, true)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		delete(a.sessions, c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// record is best-effort: a failed activity write never fails the request.
func (a *App) record(ctx context.Context, user string, evt event.DomainEvent) {
	if a.cfg.Recorder == nil {
		return
	}
	if err := a.cfg.Recorder.Record(ctx, evt); err != nil {
		logger.WithUser(a.log, user).Warn("event recording failed", zap.String("event_type", evt.EventType), zap.Error(err))
	}
}

// fail renders the blocking error page for err.
func (a *App) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := errorStatus(err)
	log := logger.WithUser(a.log, operatorFrom(r.Context()).Name).With(zap.String("op", op))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", code), zap.Error(err))
	} else {
		log.Info("request rejected", zap.String("code", code), zap.Error(err))
	}
	title := "Error"
	if errors.Is(err, store.ErrCommit) {
		title = "Storage error"
	}
	a.render(w, r, status, "error", errorData{Title: title, Code: code, Message: err.Error()})
}

func noticeURL(path, notice string) string {
	if notice == "" {
		return path
	}
	return path + "?" + url.Values{"notice": {notice}}.Encode()
}
