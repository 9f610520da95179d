// Package api serves the JSON HTTP interface of the editorial workflow.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/julienschmidt/httprouter"
	"github.com/wansing/editorial/core"
)

const maxBodySize = 1 << 20

// Server holds the dependencies of the handlers.
type Server struct {
	Engine   *core.Engine
	Auth     *core.AuthDB
	Sessions *scs.SessionManager
	Logger   *slog.Logger
}

// NewSessionManager returns a session manager which stores the id of the logged-in user.
func NewSessionManager(store scs.Store, cookiePath string) *scs.SessionManager {
	var sessions = scs.New()
	if store != nil {
		sessions.Store = store
	}
	sessions.Cookie.Name = "editorial_session"
	sessions.Cookie.Path = cookiePath + "/"
	sessions.Cookie.Persist = false
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = false // else running on localhost or behind a http proxy fails
	sessions.IdleTimeout = 12 * time.Hour
	sessions.Lifetime = 720 * time.Hour
	return sessions
}

type context struct {
	*http.Request
	Actor    core.Actor
	LoggedIn bool
	srv      *Server
}

// decode reads a JSON request body into v. Unknown fields are rejected.
func (ctx *context) decode(w http.ResponseWriter, v interface{}) error {
	var decoder = json.NewDecoder(http.MaxBytesReader(w, ctx.Body, maxBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", core.ErrInvalidInput, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: trailing data after request body", core.ErrInvalidInput)
	}
	return nil
}

// middleware resolves the session user and calls f. If f returns an error, it is written as JSON.
func middleware(srv *Server, requireLoggedIn bool, f func(http.ResponseWriter, *http.Request, *context, httprouter.Params) error) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		var ctx = &context{
			Request: req,
			srv:     srv,
		}

		if uid := srv.Sessions.GetInt(req.Context(), "uid"); uid != 0 {
			actor, err := srv.Auth.ActorByID(uid)
			switch {
			case err == nil:
				ctx.Actor = actor
				ctx.LoggedIn = true
			case errors.Is(err, core.ErrUnauthorized):
				srv.Sessions.Remove(req.Context(), "uid") // user has been deleted
			default:
				srv.writeError(w, req, err)
				return
			}
		}

		if requireLoggedIn && !ctx.LoggedIn {
			srv.writeError(w, req, core.ErrUnauthorized)
			return
		}

		if err := f(w, req, ctx, params); err != nil {
			srv.writeError(w, req, err)
		}
	}
}

func NewRouter(srv *Server) http.Handler {

	if srv.Logger == nil {
		srv.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var router = httprouter.New()

	// public
	router.POST("/login", middleware(srv, false, login))
	router.GET("/me", middleware(srv, false, me))

	// private
	router.POST("/logout", middleware(srv, true, logout))
	router.POST("/me/password", middleware(srv, true, changePassword))
	router.GET("/articles", middleware(srv, true, listArticles))
	router.POST("/articles", middleware(srv, true, createArticle))
	router.GET("/articles/:id", middleware(srv, true, getArticle))
	router.PATCH("/articles/:id", middleware(srv, true, updateArticle))
	router.GET("/articles/:id/actions", middleware(srv, true, availableActions))
	router.GET("/articles/:id/preview", middleware(srv, true, previewArticle))
	router.POST("/articles/:id/transitions", middleware(srv, true, transition))
	router.POST("/references", middleware(srv, true, createReference))
	router.GET("/references/:id", middleware(srv, true, getReference))
	router.POST("/references/:id/verify", middleware(srv, true, verifyReference))

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		srv.writeError(w, req, core.ErrNotFound)
	})
	router.PanicHandler = func(w http.ResponseWriter, req *http.Request, v interface{}) {
		srv.Logger.Error("handler panicked", "method", req.Method, "path", req.URL.Path, "panic", v)
		srv.writeError(w, req, errors.New("panic"))
	}

	return srv.Sessions.LoadAndSave(router)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
