package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/wansing/editorial/core"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type actorBody struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Roles []core.Role `json:"roles"`
}

func newActorBody(actor core.Actor) actorBody {
	return actorBody{
		ID:    actor.ID,
		Email: actor.Email,
		Roles: actor.Roles.Slice(),
	}
}

var ErrLogin = errors.New("wrong e-mail address or password")

func login(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var creds credentials
	if err := ctx.decode(w, &creds); err != nil {
		return err
	}

	u, err := ctx.srv.Auth.LoginUser(creds.Email, creds.Password)
	if err != nil || u == nil {
		ctx.srv.Logger.Info("login failed", "email", creds.Email)
		return fmt.Errorf("%w: %v", core.ErrUnauthorized, ErrLogin)
	}

	actor, err := ctx.srv.Auth.Actor(u)
	if err != nil {
		return err
	}

	// new token against session fixation
	if err := ctx.srv.Sessions.RenewToken(req.Context()); err != nil {
		return err
	}
	ctx.srv.Sessions.Put(req.Context(), "uid", u.ID())

	ctx.srv.Logger.Info("login", "user", actor.ID)
	return writeJSON(w, http.StatusOK, newActorBody(actor))
}

func logout(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	if err := ctx.srv.Sessions.Destroy(req.Context()); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func me(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	if !ctx.LoggedIn {
		return core.ErrUnauthorized
	}
	return writeJSON(w, http.StatusOK, newActorBody(ctx.Actor))
}

type passwordChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

func changePassword(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var pc passwordChange
	if err := ctx.decode(w, &pc); err != nil {
		return err
	}
	if pc.New == "" {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, core.ErrEmptyPassword)
	}

	id, err := core.ParseUserID(ctx.Actor.ID)
	if err != nil {
		return err
	}
	u, err := ctx.srv.Auth.GetUser(id)
	if err != nil {
		return err
	}

	err = ctx.srv.Auth.ChangePassword(u, pc.Old, pc.New)
	if errors.Is(err, core.ErrAuth) {
		return fmt.Errorf("%w: wrong password", core.ErrForbidden)
	}
	if err != nil {
		return err
	}

	ctx.srv.Logger.Info("password changed", "user", ctx.Actor.ID)
	w.WriteHeader(http.StatusNoContent)
	return nil
}
