package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/wansing/editorial/core"
	"github.com/wansing/editorial/render"
)

func listArticles(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var query = req.URL.Query()
	var filter = core.Filter{
		Status:   core.Status(query.Get("status")),
		AuthorID: query.Get("author"),
		Tag:      query.Get("tag"),
	}

	var err error
	if s := query.Get("limit"); s != "" {
		if filter.Limit, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("%w: limit must be a number", core.ErrInvalidInput)
		}
	}
	if s := query.Get("offset"); s != "" {
		if filter.Offset, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("%w: offset must be a number", core.ErrInvalidInput)
		}
	}

	articles, err := ctx.srv.Engine.ListArticles(req.Context(), filter)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, articles)
}

func createArticle(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var draft core.ArticleDraft
	if err := ctx.decode(w, &draft); err != nil {
		return err
	}
	if draft.AuthorIDs == nil {
		draft.AuthorIDs = []string{ctx.Actor.ID}
	}

	article, err := ctx.srv.Engine.CreateArticle(req.Context(), ctx.Actor, draft)
	if err != nil {
		return err
	}
	w.Header().Set("Location", "/articles/"+article.ID)
	return writeJSON(w, http.StatusCreated, article)
}

func getArticle(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	article, err := ctx.srv.Engine.GetArticle(req.Context(), params.ByName("id"))
	if err != nil {
		return err
	}
	return writeCacheable(w, req, article)
}

type previewBody struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	HTML    string `json:"html"`
	Excerpt string `json:"excerpt"`
}

func previewArticle(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	article, err := ctx.srv.Engine.GetArticle(req.Context(), params.ByName("id"))
	if err != nil {
		return err
	}
	return writeCacheable(w, req, previewBody{
		ID:      article.ID,
		Title:   article.Title,
		HTML:    render.HTML(article.Content),
		Excerpt: render.Excerpt(article.Content),
	})
}

func updateArticle(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var patch core.ArticlePatch
	if err := ctx.decode(w, &patch); err != nil {
		return err
	}

	article, err := ctx.srv.Engine.UpdateArticle(req.Context(), ctx.Actor, params.ByName("id"), patch)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, article)
}

type actionsBody struct {
	Status  core.Status       `json:"status"`
	Actions []core.ActionKind `json:"actions"`
}

func availableActions(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	article, err := ctx.srv.Engine.GetArticle(req.Context(), params.ByName("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, actionsBody{
		Status:  article.Status,
		Actions: core.AvailableActions(article, ctx.Actor),
	})
}

// transitionRequest is {"action": kind, "payload": {...}}. The payload may be omitted for actions without fields.
type transitionRequest struct {
	Action  core.ActionKind `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// decodeAction returns the action named in the request, with the payload decoded into it.
func decodeAction(r transitionRequest) (core.Action, error) {
	action, ok := core.NewAction(r.Action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", core.ErrInvalidInput, r.Action)
	}
	if len(r.Payload) > 0 && string(r.Payload) != "null" {
		var dec = json.NewDecoder(bytes.NewReader(r.Payload))
		dec.DisallowUnknownFields()
		if err := dec.Decode(action); err != nil {
			return nil, fmt.Errorf("%w: malformed %s payload: %v", core.ErrInvalidInput, r.Action, err)
		}
	}
	return action, nil
}

func transition(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var tr transitionRequest
	if err := ctx.decode(w, &tr); err != nil {
		return err
	}

	action, err := decodeAction(tr)
	if err != nil {
		return err
	}

	article, err := ctx.srv.Engine.Apply(req.Context(), params.ByName("id"), ctx.Actor, action)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, article)
}
