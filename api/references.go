package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/wansing/editorial/core"
)

func createReference(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	var draft core.ReferenceDraft
	if err := ctx.decode(w, &draft); err != nil {
		return err
	}

	ref, err := ctx.srv.Engine.CreateReference(req.Context(), ctx.Actor, draft)
	if err != nil {
		return err
	}
	w.Header().Set("Location", "/references/"+ref.ID)
	return writeJSON(w, http.StatusCreated, ref)
}

func getReference(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	ref, err := ctx.srv.Engine.GetReference(req.Context(), params.ByName("id"))
	if err != nil {
		return err
	}
	return writeCacheable(w, req, ref)
}

func verifyReference(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {
	ref, err := ctx.srv.Engine.VerifyReference(req.Context(), ctx.Actor, params.ByName("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ref)
}
