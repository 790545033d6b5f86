package routes

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/app"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/database"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/httpx"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
)

var reNoIdent = regexp.MustCompile(`\W+`)

func CreateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := decodeForm(w, r)
		if !ok {
			return
		}

		err := app.Store.CreateForm(r.Context(), &form)
		if errors.Is(err, database.ErrSlugTaken) {
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "db.insert_form.slug", "slug %q already in use", form.Slug)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.insert_form", err)
			return
		}
		app.Catalog.Invalidate(form.ID, form.Slug)

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id":      form.ID,
			"version": form.Version,
		})
	}
}

func ListForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := app.Store.ListForms(r.Context())
		if err != nil {
			httpx.LogInternalError(w, "db.get_forms", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"forms": forms,
		})
	}
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId := chi.URLParam(r, "id")

		form, err := app.Store.GetFormByID(r.Context(), formId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "get_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		render.JSON(w, r, form)
	}
}

func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := decodeForm(w, r)
		if !ok {
			return
		}
		form.ID = chi.URLParam(r, "id")
		if form.Version < 1 {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.version", "missing form version")
			return
		}

		// the slug may change, so drop the old one from the cache too
		previous, err := app.Store.GetFormByID(r.Context(), form.ID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		err = app.Store.UpdateForm(r.Context(), &form)
		switch {
		case errors.Is(err, database.ErrNotFound):
			httpx.LogNotFound(w, "update_form", form.ID)
			return
		case errors.Is(err, database.ErrConflict):
			httpx.LogStatus(w, http.StatusConflict, log.DebugLevel, "db.update_form.verify.conflict")
			return
		case errors.Is(err, database.ErrSlugTaken):
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "db.update_form.slug", "slug %q already in use", form.Slug)
			return
		case err != nil:
			httpx.LogInternalError(w, "db.update_form", err)
			return
		}
		app.Catalog.Invalidate(form.ID, form.Slug)
		app.Catalog.Invalidate("", previous.Slug)

		render.JSON(w, r, map[string]any{
			"id":      form.ID,
			"version": form.Version,
		})
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formId := chi.URLParam(r, "id")

		form, err := app.Store.GetFormByID(r.Context(), formId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "delete_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		err = app.Store.DeleteForm(r.Context(), formId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "delete_form", formId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.delete_form", err)
			return
		}
		app.Catalog.Invalidate(form.ID, form.Slug)

		w.WriteHeader(http.StatusNoContent)
	}
}

func GetFormSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := database.SubmissionFilter{
			FormID: chi.URLParam(r, "id"),
			Status: model.SubmissionStatus(r.URL.Query().Get("status")),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.query.status", "invalid status %q", filter.Status)
			return
		}
		var err error
		if filter.Limit, err = intParam(r, "limit"); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.query.limit")
			return
		}
		if filter.Offset, err = intParam(r, "offset"); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.query.offset")
			return
		}

		submissions, err := app.Store.ListSubmissions(r.Context(), filter)
		if err != nil {
			httpx.LogInternalError(w, "db.get_submissions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"submissions": submissions,
		})
	}
}

func GetSubmission(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submissionId := chi.URLParam(r, "id")

		rec, err := app.Store.GetSubmission(r.Context(), submissionId)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "get_submission", submissionId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_submission", err)
			return
		}

		render.JSON(w, r, rec)
	}
}

func UpdateSubmissionStatus(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submissionId := chi.URLParam(r, "id")

		body := struct {
			Status model.SubmissionStatus `json:"status"`
		}{}
		err := render.DecodeJSON(r.Body, &body)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if !body.Status.Valid() {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.status", "invalid status %q", body.Status)
			return
		}

		err = app.Store.UpdateSubmissionStatus(r.Context(), submissionId, body.Status)
		if errors.Is(err, database.ErrNotFound) {
			httpx.LogNotFound(w, "update_submission", submissionId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.update_submission", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// decodeForm reads and validates a form definition from the request body,
// answering 400 on failure.
func decodeForm(w http.ResponseWriter, r *http.Request) (form model.FormConfig, ok bool) {
	err := render.DecodeJSON(r.Body, &form)
	if err != nil {
		httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
		return
	}

	deriveFieldNames(form.Fields)
	if err = form.Validate(); err != nil {
		httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.validate_form", "%s", err)
		return
	}
	return form, true
}

// deriveFieldNames names unnamed fields after their label, numbering
// repeated names.
func deriveFieldNames(fields []model.FormFieldConfig) {
	used := make(map[string]bool, len(fields))
	for _, f := range fields {
		used[f.Name] = true
	}

	for i, f := range fields {
		if f.Name != "" || f.Label == "" {
			continue
		}
		base := strings.ToLower(f.Label)
		base = reNoIdent.ReplaceAllLiteralString(base, " ")
		base = strings.Join(strings.Fields(base), "_")
		if base == "" {
			continue
		}

		name := base
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s__%d", base, n)
		}
		used[name] = true
		fields[i].Name = name
	}
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
