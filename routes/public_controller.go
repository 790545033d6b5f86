package routes

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/app"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/forms"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/httpx"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/metrics"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/model"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/submission"
)

const (
	maxBodySize      = 1 << 20
	maxMultipartSize = 8 << 20
)

func PublicGetForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "ref")

		form, err := app.Catalog.Resolve(r.Context(), model.FormReference{ID: ref, Slug: ref})
		if errors.Is(err, forms.ErrNotFound) {
			httpx.LogJSON(w, r, http.StatusNotFound, log.DebugLevel, "get_form.not_found", submission.MsgFormNotFound)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_form", err)
			return
		}

		def, err := forms.NewDefinition(form)
		if err != nil {
			httpx.LogJSON(w, r, http.StatusInternalServerError, log.ErrorLevel, "get_form.compile", submission.MsgInvalidConfig)
			return
		}

		render.JSON(w, r, def)
	}
}

func PublicSubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := parseSubmission(w, r)
		if err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body", "invalid request body: %s", err)
			return
		}

		attempt := model.SubmissionAttempt{
			Form:     formReference(r, data),
			RawData:  data,
			Honeypot: stringValue(data[model.HoneypotField]),
			Metadata: model.SubmissionMetadata{
				UserAgent: r.UserAgent(),
				Referrer:  r.Referer(),
				IPHash:    hashIP(app.IPHashSalt, httpx.ClientIP(r)),
			},
		}
		redirect := stringValue(data[model.RedirectField])
		errorRedirect := stringValue(data[model.ErrorRedirectField])

		res, err := app.Submissions.Submit(r.Context(), attempt)
		if err != nil {
			// already logged by the service
			res = submission.Result{Error: submission.MsgFailed, Outcome: metrics.OutcomeError}
		}

		if res.Success {
			if target, ok := redirectTarget(redirect, app.AllowedRedirectHosts); ok {
				http.Redirect(w, r, target.String(), http.StatusSeeOther)
				return
			}
		} else if target, ok := redirectTarget(errorRedirect, app.AllowedRedirectHosts); ok {
			q := target.Query()
			q.Set("error", res.Message())
			target.RawQuery = q.Encode()
			http.Redirect(w, r, target.String(), http.StatusSeeOther)
			return
		}

		render.Status(r, resultStatus(res))
		render.JSON(w, r, res)
	}
}

func resultStatus(res submission.Result) int {
	switch res.Outcome {
	case metrics.OutcomeAccepted, metrics.OutcomeSpam:
		return http.StatusCreated
	case metrics.OutcomeInvalid:
		return http.StatusBadRequest
	case metrics.OutcomeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// parseSubmission decodes a JSON, urlencoded or multipart body into field
// data. Uploaded files are reduced to their file names.
func parseSubmission(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("content-type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return fromValues(r.PostForm), nil

	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartSize)
		if err := r.ParseMultipartForm(maxBodySize); err != nil {
			return nil, err
		}
		data := fromValues(r.MultipartForm.Value)
		for name, files := range r.MultipartForm.File {
			names := make([]string, 0, len(files))
			for _, f := range files {
				names = append(names, f.Filename)
			}
			data[name] = names
		}
		return data, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	data := map[string]any{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func fromValues(values url.Values) map[string]any {
	data := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			data[k] = v[0]
		} else {
			data[k] = v
		}
	}
	return data
}

// formReference takes the form from the URL when present, otherwise from
// the reserved keys, or the formId/formSlug keys of JSON clients.
func formReference(r *http.Request, data map[string]any) model.FormReference {
	if ref := chi.URLParam(r, "ref"); ref != "" {
		return model.FormReference{ID: ref, Slug: ref}
	}

	ref := model.FormReference{
		ID:   stringValue(data[model.FormIDField]),
		Slug: stringValue(data[model.FormSlugField]),
	}
	if ref.IsZero() {
		ref.ID = stringValue(data["formId"])
		ref.Slug = stringValue(data["formSlug"])
		delete(data, "formId")
		delete(data, "formSlug")
	}
	return ref
}

func stringValue(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	}
	return ""
}

// redirectTarget accepts relative paths and absolute http(s) URLs on one
// of the allowed hosts.
func redirectTarget(raw string, allowedHosts []string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		log.Debugf("redirect.parse: %s", err)
		return nil, false
	}

	if !u.IsAbs() && u.Host == "" {
		// browsers read "/\host" as "//host"
		return u, strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") && !strings.Contains(raw, "\\")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	for _, host := range allowedHosts {
		if strings.EqualFold(u.Hostname(), host) {
			return u, true
		}
	}
	log.Debugf("redirect.host_not_allowed: %s", u.Host)
	return nil, false
}

func hashIP(salt, ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}
