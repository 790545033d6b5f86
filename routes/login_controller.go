package routes

import (
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/app"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/httpx"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
)

var reRefresh = regexp.MustCompile(`(?i)^refresh\s+(.*)`)

func Login(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "login.basic_auth")
			return
		}

		grant(app, w, r, url.Values{
			"grant_type": {"password"},
			"username":   {user},
			"password":   {pass},
		})
	}
}

func Refresh(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match := reRefresh.FindStringSubmatch(r.Header.Get("authorization"))
		if len(match) == 0 {
			httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "refresh.token")
			return
		}

		grant(app, w, r, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {match[1]},
		})
	}
}

// grant replays the request as an OAuth token request with the given body.
func grant(app app.App, w http.ResponseWriter, r *http.Request, body url.Values) {
	encoded := body.Encode()
	r.Body = io.NopCloser(strings.NewReader(encoded))
	r.Header.Set("content-type", "application/x-www-form-urlencoded")
	r.Header.Set("content-length", strconv.Itoa(len(encoded)))
	r.ContentLength = int64(len(encoded))
	r.Form = nil
	r.PostForm = nil
	app.UserCredentials(w, r)
}
