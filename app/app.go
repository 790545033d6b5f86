package app

import (
	"github.com/go-chi/oauth"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/config"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/database"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/forms"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/httpx"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/metrics"
	"github.com/ncklrs/next-sanity-embedded-starter-sub001/submission"
)

type App struct {
	*database.Store
	*oauth.BearerServer
	config.Config

	Catalog     *forms.Catalog
	Submissions *submission.Service
	Limiter     *httpx.RateLimiter
	Metrics     *metrics.Metrics
}
