package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "FORMSITE_"

type Config struct {
	Host        string        `koanf:"host"`
	Port        uint          `koanf:"port" validate:"max=65535"`
	DBUrl       string        `koanf:"db_url" validate:"required"`
	TokenSecret string        `koanf:"token_secret" validate:"required"`
	TokenTTL    time.Duration `koanf:"token_ttl" validate:"gt=0"`
	Debug       bool          `koanf:"debug"`
	LogFormat   string        `koanf:"log_format" validate:"oneof=text json"`

	// hostnames submitters may be redirected to, besides relative URLs
	AllowedRedirectHosts []string `koanf:"allowed_redirect_hosts"`
	IPHashSalt           string   `koanf:"ip_hash_salt"`

	Admin     AdminConfig     `koanf:"admin"`
	Forms     FormsConfig     `koanf:"forms"`
	Actions   ActionsConfig   `koanf:"actions"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Storage   StorageConfig   `koanf:"storage"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`

	Addr string `koanf:"-"`
}

type AdminConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type FormsConfig struct {
	SeedFile  string        `koanf:"seed_file"`
	CacheSize int           `koanf:"cache_size" validate:"gte=0"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

type ActionsConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from" validate:"omitempty,email"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type StorageConfig struct {
	Driver string   `koanf:"driver" validate:"omitempty,oneof=dir s3"`
	Dir    string   `koanf:"dir" validate:"required_if=Driver dir"`
	S3     S3Config `koanf:"s3"`
}

type S3Config struct {
	Bucket   string `koanf:"bucket"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
	Prefix   string `koanf:"prefix"`
}

type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
}

var defaults = map[string]any{
	"host":             "0.0.0.0",
	"port":             80,
	"db_url":           "formsite.sqlite",
	"token_ttl":        "2m",
	"log_format":       "text",
	"forms.cache_size": 128,
	"forms.cache_ttl":  "1m",
	"actions.timeout":  "10s",
	"smtp.port":        587,
	"storage.driver":   "dir",
	"storage.dir":      "submissions",
	"rate_limit.rps":   1.0,
	"rate_limit.burst": 5,
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file named by -config, FORMSITE_ environment variables and
// explicitly set flags. Nested keys are separated by a double underscore in
// environment variables, as in FORMSITE_SMTP__HOST.
func Load(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("formsite", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "", "path to YAML config file")
	fs.String("host", "", "listen host name (default 0.0.0.0)")
	fs.Uint("port", 0, "listen port number (default 80)")
	fs.String("db-url", "", "path to SQLite3 DB file (default formsite.sqlite)")
	fs.String("token-secret", "", "secret key for token encryption and decryption")
	fs.Duration("token-ttl", 0, "token TTL (default 2m)")
	fs.Bool("debug", false, "log at DEBUG level")
	fs.String("forms", "", "YAML file of forms to seed at startup")
	if err = fs.Parse(args); err != nil {
		return
	}

	k := koanf.New(".")
	if *configFile != "" {
		if err = k.Load(file.Provider(*configFile), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load %s: %w", *configFile, err)
		}
	}

	err = k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
		case "forms":
			k.Set("forms.seed_file", f.Value.String())
		default:
			k.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
		}
	})

	if err = k.Unmarshal("", &cfg); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
	err = cfg.validate()
	return
}

func (cfg Config) validate() error {
	var msgs []string
	err := validator.New().Struct(cfg)
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("invalid parameter %s (%s)", fe.Namespace(), fe.Tag()))
		}
	case err != nil:
		return err
	}
	if cfg.SMTP.Enabled() && cfg.SMTP.From == "" {
		msgs = append(msgs, "missing parameter smtp.from")
	}
	if cfg.Storage.Driver == "s3" && cfg.Storage.S3.Bucket == "" {
		msgs = append(msgs, "missing parameter storage.s3.bucket")
	}
	if len(msgs) > 0 {
		return errors.New(strings.Join(msgs, "; "))
	}
	return nil
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
