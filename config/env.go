package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings is the typed process configuration read from the environment.
// Connection strings stay with the Init* helpers.
type Settings struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	MongoDB  string `env:"MONGO_DB" envDefault:"yootherapy"`

	ConsentEnforced  bool     `env:"CONSENT_ENFORCED" envDefault:"false"`
	RequiredConsents []string `env:"REQUIRED_CONSENTS" envDefault:"data,ai" envSeparator:","`

	PolicyWindow   int           `env:"POLICY_WINDOW" envDefault:"8"`
	PolicyCacheTTL time.Duration `env:"POLICY_CACHE_TTL" envDefault:"10m"`

	ASRBackend  string        `env:"ASR_BACKEND" envDefault:"none"` // google|http|none
	ASRHTTPURL  string        `env:"ASR_HTTP_URL"`
	ASRTimeout  time.Duration `env:"ASR_HTTP_TIMEOUT" envDefault:"60s"`
	VADHTTPURL  string        `env:"VAD_HTTP_URL"`
	FFmpegPath  string        `env:"FFMPEG_BINARY" envDefault:"ffmpeg"`
	ASRLanguage string        `env:"ASR_DEFAULT_LANGUAGE" envDefault:"en"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"` // gcs|local
	GCSBucket      string `env:"GCS_BUCKET"`
	MediaDir       string `env:"MEDIA_DIR" envDefault:"./media"`

	VertexProject  string `env:"VERTEX_PROJECT_ID"`
	VertexLocation string `env:"VERTEX_LOCATION" envDefault:"us-central1"`
	VertexModel    string `env:"VERTEX_MODEL" envDefault:"gemini-1.5-flash"`

	AnalysisWorkers int    `env:"ANALYSIS_WORKERS" envDefault:"2"`
	AnalysisStream  string `env:"ANALYSIS_STREAM" envDefault:"speech:analysis"`
	AnalysisGroup   string `env:"ANALYSIS_GROUP" envDefault:"speech-workers"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTIssuer   string `env:"JWT_ISSUER"`
	JWTAudience string `env:"JWT_AUDIENCE"`
}

func Load() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return s, err
	}
	return s, s.validate()
}

func (s *Settings) validate() error {
	s.ASRBackend = strings.ToLower(strings.TrimSpace(s.ASRBackend))
	s.StorageBackend = strings.ToLower(strings.TrimSpace(s.StorageBackend))

	var errs []error
	switch s.ASRBackend {
	case "google", "none":
	case "http":
		if s.ASRHTTPURL == "" {
			errs = append(errs, errors.New("ASR_HTTP_URL is required when ASR_BACKEND=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ASR_BACKEND %q", s.ASRBackend))
	}
	switch s.StorageBackend {
	case "local":
	case "gcs":
		if s.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required when STORAGE_BACKEND=gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", s.StorageBackend))
	}
	if s.PolicyWindow <= 0 || s.PolicyWindow > 64 {
		errs = append(errs, fmt.Errorf("POLICY_WINDOW must be in 1..64, got %d", s.PolicyWindow))
	}
	if s.AnalysisWorkers <= 0 {
		s.AnalysisWorkers = 1
	}

	required := s.RequiredConsents[:0]
	for _, c := range s.RequiredConsents {
		if c = strings.TrimSpace(c); c != "" {
			required = append(required, c)
		}
	}
	s.RequiredConsents = required

	return errors.Join(errs...)
}
