package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/mind-engage/mindengage-grades/internal/grading"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string
	TokenTTL       time.Duration
	AdminUser      string
	AdminPassHash  string // bcrypt

	CORSOrigins []string

	GradeScaleFile   string
	BatchConcurrency int
	UniformCredits   float64
}

// LoadDotEnv loads path into the environment if it exists. Variables that
// are already set win.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "stat %s", path)
	}
	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defOrigins := "http://localhost:3000,http://localhost:3010"
	if mode == ModeOnline {
		defOrigins = "https://grades.mindengage.ai"
	}
	return Config{
		Mode:             mode,
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
		SiteID:           envOr("SITE_ID", "local"),
		DBDriver:         envOr("DB_DRIVER", "sqlite"),
		DBDSN:            envOr("DB_DSN", ""),
		AuthHMACSecret:   envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		TokenTTL:         envDuration("AUTH_TOKEN_TTL", 8*time.Hour),
		AdminUser:        envOr("ADMIN_USER", "admin"),
		AdminPassHash:    envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOrigins:      csvOr("CORS_ORIGINS", defOrigins),
		GradeScaleFile:   os.Getenv("GRADE_SCALE_FILE"),
		BatchConcurrency: envInt("BATCH_CONCURRENCY", 4),
		UniformCredits:   envFloat("UNIFORM_CREDITS", 3),
	}
}

// LoadScale reads the letter-grade range table from a json, yaml or toml
// file with a top-level "bands" list. An empty path yields the default table.
func LoadScale(path string) (grading.Scale, error) {
	if path == "" {
		return grading.DefaultScale(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return grading.Scale{}, errors.Wrapf(err, "read grade scale %s", path)
	}
	var bands []grading.Band
	if err := v.UnmarshalKey("bands", &bands); err != nil {
		return grading.Scale{}, errors.Wrapf(err, "decode grade scale %s", path)
	}
	if len(bands) == 0 {
		return grading.Scale{}, errors.Wrapf(grading.ErrInvalidInput, "grade scale %s has no bands", path)
	}
	sc, err := grading.NewScale(bands)
	if err != nil {
		return grading.Scale{}, errors.Wrapf(err, "grade scale %s", path)
	}
	return sc, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
		return n
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil && f >= 0 {
		return f
	}
	return def
}
func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil && d > 0 {
		return d
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
