package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the timetable service.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory (sqlite only)
	Data string
	// Driver is the schedule backend: "remote", "sqlite" or "postgres"
	Driver string
	// DSN points to the sqlite file or postgres database
	DSN string
	// Version is the current version of server
	Version string

	// Remote schedule API
	RemoteURL       string        // TIMETABLE_REMOTE_URL
	RemoteToken     string        // TIMETABLE_REMOTE_TOKEN
	RemoteRateLimit float64       // TIMETABLE_REMOTE_RATE_LIMIT (requests/second, default: 5)
	RemoteTimeout   time.Duration // TIMETABLE_REMOTE_TIMEOUT (default: 10s)

	// Active term
	SchoolYear string // TIMETABLE_SCHOOL_YEAR
	Semester   string // TIMETABLE_SEMESTER

	// Institutional window, "HH:MM"
	WorkStart  string // TIMETABLE_WORK_START (default: 07:30)
	WorkEnd    string // TIMETABLE_WORK_END (default: 16:30)
	LunchStart string // TIMETABLE_LUNCH_START (default: 12:00)
	LunchEnd   string // TIMETABLE_LUNCH_END (default: 13:00)
	LunchRule  bool   // TIMETABLE_LUNCH_RULE (default: true)

	SuggestionCount int           // TIMETABLE_SUGGESTION_COUNT (default: 5)
	SnapshotTTL     time.Duration // TIMETABLE_SNAPSHOT_TTL (default: 30s)

	// APIRateLimit is the per-client request rate of the HTTP API.
	APIRateLimit float64 // TIMETABLE_API_RATE_LIMIT (requests/second, default: 10)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from TIMETABLE_* environment variables.
// Fields already set are only overwritten by non-empty variables.
func (p *Profile) FromEnv() {
	str := func(key string, dst *string, defaultValue string) {
		*dst = getEnvOrDefault(key, firstNonEmpty(*dst, defaultValue))
	}

	str("TIMETABLE_MODE", &p.Mode, "dev")
	str("TIMETABLE_ADDR", &p.Addr, "")
	str("TIMETABLE_DRIVER", &p.Driver, "sqlite")
	str("TIMETABLE_DSN", &p.DSN, "")
	str("TIMETABLE_DATA", &p.Data, "")
	str("TIMETABLE_REMOTE_URL", &p.RemoteURL, "")
	str("TIMETABLE_REMOTE_TOKEN", &p.RemoteToken, "")
	str("TIMETABLE_SCHOOL_YEAR", &p.SchoolYear, "")
	str("TIMETABLE_SEMESTER", &p.Semester, "")
	str("TIMETABLE_WORK_START", &p.WorkStart, "07:30")
	str("TIMETABLE_WORK_END", &p.WorkEnd, "16:30")
	str("TIMETABLE_LUNCH_START", &p.LunchStart, "12:00")
	str("TIMETABLE_LUNCH_END", &p.LunchEnd, "13:00")

	if v, err := strconv.Atoi(os.Getenv("TIMETABLE_PORT")); err == nil {
		p.Port = v
	} else if p.Port == 0 {
		p.Port = 8081
	}
	if v, err := strconv.ParseFloat(os.Getenv("TIMETABLE_REMOTE_RATE_LIMIT"), 64); err == nil {
		p.RemoteRateLimit = v
	} else if p.RemoteRateLimit == 0 {
		p.RemoteRateLimit = 5
	}
	if v, err := strconv.ParseFloat(os.Getenv("TIMETABLE_API_RATE_LIMIT"), 64); err == nil {
		p.APIRateLimit = v
	} else if p.APIRateLimit == 0 {
		p.APIRateLimit = 10
	}
	if v, err := time.ParseDuration(os.Getenv("TIMETABLE_REMOTE_TIMEOUT")); err == nil {
		p.RemoteTimeout = v
	} else if p.RemoteTimeout == 0 {
		p.RemoteTimeout = 10 * time.Second
	}
	if v, err := strconv.Atoi(os.Getenv("TIMETABLE_SUGGESTION_COUNT")); err == nil {
		p.SuggestionCount = v
	} else if p.SuggestionCount == 0 {
		p.SuggestionCount = 5
	}
	if v, err := time.ParseDuration(os.Getenv("TIMETABLE_SNAPSHOT_TTL")); err == nil {
		p.SnapshotTTL = v
	} else if p.SnapshotTTL == 0 {
		p.SnapshotTTL = 30 * time.Second
	}
	if v, ok := os.LookupEnv("TIMETABLE_LUNCH_RULE"); ok {
		p.LunchRule = strings.EqualFold(v, "true") || v == "1"
	} else {
		p.LunchRule = true
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the mode and checks the driver settings.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Driver {
	case "remote":
		if p.RemoteURL == "" {
			return errors.New("remote driver requires TIMETABLE_REMOTE_URL")
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("postgres driver requires TIMETABLE_DSN")
		}
	case "sqlite":
		if p.DSN == "" {
			if p.Data == "" {
				p.Data = "."
			}
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
			p.Data = dataDir
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("timetable_%s.db", p.Mode))
		}
	default:
		return errors.Errorf("unknown driver %q: expected remote, sqlite or postgres", p.Driver)
	}

	if p.SuggestionCount <= 0 {
		p.SuggestionCount = 5
	}
	return nil
}

// Term returns the active term configured for the instance.
func (p *Profile) Term() (schoolYear, semester string) {
	return p.SchoolYear, p.Semester
}
