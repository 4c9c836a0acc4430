// Package config reads the registry's runtime settings from the process
// environment (optionally seeded from a .env file).
package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// SessionStoreType selects where session state is kept.
type SessionStoreType string

const (
	SessionStoreCookie SessionStoreType = "cookie"
	SessionStoreRedis  SessionStoreType = "redis"
)

// LoadEnv loads variables from a .env file in the working directory.
// Variables that are already set win over the file. A missing file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("PR_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("PR_DEBUG") == "true"
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("PR_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

func GetListen() string {
	return os.Getenv("LISTEN")
}

func GetPort() int {
	return getInt("PORT", 5000)
}

// GetWebDomain is the only Host the server answers to. Empty allows any.
func GetWebDomain() string {
	return os.Getenv("WEB_DOMAIN")
}

// GetTrustedProxies lists the proxies (IPs or CIDRs) whose X-Forwarded-For
// and X-Real-IP headers are believed, from the comma separated
// TRUSTED_PROXIES. Empty means none: the client IP is the peer address.
func GetTrustedProxies() []string {
	var proxies []string
	for _, p := range strings.Split(os.Getenv("TRUSTED_PROXIES"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}

func GetSessionSecret() string {
	return os.Getenv("SESSION_SECRET")
}

func GetSessionStore() SessionStoreType {
	switch SessionStoreType(strings.ToLower(os.Getenv("SESSION_STORE"))) {
	case SessionStoreRedis:
		return SessionStoreRedis
	default:
		return SessionStoreCookie
	}
}

func IsSessionSecure() bool {
	return os.Getenv("SESSION_SECURE") == "true"
}

// GetIdleTimeout is the inactivity window after which a session is dropped.
func GetIdleTimeout() time.Duration {
	return time.Duration(getInt("SESSION_IDLE_TIMEOUT", 120)) * time.Second
}

func GetRedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}

func GetRedisPassword() string {
	return os.Getenv("REDIS_PASSWORD")
}

func GetAdminUsername() string {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	return username
}

func GetAdminPassword() string {
	return os.Getenv("ADMIN_PASSWORD")
}

// GetLoginRateLimit is the number of login attempts allowed per client per minute.
func GetLoginRateLimit() int {
	return getInt("LOGIN_RATE_LIMIT", 10)
}

func GetDBInitRetries() int {
	return getInt("DB_INIT_RETRIES", 10)
}

func GetDBInitDelay() time.Duration {
	return time.Duration(getInt("DB_INIT_DELAY", 5)) * time.Second
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
