package middleware

import (
	"net/http"
	"time"

	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/util/metrics"
	"github.com/medreg/patient-registry/web/locale"
	"github.com/medreg/patient-registry/web/session"

	"github.com/gin-gonic/gin"
)

// DefaultIdleTimeout is how long a session may stay unused.
const DefaultIdleTimeout = 120 * time.Second

// IdleConfig configures IdleTimeout.
type IdleConfig struct {
	Timeout     time.Duration
	ExemptPaths []string
	Now         func() time.Time
}

func (cfg IdleConfig) exempt(path string) bool {
	for _, p := range cfg.ExemptPaths {
		if p == path {
			return true
		}
	}
	return false
}

// IdleTimeout drops sessions that have been inactive for longer than
// cfg.Timeout and otherwise slides the activity window forward. Requests
// to exempt paths neither expire nor refresh the session.
func IdleTimeout(cfg IdleConfig) gin.HandlerFunc {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return func(c *gin.Context) {
		if cfg.exempt(c.Request.URL.Path) {
			c.Next()
			return
		}

		now := cfg.Now()
		if last, ok := session.LastActivity(c); ok && now.Sub(last) > cfg.Timeout {
			if user := session.GetLoginUser(c); user != nil {
				logger.Infof("%s logged out after %s of inactivity", user.Username, now.Sub(last).Truncate(time.Second))
			}
			metrics.SessionTimeouts.Inc()
			if err := session.ClearSession(c); err != nil {
				logger.Warning("Unable to clear session:", err)
			}
			if err := session.AddFlash(c, session.Warning, locale.T(c, locale.IdleLoggedOut)); err != nil {
				logger.Warning("Unable to save flash message:", err)
			}
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		if err := session.Touch(c, now); err != nil {
			logger.Warning("Unable to save session activity:", err)
		}
		c.Next()
	}
}

// RemainingSeconds reports how many whole seconds are left before the
// session idles out, never less than zero. A session without recorded
// activity has zero seconds left.
func RemainingSeconds(c *gin.Context, timeout time.Duration, now time.Time) int {
	last, ok := session.LastActivity(c)
	if !ok {
		return 0
	}
	remaining := int((timeout - now.Sub(last)).Seconds())
	return max(remaining, 0)
}
