package middleware

import (
	"strings"
	"time"

	"classroom-roster/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LogEntryKey holds the request scoped *logrus.Entry in the gin context.
const LogEntryKey = "log_entry"

var probePaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/live":    true,
	"/metrics": true,
}

// Logger logs one line per request. Probe endpoints are logged at debug so
// they do not drown the roster traffic.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
		})
		c.Set(LogEntryKey, entry)

		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"status_code": status,
			"latency":     time.Since(start),
			"client_ip":   c.ClientIP(),
		}
		if route := c.FullPath(); route != "" {
			fields["route"] = route
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields["query"] = q
		}
		if len(c.Errors) > 0 {
			fields["error"] = strings.TrimSpace(c.Errors.String())
		}

		entry.WithFields(fields).Log(levelFor(c.Request.URL.Path, status, len(c.Errors) > 0), "Request completed")
	}
}

func levelFor(path string, status int, hasErrors bool) logrus.Level {
	switch {
	case hasErrors || status >= 500:
		return logrus.ErrorLevel
	case status >= 400:
		return logrus.WarnLevel
	case probePaths[path]:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// RequestLogger returns the entry set by Logger, or the global logger when
// the middleware is not installed.
func RequestLogger(c *gin.Context) *logrus.Entry {
	if v, ok := c.Get(LogEntryKey); ok {
		if entry, ok := v.(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(logger.GetLogger())
}
