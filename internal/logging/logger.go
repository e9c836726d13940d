package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"sealtrail/internal/infra/idgen"

	"github.com/gin-gonic/gin"
)

const RequestIDHeader = "X-Request-ID"

type Environment struct {
	Service string
	Version string
	Commit  string
}

type ctxKey struct{}

type RequestFields struct {
	mu     sync.Mutex
	fields map[string]any
}

var newRequestID = idgen.Prefixed("req_", idgen.Random())

func NewJSONLogger(level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, level)
}

func NewJSONLoggerTo(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(h)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware logs one http_request event per request. Handlers attach
// extra fields with AddField.
func Middleware(logger *slog.Logger, env Environment) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = newRequestID()
		}
		c.Header(RequestIDHeader, reqID)
		fields := &RequestFields{fields: map[string]any{}}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, fields))

		c.Next()

		status := c.Writer.Status()
		event := map[string]any{
			"timestamp":     time.Now().UTC().Format(time.RFC3339Nano),
			"service":       env.Service,
			"version":       env.Version,
			"commit":        env.Commit,
			"request_id":    reqID,
			"method":        c.Request.Method,
			"path":          c.Request.URL.Path,
			"route":         c.FullPath(),
			"remote_addr":   c.ClientIP(),
			"user_agent":    c.Request.UserAgent(),
			"status_code":   status,
			"duration_ms":   time.Since(start).Milliseconds(),
			"response_size": c.Writer.Size(),
		}
		if status >= 500 {
			event["outcome"] = "error"
		} else {
			event["outcome"] = "success"
		}
		if len(c.Errors) > 0 {
			event["errors"] = c.Errors.String()
		}
		for k, v := range snapshotFields(fields) {
			event[k] = v
		}
		logger.Info("http_request", slog.Any("event", event))
	}
}

func AddField(ctx context.Context, key string, value any) {
	fields, ok := ctx.Value(ctxKey{}).(*RequestFields)
	if !ok || fields == nil {
		return
	}
	fields.mu.Lock()
	defer fields.mu.Unlock()
	fields.fields[key] = value
}

func snapshotFields(fields *RequestFields) map[string]any {
	if fields == nil {
		return nil
	}
	fields.mu.Lock()
	defer fields.mu.Unlock()
	out := make(map[string]any, len(fields.fields))
	for k, v := range fields.fields {
		out[k] = v
	}
	return out
}
