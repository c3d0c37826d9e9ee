package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	chiMiddleware "github.com/go-chi/chi/middleware"
)

const maxLoggedBody = 2048

const redacted = "[REDACTED]"

// credentialMarkers match any key or header that carries a secret.
var credentialMarkers = []string{"password", "token", "secret", "authorization", "cookie", "api_key"}

// privateKeys hold text one user wrote to another. Their length is logged,
// never their content.
var privateKeys = map[string]bool{
	"message":          true,
	"request_message":  true,
	"response_message": true,
}

// LoggingMiddleware writes one access line per request with the request
// body, credentials and message text redacted. Error statuses raise the
// level so failed permission calls stand out.
func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger
			if traceID := w.Header().Get("X-Trace-ID"); traceID != "" {
				reqLogger = logger.With("trace_id", traceID)
			}

			var reqBody []byte
			if r.Body != nil && r.Method != http.MethodGet {
				reqBody, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			var respBody bytes.Buffer
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&respBody)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", ww.BytesWritten(),
				"remote_addr", r.RemoteAddr,
				"headers", redactHeaders(r.Header),
			}
			if len(reqBody) > 0 {
				attrs = append(attrs, "request_body", redactBody(reqBody))
			}
			if status >= http.StatusBadRequest {
				attrs = append(attrs, "response_body", redactBody(respBody.Bytes()))
			}

			reqLogger.Log(r.Context(), levelFor(status), "http request", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func isCredential(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range credentialMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isCredential(name) {
			out[name] = redacted
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// redactBody returns a loggable form of a JSON body. Anything that is not
// JSON is reduced to its size.
func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "[non-json body, " + strconv.Itoa(len(body)) + " bytes]"
	}

	out, err := json.Marshal(redactValue(doc))
	if err != nil {
		return "[unloggable body]"
	}
	if len(out) > maxLoggedBody {
		return string(out[:maxLoggedBody]) + "...[truncated]"
	}
	return string(out)
}

func redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for key, inner := range val {
			switch {
			case isCredential(key):
				out[key] = redacted
			case privateKeys[strings.ToLower(key)]:
				if text, ok := inner.(string); ok {
					out[key] = "[" + strconv.Itoa(len(text)) + " chars]"
				} else {
					out[key] = redacted
				}
			default:
				out[key] = redactValue(inner)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner)
		}
		return out
	}
	return v
}
