package middleware

import (
	apperrors "agenda/pkg/errors"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"mime"
	"net/http"
	"strings"
)

// ContentTypeValidation requires write requests that carry a body to send
// UTF-8 JSON.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requiresContentType(r.Method) || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if reason := checkJSONContentType(r.Header.Get("Content-Type")); reason != "" {
				log.Warn("Rejected request content type",
					"request_id", requestIDFrom(r),
					"content_type", r.Header.Get("Content-Type"),
					"method", r.Method,
					"path", r.URL.Path,
				)
				_ = httputil.WriteError(w, apperrors.UnsupportedMediaType(reason))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requiresContentType(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func checkJSONContentType(header string) string {
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil || mediaType != "application/json" {
		return "Content-Type must be application/json"
	}
	if charset, ok := params["charset"]; ok && !strings.EqualFold(charset, "utf-8") {
		return "Only the utf-8 charset is supported"
	}
	return ""
}
