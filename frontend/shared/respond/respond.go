package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ValidationError rejects a request before any write. Fields maps field name to message.
type ValidationError struct {
	Fields map[string]string
}

func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records another field error and returns e for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// OrNil returns nil when no field error was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NotFoundError names an external identifier that did not resolve.
type NotFoundError struct {
	Field   string
	Message string
}

func NotFound(field, format string, args ...any) *NotFoundError {
	return &NotFoundError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// UpstreamIOError reports an upload that could not be read at all.
type UpstreamIOError struct {
	Err error
}

func (e *UpstreamIOError) Error() string {
	return "Failed to process file: " + e.Err.Error()
}

func (e *UpstreamIOError) Unwrap() error {
	return e.Err
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response failed", slog.Any("err", err))
	}
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Err maps err onto the HTTP error taxonomy. Unknown errors are logged and hidden.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	var nf *NotFoundError
	var upstream *UpstreamIOError
	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, verr.Fields)
	case errors.As(err, &nf):
		field := nf.Field
		if field == "" {
			field = "detail"
		}
		JSON(w, http.StatusNotFound, map[string]string{field: nf.Message})
	case errors.As(err, &upstream):
		Error(w, http.StatusBadRequest, upstream.Error())
	default:
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// Decode reads a JSON body into target, rejecting trailing garbage.
func Decode(r *http.Request, target any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(target); err != nil {
		return Invalid("body", "invalid JSON body")
	}
	if dec.More() {
		return Invalid("body", "unexpected data after JSON body")
	}
	return nil
}

// IDParam parses a positive integer route parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// DecodeForm reads a JSON body, or flattens a urlencoded/multipart form into the same shape.
// Form values arrive as strings; target fields should accept that (see FlexInt).
func DecodeForm(r *http.Request, target any, maxBytes int64) error {
	ct := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return Invalid("body", "invalid form body")
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return Invalid("body", "invalid form body")
		}
	default:
		return Decode(r, target)
	}
	flat := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return Invalid("body", err.Error())
	}
	return nil
}
