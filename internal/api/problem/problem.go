package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

const contentType = "application/problem+json"

type ProblemDetails struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	Errors   map[string]interface{} `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

func WithInstance(instance string) Option {
	return func(p *ProblemDetails) {
		p.Instance = instance
	}
}

func WithErrors(errs map[string]interface{}) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if env == "development" || env == "test" {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}

	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	// Log error with structured logging from context
	if err != nil && status >= 500 {
		// Log server errors (5xx) at error level
		logger := zerolog.Ctx(r.Context())
		logger.Error().
			Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	} else if err != nil && status >= 400 {
		// Log client errors (4xx) at warn level
		logger := zerolog.Ctx(r.Context())
		logger.Warn().
			Err(err).
			Int("status", status).
			Str("type", typ).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	WriteProblem(w, problem)
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":\"%s\",\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}

const typeBase = "https://listsync.dev/problems/"

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthenticated:
		return http.StatusUnauthorized
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err as a problem document. Domain errors carry messages
// written for clients, so their text is always the detail; everything else
// is an internal error whose text only leaks outside production.
func FromError(w http.ResponseWriter, r *http.Request, err error, env string) {
	status := StatusFor(err)
	title := http.StatusText(status)
	typ := TypeFor(status)

	var opts []Option
	var domainErr *errs.Error
	switch {
	case status == http.StatusRequestEntityTooLarge:
		opts = append(opts, WithDetail("Request body too large"))
	case errors.As(err, &domainErr) && status != http.StatusInternalServerError:
		opts = append(opts, WithDetail(domainErr.Error()))
		if domainErr.Field != "" {
			opts = append(opts, WithErrors(map[string]interface{}{domainErr.Field: domainErr.Error()}))
		}
	case env == "production":
		opts = append(opts, WithDetail("Something went wrong"))
	}

	Write(w, r, status, typ, title, err, env, opts...)
}

// TypeFor returns the problem type URI used for status.
func TypeFor(status int) string {
	return typeBase + slug(status)
}

func slug(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not-found"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusBadRequest:
		return "validation"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "payload-too-large"
	case http.StatusTooManyRequests:
		return "rate-limited"
	default:
		return "internal"
	}
}
