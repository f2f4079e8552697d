// Package httpapi serves the aggregated headlines over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"headlines/internal/classify"
	"headlines/internal/model"
	"headlines/internal/paginate"
	"headlines/internal/pipeline"
)

// PersistErrorHeader carries a persistence failure on list responses,
// which have no room for it in the body.
const PersistErrorHeader = "X-Persist-Error"

// Service is the part of pipeline.Service the API needs.
type Service interface {
	Refresh(ctx context.Context, force bool) (pipeline.RefreshResult, error)
	Headlines() []model.Record
	Status() pipeline.Status
}

// Deps holds the handler dependencies.
type Deps struct {
	Service Service
	Log     *slog.Logger
}

// NewHandler returns the HTTP handler for the API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(deps.Log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/headlines", handleHeadlines(deps))
		r.Get("/sources", handleSources(deps))
	})

	return r
}

type headlinesQuery struct {
	live       bool
	force      bool
	separate   bool
	paginated  bool
	newsPage   int
	socialPage int
	pageSize   int
	category   model.Category
}

func parseHeadlinesQuery(r *http.Request) (headlinesQuery, error) {
	q := r.URL.Query()
	hq := headlinesQuery{newsPage: 1, socialPage: 1, pageSize: paginate.DefaultPageSize}

	for name, dst := range map[string]*bool{
		"live":      &hq.live,
		"force":     &hq.force,
		"separate":  &hq.separate,
		"paginated": &hq.paginated,
	} {
		if !q.Has(name) {
			continue
		}
		v := q.Get(name)
		if v == "" {
			*dst = true
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return headlinesQuery{}, fmt.Errorf("invalid %s %q: must be a boolean", name, v)
		}
		*dst = b
	}

	for name, dst := range map[string]*int{
		"newsPage":   &hq.newsPage,
		"socialPage": &hq.socialPage,
		"pageSize":   &hq.pageSize,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return headlinesQuery{}, fmt.Errorf("invalid %s %q: must be an integer", name, v)
		}
		*dst = n
	}

	cat, err := classify.ParseCategory(q.Get("category"))
	if err != nil {
		return headlinesQuery{}, err
	}
	hq.category = cat
	return hq, nil
}

type separateResponse struct {
	News         []model.Record `json:"news"`
	Social       []model.Record `json:"social"`
	PersistError string         `json:"persistError,omitempty"`
}

type pageResponse struct {
	paginate.Page
	SourceStatus pipeline.Status `json:"sourceStatus"`
	PersistError string          `json:"persistError,omitempty"`
}

type separatePageResponse struct {
	News         paginate.Page   `json:"news"`
	Social       paginate.Page   `json:"social"`
	SourceStatus pipeline.Status `json:"sourceStatus"`
	PersistError string          `json:"persistError,omitempty"`
}

func handleHeadlines(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hq, err := parseHeadlinesQuery(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		var persistErr string
		if hq.live || hq.force {
			// A client that disconnects must not abort the cycle halfway.
			ctx := context.WithoutCancel(r.Context())
			if _, err := deps.Service.Refresh(ctx, hq.force); err != nil {
				deps.Log.Warn("refresh on request", "error", err, "request_id", requestIDFrom(r.Context()))
				persistErr = err.Error()
			}
		}

		records := deps.Service.Headlines()
		// The placeholder explains an empty store and is shown under any category.
		if len(records) == 1 && records[0].ID == pipeline.NoDataID {
			hq.category = ""
		}
		filter := paginate.Filter{Category: hq.category}

		switch {
		case hq.separate && hq.paginated:
			news := filter
			news.Kind = model.KindNews
			social := filter
			social.Kind = model.KindSocial
			writeJSON(w, http.StatusOK, separatePageResponse{
				News:         paginate.Paginate(records, news, hq.newsPage, hq.pageSize),
				Social:       paginate.Paginate(records, social, hq.socialPage, hq.pageSize),
				SourceStatus: deps.Service.Status(),
				PersistError: persistErr,
			})
		case hq.paginated:
			writeJSON(w, http.StatusOK, pageResponse{
				Page:         paginate.Paginate(records, filter, hq.newsPage, hq.pageSize),
				SourceStatus: deps.Service.Status(),
				PersistError: persistErr,
			})
		case hq.separate:
			news, social := paginate.Partition(byCategory(records, hq.category))
			writeJSON(w, http.StatusOK, separateResponse{News: news, Social: social, PersistError: persistErr})
		default:
			if persistErr != "" {
				w.Header().Set(PersistErrorHeader, persistErr)
			}
			writeJSON(w, http.StatusOK, byCategory(records, hq.category))
		}
	}
}

func handleSources(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Service.Status())
	}
}

func byCategory(records []model.Record, c model.Category) []model.Record {
	if c == "" {
		return records
	}
	out := []model.Record{}
	for _, r := range records {
		if r.Category == c {
			out = append(out, r)
		}
	}
	return out
}

type ctxKey struct{}

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", requestIDFrom(r.Context()))
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
