// Package api exposes lookups over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zipcode-cli/internal/lookup"
	"github.com/sells-group/zipcode-cli/internal/model"
	"github.com/sells-group/zipcode-cli/internal/monitoring"
	"github.com/sells-group/zipcode-cli/internal/query"
	"github.com/sells-group/zipcode-cli/internal/radius"
)

// Radius search parameters.
const (
	ParamZip = "zip"
	ParamKm  = "km"

	// ModeRadius labels radius searches in the query metrics.
	ModeRadius = "radius"
)

// Options configures the router.
type Options struct {
	CORSOrigins []string
	// DefaultKm is the radius used when a nearby request omits km.
	DefaultKm float64
	Metrics   *monitoring.Metrics
}

// Server routes HTTP requests to the lookup handler.
type Server struct {
	handler *lookup.Handler
	opts    Options
	index   indexCache
	log     *zap.Logger
}

// NewServer creates a Server.
func NewServer(h *lookup.Handler, opts Options) *Server {
	if opts.DefaultKm <= 0 {
		opts.DefaultKm = 10
	}
	return &Server{
		handler: h,
		opts:    opts,
		log:     zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}
	r.Get("/zipcodes", s.lookup)
	r.Get("/zipcodes/nearby", s.nearby)
	return r
}

// requestID tags each request with a UUID unless the caller supplied one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lookup answers GET /zipcodes with the response document and an HTTP status
// equal to its statusCode.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	resp := s.handler.Handle(r.Context(), query.ParamsFromValues(r.URL.Query()))
	writeJSON(w, resp.StatusCode, resp)
}

// nearby answers GET /zipcodes/nearby?zip=80202&km=25, or latitude/longitude
// in place of zip.
func (s *Server) nearby(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := s.radiusSearch(r)
	s.opts.Metrics.ObserveQuery(ModeRadius, resp.StatusCode == http.StatusOK, time.Since(start))
	writeJSON(w, resp.StatusCode, resp)
}

func (s *Server) radiusSearch(r *http.Request) model.Response {
	q := r.URL.Query()

	km := s.opts.DefaultKm
	if raw := q.Get(ParamKm); raw != "" {
		v, err := model.ParseNumber(ParamKm, raw)
		if err != nil {
			return query.ErrorResponse(err)
		}
		km = v
	}

	records, err := s.handler.Records(r.Context())
	if err != nil {
		return query.ErrorResponse(err)
	}
	ix := s.index.get(records)

	var matches []model.Match
	switch zip := strings.TrimSpace(q.Get(ParamZip)); {
	case zip != "":
		matches, err = ix.Within(zip, km)
	case q.Get(query.ParamLatitude) != "" || q.Get(query.ParamLongitude) != "":
		var lat, lon float64
		if lat, err = optionalNumber(q.Get(query.ParamLatitude), query.ParamLatitude); err != nil {
			return query.ErrorResponse(err)
		}
		if lon, err = optionalNumber(q.Get(query.ParamLongitude), query.ParamLongitude); err != nil {
			return query.ErrorResponse(err)
		}
		matches, err = ix.Around(lat, lon, km)
	default:
		err = eris.New("api: zip or latitude/longitude is required")
	}
	if err != nil {
		return query.ErrorResponse(err)
	}
	return model.OK(matches)
}

func optionalNumber(raw, field string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return model.ParseNumber(field, raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// indexCache keeps the radius index of the most recent record slice. Cached
// datasets hand out the same slice, so the index is rebuilt only on reload.
type indexCache struct {
	mu    sync.Mutex
	first *model.Record
	n     int
	ix    *radius.Index
}

func (c *indexCache) get(records []model.Record) *radius.Index {
	var first *model.Record
	if len(records) > 0 {
		first = &records[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ix != nil && c.first == first && c.n == len(records) {
		return c.ix
	}
	c.ix = radius.NewIndex(records)
	c.first, c.n = first, len(records)
	return c.ix
}

// Addr formats a listen address for port.
func Addr(port int) string {
	return ":" + strconv.Itoa(port)
}
