// Package web exposes projected resources over HTTP. Each mounted resource
// type gets list and show endpoints that run the full pipeline: parse the
// request, interpret filter criteria, execute the query with its eager
// loads, then project the records.
package web

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apitoolkit "github.com/sinemacula/go-api-toolkit"
	"github.com/sinemacula/go-api-toolkit/config"
	"github.com/sinemacula/go-api-toolkit/query"
	"github.com/sinemacula/go-api-toolkit/render"
	"github.com/sinemacula/go-api-toolkit/request"
	"github.com/sinemacula/go-api-toolkit/resource"
	"github.com/sinemacula/go-api-toolkit/schema"
	"github.com/sinemacula/go-api-toolkit/store"
)

// Server routes projection requests for mounted resource types.
type Server struct {
	compiler *schema.Compiler
	store    *store.Store
	render   *render.Renderer
	log      *zap.Logger
	cfg      *config.Config

	// resource type -> store model name
	mounts map[string]string
}

// NewServer creates a server around a compiled schema registry and a store.
func NewServer(c *schema.Compiler, s *store.Store, cfg *config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Server{
		compiler: c,
		store:    s,
		render:   render.NewRenderer(),
		log:      log,
		cfg:      cfg,
		mounts:   make(map[string]string),
	}
}

// Mount binds a resource type to a registered store model, exposing it at
// /{resourceType} and /{resourceType}/{id}.
func (s *Server) Mount(resourceType, model string) {
	s.mounts[resourceType] = model
}

// Router builds the chi router for all mounted resource types.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/{type}", s.list)
	r.Get("/{type}/{id}", s.show)
	return r
}

// requestID tags every request with a generated id for log correlation.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		s.log.Debug("handling request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "type")
	model, ok := s.mounts[resourceType]
	if !ok {
		s.render.Error(w, http.StatusNotFound, "unknown resource type")
		return
	}

	ctx := request.Parse(r)

	b, err := s.store.Query(model)
	if err != nil {
		s.fail(w, err)
		return
	}

	limit := ctx.Limit()
	if limit == nil && s.cfg.Projection.DefaultLimit > 0 {
		limit = &s.cfg.Projection.DefaultLimit
	}

	if err := s.interpreter(resourceType, ctx).Apply(b, ctx.Filters(), ctx.Order(), limit); err != nil {
		s.fail(w, err)
		return
	}

	records, err := b.All(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	out, err := s.projector(resourceType, ctx).ResolveCollection(asRecords(records))
	if err != nil {
		s.fail(w, err)
		return
	}

	s.render.Collection(w, http.StatusOK, out, limit)
}

func (s *Server) show(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "type")
	model, ok := s.mounts[resourceType]
	if !ok {
		s.render.Error(w, http.StatusNotFound, "unknown resource type")
		return
	}

	ctx := request.Parse(r)

	b, err := s.store.Query(model)
	if err != nil {
		s.fail(w, err)
		return
	}
	b.Where(b.Model().PrimaryKey, apitoolkit.OpEqual, chi.URLParam(r, "id"))

	// No filter/order/limit on a show, but the eager-load plan still
	// applies.
	if err := s.interpreter(resourceType, ctx).Apply(b, "", "", nil); err != nil {
		s.fail(w, err)
		return
	}

	record, err := b.First(r.Context())
	if errors.Is(err, sql.ErrNoRows) {
		s.render.Error(w, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	out, err := s.projector(resourceType, ctx).Resolve(record)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.render.Resource(w, http.StatusOK, out)
}

func (s *Server) interpreter(resourceType string, ctx *request.Context) *query.Interpreter {
	return query.NewInterpreter(s.compiler, resourceType, ctx,
		query.WithExcludedColumns(s.cfg.Projection.ExcludedFilterColumns...),
		query.WithFixedFields(s.cfg.Projection.FixedFields))
}

func (s *Server) projector(resourceType string, ctx *request.Context) *resource.Projector {
	return resource.NewProjector(s.compiler, resourceType, ctx,
		resource.WithFixedFields(s.cfg.Projection.FixedFields))
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.Error("request failed", zap.Error(err))
	s.render.Error(w, http.StatusInternalServerError, "internal error")
}

func asRecords(records []apitoolkit.MapRecord) []apitoolkit.Record {
	out := make([]apitoolkit.Record, len(records))
	for i, rec := range records {
		out[i] = rec
	}
	return out
}
