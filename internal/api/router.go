package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/newsintel/internal/api/handlers"
	"github.com/nikhilbhutani/newsintel/internal/api/middleware"
	"github.com/nikhilbhutani/newsintel/internal/auth"
	"github.com/nikhilbhutani/newsintel/internal/config"
	"github.com/nikhilbhutani/newsintel/internal/document"
	"github.com/nikhilbhutani/newsintel/internal/rag"
	"github.com/nikhilbhutani/newsintel/internal/source"
	"github.com/nikhilbhutani/newsintel/internal/vectorstore"
)

// Services are the components the HTTP layer calls into. Cache, Jobs and
// Guard may be nil.
type Services struct {
	Answerer handlers.Answerer
	Searcher handlers.Searcher
	Ingester handlers.Ingester
	Store    document.Store
	Index    vectorstore.Index
	Embedder string
	Sources  *source.Registry
	Cache    handlers.AnswerCache
	Jobs     handlers.JobQueue
	Guard    handlers.QueryGuard
	Checks   []handlers.Check
}

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	svc     Services
	jwt     *auth.JWTMiddleware
	limiter *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, svc Services) *Router {
	rt := &Router{
		mux: chi.NewRouter(),
		cfg: cfg,
		svc: svc,
	}
	if cfg.Auth.JWTSecret != "" {
		rt.jwt = auth.NewJWTMiddleware(cfg.Auth.JWTSecret)
	}
	if cfg.Server.RateLimit > 0 {
		rt.limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	return rt
}

// SweepVisitors evicts idle rate-limit entries until stop is closed.
func (rt *Router) SweepVisitors(stop <-chan struct{}) {
	if rt.limiter != nil {
		rt.limiter.Sweep(stop)
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))
	if rt.limiter != nil {
		r.Use(rt.limiter.Limit)
	}

	health := handlers.NewHealthHandler(rt.svc.Checks...)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	ragH := handlers.NewRAGHandler(rt.svc.Answerer, rt.svc.Searcher, rt.svc.Store, rt.svc.Store, rt.svc.Cache, handlers.RAGOptions{
		TopK:       rt.cfg.RAG.TopK,
		Threshold:  rt.cfg.RAG.SimilarityThreshold,
		Guard:      rt.svc.Guard,
		Generation: rt.svc.Index.Len,
	})
	articleH := handlers.NewArticleHandler(rt.svc.Store)
	indexH := handlers.NewIndexHandler(rt.svc.Index, rt.svc.Embedder)
	ingestH := handlers.NewIngestHandler(rt.svc.Ingester, rt.svc.Jobs, rt.svc.Sources)

	r.Route("/api/v1", func(r chi.Router) {
		if rt.jwt != nil {
			r.Use(rt.jwt.Authenticate)
		}

		r.Group(func(r chi.Router) {
			r.Use(rt.require(auth.PermQuery))

			r.Route("/rag", func(r chi.Router) {
				r.Post("/query", ragH.Query)
				r.Post("/search", ragH.Search)
			})
			r.Route("/articles", func(r chi.Router) {
				r.Get("/", articleH.List)
				r.Get("/{id}", articleH.Get)
			})
			r.Get("/trends", articleH.Trends)
			r.Get("/index/stats", indexH.Stats)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.require(auth.PermIngest))

			r.Route("/ingest", func(r chi.Router) {
				r.Post("/", ingestH.Ingest)
				r.Post("/upload", ingestH.Upload)
				r.Post("/jobs", ingestH.Enqueue)
				r.Get("/sources", ingestH.Sources)
			})
		})
	})

	return r
}

func (rt *Router) require(perm auth.Permission) func(http.Handler) http.Handler {
	if rt.jwt == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return auth.RequirePermission(perm)
}

var _ handlers.Searcher = (*rag.Retriever)(nil)
