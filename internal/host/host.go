// Package host is the HTTP application the runtime-assembly effects act on.
package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/on-the-ground/effect_ive_runtime/backends/memdb"
	"github.com/on-the-ground/effect_ive_runtime/backends/otelmetrics"
	"github.com/on-the-ground/effect_ive_runtime/backends/otter"
	"github.com/on-the-ground/effect_ive_runtime/backends/postgres"
	"github.com/on-the-ground/effect_ive_runtime/backends/ristretto"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/assembly"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
	"github.com/on-the-ground/effect_ive_runtime/effects/observability"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MemDBScheme selects the in-memory store in CreateDatabasePool.
const MemDBScheme = "memdb:"

var ErrInvalidResource = errors.New("host: invalid resource")

// App owns the HTTP surface and the process-wide resources created during
// startup.
type App struct {
	logger        *zap.Logger
	meterProvider metric.MeterProvider

	mu     sync.Mutex
	mux    *http.ServeMux
	cors   *cors.Cors
	meta   assembly.SetAppMetadata
	routes []string
}

type Option func(*App)

func WithLogger(logger *zap.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithMeterProvider sets the provider observability interpreters record
// to. The global provider is used otherwise.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(a *App) { a.meterProvider = provider }
}

func New(opts ...Option) *App {
	a := &App{logger: zap.NewNop(), mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(a)
	}
	a.mux.HandleFunc("GET /_meta", a.serveMeta)
	return a
}

// Callbacks binds every runtime-assembly effect to this app.
func (a *App) Callbacks() assembly.Callbacks {
	return assembly.Callbacks{
		CreateDatabasePool:             a.createDatabasePool,
		CloseDatabasePool:              a.closeDatabasePool,
		CreateClientFactory:            a.createClientFactory,
		CloseClientFactory:             a.closeClientFactory,
		ConfigureCors:                  a.configureCors,
		IncludeRouter:                  a.includeRouter,
		MountStatic:                    a.mountStatic,
		SetAppMetadata:                 a.setAppMetadata,
		RegisterHTTPRoute:              a.registerHTTPRoute,
		CreateObservabilityInterpreter: a.createObservabilityInterpreter,
		CloseObservabilityInterpreter:  a.closeObservabilityInterpreter,
	}
}

func (a *App) createDatabasePool(ctx context.Context, e assembly.CreateDatabasePool) (any, error) {
	if e.DSN == "" || strings.HasPrefix(e.DSN, MemDBScheme) {
		a.logger.Info("using in-memory database")
		return memdb.NewStore()
	}
	pool, err := postgres.NewPool(ctx, e.DSN, e.MinConns, e.MaxConns)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	a.logger.Info("database pool created",
		zap.Int32("min_conns", pool.Config().MinConns), zap.Int32("max_conns", pool.Config().MaxConns))
	return pool, nil
}

func (a *App) closeDatabasePool(_ context.Context, e assembly.CloseDatabasePool) error {
	switch pool := e.Pool.(type) {
	case *pgxpool.Pool:
		pool.Close()
	case *memdb.Store:
	default:
		return fmt.Errorf("%w: database pool %T", ErrInvalidResource, e.Pool)
	}
	a.logger.Info("database pool closed")
	return nil
}

// ClientFactory hands out the cache backend created at startup.
type ClientFactory struct {
	backend cache.Backend
	close   func()
}

func (f *ClientFactory) Backend() cache.Backend { return f.backend }

func (a *App) createClientFactory(_ context.Context, e assembly.CreateClientFactory) (assembly.ClientFactory, error) {
	switch e.Backend {
	case "ristretto":
		b, err := ristretto.New(e.MaxEntries)
		if err != nil {
			return nil, err
		}
		return &ClientFactory{backend: b, close: b.Close}, nil
	case "otter":
		b, err := otter.New(int(e.MaxEntries))
		if err != nil {
			return nil, err
		}
		return &ClientFactory{backend: b, close: b.Close}, nil
	default:
		return nil, fmt.Errorf("%w: cache backend %q", ErrInvalidResource, e.Backend)
	}
}

func (a *App) closeClientFactory(_ context.Context, e assembly.CloseClientFactory) error {
	f, ok := e.Factory.(*ClientFactory)
	if !ok {
		return fmt.Errorf("%w: client factory %T", ErrInvalidResource, e.Factory)
	}
	f.close()
	return nil
}

func (a *App) configureCors(_ context.Context, e assembly.ConfigureCors) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cors != nil {
		return errors.New("cors already configured")
	}
	c, err := newCors(e, a.logger)
	if err != nil {
		return err
	}
	a.cors = c
	return nil
}

func (a *App) includeRouter(_ context.Context, e assembly.IncludeRouter) error {
	if e.Router == nil {
		return fmt.Errorf("%w: nil router", ErrInvalidResource)
	}
	prefix := strings.TrimSuffix(e.Prefix, "/")
	if prefix == "" {
		return a.handle("/", e.Router)
	}
	return a.handle(prefix+"/", http.StripPrefix(prefix, e.Router))
}

func (a *App) mountStatic(_ context.Context, e assembly.MountStatic) error {
	info, err := os.Stat(e.Directory)
	if err != nil {
		return fmt.Errorf("invalid static directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid static directory: %s is not a directory", e.Directory)
	}
	path := strings.TrimSuffix(e.Path, "/")
	return a.handle("GET "+path+"/", http.StripPrefix(path, http.FileServer(http.Dir(e.Directory))))
}

func (a *App) setAppMetadata(_ context.Context, e assembly.SetAppMetadata) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meta = e
	return nil
}

func (a *App) registerHTTPRoute(_ context.Context, e assembly.RegisterHTTPRoute) error {
	if e.Handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidResource, e.Path)
	}
	pattern := e.Path
	if e.Method != "" {
		pattern = strings.ToUpper(e.Method) + " " + e.Path
	}
	return a.handle(pattern, e.Handler)
}

func (a *App) createObservabilityInterpreter(
	_ context.Context,
	e assembly.CreateObservabilityInterpreter,
) (effects.Interpreter, error) {
	collector := otelmetrics.New(e.ServiceName, a.meterProvider)
	interpreter, err := observability.NewInterpreter(collector,
		observability.WithLogger(a.logger.Named("program")))
	if err != nil {
		return nil, err
	}
	return interpreter, nil
}

func (a *App) closeObservabilityInterpreter(_ context.Context, e assembly.CloseObservabilityInterpreter) error {
	if _, ok := e.Interpreter.(*observability.Interpreter); !ok {
		return fmt.Errorf("%w: observability interpreter %T", ErrInvalidResource, e.Interpreter)
	}
	// Sync fails on non-file sinks such as stderr; nothing is lost.
	_ = a.logger.Sync()
	return nil
}

// handle registers pattern on the mux. A conflicting pattern is an error,
// not a panic.
func (a *App) handle(pattern string, handler http.Handler) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("route %q already registered: %v", pattern, r)
		}
	}()
	a.mux.Handle(pattern, handler)
	a.routes = append(a.routes, pattern)
	a.logger.Debug("route registered", zap.String("pattern", pattern))
	return nil
}

// Routes lists the registered patterns in registration order.
func (a *App) Routes() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.routes...)
}

func (a *App) serveMeta(w http.ResponseWriter, _ *http.Request) {
	a.mu.Lock()
	meta := a.meta
	routes := append([]string(nil), a.routes...)
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":       meta.Title,
		"description": meta.Description,
		"version":     meta.Version,
		"routes":      routes,
	})
}

// Handler returns the app's root handler with the configured CORS policy
// applied.
func (a *App) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		c := a.cors
		a.mu.Unlock()
		if c == nil {
			a.mux.ServeHTTP(w, r)
			return
		}
		c.ServeHTTP(w, r, a.mux.ServeHTTP)
	})
}

// Serve runs the HTTP server on addr until ctx is done, then shuts it down
// within shutdownTimeout.
func (a *App) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
