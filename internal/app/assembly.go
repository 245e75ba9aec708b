// Package app holds the reference Programs of effectrun and the runtime
// that interprets them.
package app

import (
	"net/http"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/assembly"
	"github.com/on-the-ground/effect_ive_runtime/internal/config"
	"github.com/on-the-ground/effect_ive_runtime/internal/host"
)

// Resources are the process-wide resources created by Startup and released
// by Shutdown.
type Resources struct {
	Pool          any
	CacheFactory  CacheFactory
	Observability effects.Interpreter
}

// CacheFactory is what the host hands back for CreateClientFactory.
type CacheFactory = assembly.ClientFactory

// Startup assembles the process: metadata, database pool, cache client
// factory, observability, CORS and static assets, in that order.
func Startup(cfg *config.Config) effects.Program[Resources] {
	return func(yield effects.Yield) Resources {
		var res Resources

		effects.Perform[assembly.Applied](yield, assembly.SetAppMetadata{
			Title:       cfg.App.Title,
			Description: cfg.App.Description,
			Version:     cfg.App.Version,
		})

		dsn := host.MemDBScheme
		if cfg.Database.Driver == "postgres" {
			dsn = cfg.Database.DSN
		}
		res.Pool = effects.Perform[assembly.PoolCreated](yield, assembly.CreateDatabasePool{
			DSN:      dsn,
			MinConns: cfg.Database.MinConns,
			MaxConns: cfg.Database.MaxConns,
		}).Pool

		res.CacheFactory = effects.Perform[assembly.FactoryCreated](yield, assembly.CreateClientFactory{
			Backend:    cfg.Cache.Backend,
			MaxEntries: cfg.Cache.MaxEntries,
		}).Factory

		if cfg.Metrics.Enabled {
			res.Observability = effects.Perform[assembly.ObservabilityCreated](yield,
				assembly.CreateObservabilityInterpreter{ServiceName: cfg.Metrics.ServiceName},
			).Interpreter
		}

		if len(cfg.HTTP.CorsOrigins) > 0 {
			effects.Perform[assembly.Applied](yield, assembly.ConfigureCors{
				AllowOrigins: cfg.HTTP.CorsOrigins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowHeaders: []string{"Authorization", "Content-Type"},
			})
		}

		if cfg.HTTP.StaticDir != "" {
			effects.Perform[assembly.Applied](yield, assembly.MountStatic{
				Path:      "/static",
				Directory: cfg.HTTP.StaticDir,
				Name:      "static",
			})
		}
		return res
	}
}

// Mount exposes router under /api and registers the health route.
func Mount(router http.Handler) effects.Program[struct{}] {
	return func(yield effects.Yield) struct{} {
		effects.Perform[assembly.Applied](yield, assembly.IncludeRouter{Router: router, Prefix: "/api"})
		effects.Perform[assembly.Applied](yield, assembly.RegisterHTTPRoute{
			Method: http.MethodGet,
			Path:   "/healthz",
			Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}),
		})
		return struct{}{}
	}
}

// Shutdown releases res in the reverse order of Startup.
func Shutdown(res Resources) effects.Program[struct{}] {
	return func(yield effects.Yield) struct{} {
		if res.Observability != nil {
			effects.Perform[assembly.Applied](yield,
				assembly.CloseObservabilityInterpreter{Interpreter: res.Observability})
		}
		if res.CacheFactory != nil {
			effects.Perform[assembly.Applied](yield, assembly.CloseClientFactory{Factory: res.CacheFactory})
		}
		if res.Pool != nil {
			effects.Perform[assembly.Applied](yield, assembly.CloseDatabasePool{Pool: res.Pool})
		}
		return struct{}{}
	}
}
