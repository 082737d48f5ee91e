package http

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	tenantsPrefix    = "/tenants/"
	invalidateSuffix = "/curfew-snapshot/invalidate"
	windowsSuffix    = "/curfew-windows"
)

type RouterConfig struct {
	Gate   *GateHandler
	Health http.Handler
	// Metrics defaults to the Prometheus default registry handler.
	Metrics    http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Gate != nil {
		mux.HandleFunc("/gate/evaluations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Gate.Evaluate(w, r)
		})
		mux.HandleFunc(tenantsPrefix, func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, tenantsPrefix)
			if id, ok := tenantRoute(rest, invalidateSuffix); ok {
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				cfg.Gate.Invalidate(w, r.WithContext(ContextWithTenantID(r.Context(), id)))
				return
			}
			if id, ok := tenantRoute(rest, windowsSuffix); ok {
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Gate.Windows(w, r.WithContext(ContextWithTenantID(r.Context(), id)))
				return
			}
			http.NotFound(w, r)
		})
	}

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler(nil, nil, nil)
	}
	mux.Handle("/healthz", methodGuard(health, http.MethodGet))

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	mux.Handle("/metrics", methodGuard(metrics, http.MethodGet))

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// tenantRoute extracts {id} from "{id}"+suffix. Ids never contain a slash.
func tenantRoute(rest, suffix string) (string, bool) {
	id, ok := strings.CutSuffix(rest, suffix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func methodGuard(next http.Handler, allowed string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != allowed && !(allowed == http.MethodGet && r.Method == http.MethodHead) {
			methodNotAllowed(w, allowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
