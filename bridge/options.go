package bridge

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/andyherbert/crabzilla/engine"
	"github.com/andyherbert/crabzilla/hostfunc"
)

// Option configures a Runtime at construction time.
type Option func(*config)

type config struct {
	entries []hostfunc.Entry
	engine  engine.Engine
	timeout time.Duration
	log     zerolog.Logger
}

func defaultConfig() config {
	return config{log: zerolog.Nop()}
}

// WithEntries appends host function entries to the declarative list
// processed at construction.
func WithEntries(entries ...hostfunc.Entry) Option {
	return func(c *config) {
		c.entries = append(c.entries, entries...)
	}
}

// WithFunc registers a host function on the guest global object.
func WithFunc(name string, fn hostfunc.Func) Option {
	return WithEntries(hostfunc.Entry{Name: name, Fn: fn})
}

// WithScopedFunc registers a host function under a scope object, appearing
// in the guest as Scope.name(...).
func WithScopedFunc(scope, name string, fn hostfunc.Func) Option {
	return WithEntries(hostfunc.Entry{Scope: scope, Name: name, Fn: fn})
}

// WithEngine selects the engine backend. Defaults to the goja backend.
func WithEngine(e engine.Engine) Option {
	return func(c *config) { c.engine = e }
}

// WithTimeout caps the execution time of each load. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithLogger sets the runtime logger. Defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithKV enables the in-memory key-value store under the KV scope.
func WithKV(store *hostfunc.KVStore) Option {
	return func(c *config) {
		if store == nil {
			store = hostfunc.NewKVStore()
		}
		c.entries = append(c.entries, store.Entries("KV")...)
	}
}

// WithMounts enables mount-based filesystem access under the FS scope.
func WithMounts(mounts []hostfunc.Mount, opts ...hostfunc.FSOption) Option {
	return func(c *config) {
		c.entries = append(c.entries, hostfunc.NewFS(mounts, opts...).Entries("FS")...)
	}
}

// WithAllowedHosts enables outbound HTTP to the listed hosts under the
// HTTP scope.
func WithAllowedHosts(hosts []string) Option {
	return func(c *config) {
		h := hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: hosts})
		c.entries = append(c.entries, h.Entries("HTTP")...)
	}
}
