// Package router classifies intercepted requests into traffic classes
// and picks the caching strategy for each.
package router

import (
	"net/url"
	"strings"
	"time"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/config"
)

// Class is a static traffic classification.
type Class string

const (
	ClassStaticAsset     Class = "static-asset"
	ClassAPI             Class = "api"
	ClassExternalWeather Class = "external-weather"
	ClassNavigation      Class = "navigation"
	ClassDefault         Class = "default"
)

// StrategyKind identifies one of the three caching strategies.
type StrategyKind string

const (
	StrategyCacheFirst           StrategyKind = "cache-first"
	StrategyNetworkFirst         StrategyKind = "network-first"
	StrategyStaleWhileRevalidate StrategyKind = "stale-while-revalidate"
)

// Logical container names. The lifecycle manager maps these to the
// live versioned container names.
const (
	ContainerStatic  = "static"
	ContainerDynamic = "dynamic"
	ContainerAPI     = "api"
)

// Request is the interception event: everything the gateway knows about
// an outgoing request from the host application.
type Request struct {
	Method       string
	URL          string
	Destination  string
	IsNavigation bool
}

// Decision is the routing outcome for one request.
type Decision struct {
	// Bypass means the request passes through untouched, with no
	// caching on either side.
	Bypass bool

	Class     Class
	Strategy  StrategyKind
	Container string
	MaxAge    time.Duration

	// WithFallback enables the offline-fallback path for navigation
	// requests under network-first.
	WithFallback bool
}

// Router holds the static traffic-class table. It is configuration,
// not runtime state: nothing here changes after process start.
type Router struct {
	apiPrefixes   []string
	externalHosts map[string]struct{}
	staticDests   map[string]struct{}
	maxAges       config.Staleness
}

// New builds a router from the routing table and the max-age table.
func New(routing config.Routing, staleness config.Staleness) *Router {
	r := &Router{
		apiPrefixes:   routing.APIPrefixes,
		externalHosts: make(map[string]struct{}, len(routing.ExternalHosts)),
		staticDests:   make(map[string]struct{}, len(routing.StaticDestinations)),
		maxAges:       staleness,
	}
	for _, h := range routing.ExternalHosts {
		r.externalHosts[strings.ToLower(h)] = struct{}{}
	}
	for _, d := range routing.StaticDestinations {
		r.staticDests[strings.ToLower(d)] = struct{}{}
	}
	return r
}

// Classify routes one request. Non-idempotent methods and unsupported
// schemes bypass the cache entirely. Explicit API-prefix and
// external-host rules take precedence over the generic resource-type
// rule so a JSON API response is never treated as a static asset.
func (r *Router) Classify(req Request) Decision {
	if !cache.MethodCacheable(req.Method) {
		return Decision{Bypass: true}
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return Decision{Bypass: true}
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Decision{Bypass: true}
	}

	for _, prefix := range r.apiPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			return Decision{
				Class:     ClassAPI,
				Strategy:  StrategyNetworkFirst,
				Container: ContainerAPI,
				MaxAge:    r.maxAges.API.Std(),
			}
		}
	}

	if _, ok := r.externalHosts[strings.ToLower(u.Hostname())]; ok {
		return Decision{
			Class:     ClassExternalWeather,
			Strategy:  StrategyStaleWhileRevalidate,
			Container: ContainerAPI,
			MaxAge:    r.maxAges.ExternalWeather.Std(),
		}
	}

	if _, ok := r.staticDests[strings.ToLower(req.Destination)]; ok {
		return Decision{
			Class:     ClassStaticAsset,
			Strategy:  StrategyCacheFirst,
			Container: ContainerStatic,
		}
	}

	if req.IsNavigation {
		return Decision{
			Class:        ClassNavigation,
			Strategy:     StrategyNetworkFirst,
			Container:    ContainerDynamic,
			MaxAge:       r.maxAges.Dynamic.Std(),
			WithFallback: true,
		}
	}

	return Decision{
		Class:     ClassDefault,
		Strategy:  StrategyNetworkFirst,
		Container: ContainerDynamic,
		MaxAge:    r.maxAges.Dynamic.Std(),
	}
}
