package routerhelper

import (
	"context"
	"net/http"
)

// UnmatchedRoute pattern reported for requests no registered route handled.
const UnmatchedRoute = "unmatched"

type routePatternKey struct{}

// RoutePattern registered path template of the route that served a request, e.g. /api/mapData.
type RoutePattern struct {
	value string
}

func (p *RoutePattern) String() string {
	if p == nil || p.value == "" {
		return UnmatchedRoute
	}
	return p.value
}

// WithRoutePattern attaches an empty RoutePattern to r. handlers registered through a RouteGroup fill it in.
func WithRoutePattern(r *http.Request) (*http.Request, *RoutePattern) {
	p := &RoutePattern{}
	return r.WithContext(context.WithValue(r.Context(), routePatternKey{}, p)), p
}

func setRoutePattern(ctx context.Context, pattern string) {
	if p, ok := ctx.Value(routePatternKey{}).(*RoutePattern); ok {
		p.value = pattern
	}
}
