package routerhelper

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// RouteGroup registers handlers on a httprouter.Router under a common path prefix.
type RouteGroup struct {
	r *httprouter.Router
	p string
}

func NewRouteGroup(r *httprouter.Router, path string) *RouteGroup {
	return &RouteGroup{r: r, p: cleanPrefix(path)}
}

func (g *RouteGroup) Group(path string) *RouteGroup {
	return NewRouteGroup(g.r, g.subPath(path))
}

// Handle registers handle and records the full path template on the request's RoutePattern.
func (g *RouteGroup) Handle(method, path string, handle httprouter.Handle) {
	pattern := g.subPath(path)
	g.r.Handle(method, pattern, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		setRoutePattern(r.Context(), pattern)
		handle(w, r, ps)
	})
}

func (g *RouteGroup) Handler(method, path string, handler http.Handler) {
	pattern := g.subPath(path)
	g.r.Handler(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setRoutePattern(r.Context(), pattern)
		handler.ServeHTTP(w, r)
	}))
}

func (g *RouteGroup) GET(path string, handle httprouter.Handle) {
	g.Handle(http.MethodGet, path, handle)
}

func (g *RouteGroup) POST(path string, handle httprouter.Handle) {
	g.Handle(http.MethodPost, path, handle)
}

func (g *RouteGroup) subPath(path string) string {
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return g.p + path
}

func cleanPrefix(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	if p[0] != '/' {
		p = "/" + p
	}
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}
