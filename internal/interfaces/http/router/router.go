// Package router assembles the gin engine from handlers and middleware.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is one endpoint of a Group
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

func GET(path string, h gin.HandlerFunc) Route  { return Route{http.MethodGet, path, h} }
func POST(path string, h gin.HandlerFunc) Route { return Route{http.MethodPost, path, h} }
func PUT(path string, h gin.HandlerFunc) Route  { return Route{http.MethodPut, path, h} }

// Group is a set of routes under one prefix that share middleware
type Group struct {
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
}

// Mount registers groups under /api/<version>, in order
func Mount(engine *gin.Engine, version string, groups ...Group) {
	api := engine.Group("/api/" + version)
	for _, g := range groups {
		rg := api.Group(g.Prefix, g.Middleware...)
		for _, r := range g.Routes {
			rg.Handle(r.Method, r.Path, r.Handler)
		}
	}
}
