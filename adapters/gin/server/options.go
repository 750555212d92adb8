package server

import (
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/gin-gonic/gin"
)

// ServerOption defines a functional option for configuring the server
type ServerOption func(*ServerOptions)

// WithPort sets the server port
func WithPort(port string) ServerOption {
	return func(o *ServerOptions) {
		if port != "" {
			o.port = port
		}
	}
}

// WithBaseURL sets the base URL for the server
func WithBaseURL(baseURL string) ServerOption {
	return func(o *ServerOptions) {
		o.baseURL = baseURL
	}
}

// WithGlobalMiddleware adds global middleware
func WithGlobalMiddleware(middleware ...gin.HandlerFunc) ServerOption {
	return func(o *ServerOptions) {
		o.GlobalMiddlewares = append(o.GlobalMiddlewares, middleware...)
	}
}

// WithRouteGroup adds a route group
func WithRouteGroup(group RouteGroupConfig) ServerOption {
	return func(o *ServerOptions) {
		o.RouteGroups = append(o.RouteGroups, group)
	}
}

// WithRoutes adds routes directly under the base URL
func WithRoutes(routes ...RouteConfig) ServerOption {
	return func(o *ServerOptions) {
		o.RouteGroups = append(o.RouteGroups, RouteGroupConfig{
			Prefix: "", // Empty prefix means routes are added directly under the base URL
			Routes: routes,
		})
	}
}

// WithGracefulTimeOut bounds how long Run waits for in-flight requests on shutdown.
func WithGracefulTimeOut(timeOut time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if timeOut > 0 {
			o.gracefulTimeOut = timeOut
		}
	}
}

// WithRoutingConfigurator allows you to supply a custom routing function.
// This is useful if your routes need to inject additional middleware in between.
func WithRoutingConfigurator(fn func(*gin.Engine)) ServerOption {
	return func(o *ServerOptions) {
		o.RoutingConfigurator = fn
	}
}

// WithLogger sets the logger for the server
func WithLogger(log *log.Log) ServerOption {
	return func(o *ServerOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// applyGlobalMiddlewares applies global middlewares to the router
func applyGlobalMiddlewares(router *gin.Engine, middlewares []gin.HandlerFunc) {
	for _, mw := range middlewares {
		router.Use(mw)
	}
}

// configureRouteGroups configures route groups and their routes
func configureRouteGroups(baseGroup *gin.RouterGroup, routeGroups []RouteGroupConfig) {
	for _, groupConfig := range routeGroups {
		group := baseGroup.Group(groupConfig.Prefix)
		for _, mw := range groupConfig.Middlewares {
			group.Use(mw)
		}

		for _, route := range groupConfig.Routes {
			if route.Method == "" || route.Handler == nil {
				helpers.Println(constant.ERROR, "Skipping incomplete route: "+route.Path)
				continue
			}
			group.Handle(route.Method, route.Path, route.Handler)
		}
	}
}
