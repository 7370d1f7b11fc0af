package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"toolrental/internal/apperror"
	"toolrental/internal/config"
	"toolrental/internal/httpapi"
	"toolrental/internal/logger"
)

// route forwards everything under Prefix to Target with Strip removed.
type route struct {
	Prefix string
	Strip  string
	Target string
}

func routes(s config.ServicesConfig) []route {
	return []route{
		{Prefix: "/api/v1/loans", Strip: "/api/v1", Target: s.Loans},
		{Prefix: "/api/v1/customers", Strip: "/api/v1", Target: s.Customers},
		{Prefix: "/api/v1/catalog", Strip: "/api/v1/catalog", Target: s.Catalog},
		{Prefix: "/api/v1/kardex", Strip: "/api/v1/kardex", Target: s.Kardex},
	}
}

func mount(r chi.Router, routes []route) error {
	for _, rt := range routes {
		target, err := url.Parse(rt.Target)
		if err != nil {
			return fmt.Errorf("invalid upstream %q for %s: %w", rt.Target, rt.Prefix, err)
		}
		r.Mount(rt.Prefix, http.StripPrefix(rt.Strip, newProxy(target)))
		logger.Info("Route mounted", zap.String("prefix", rt.Prefix), zap.String("upstream", rt.Target))
	}
	return nil
}

func newProxy(target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)
		if id := middleware.GetReqID(req.Context()); id != "" {
			req.Header.Set(middleware.RequestIDHeader, id)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		httpapi.WriteError(w, r, fmt.Errorf("%s: %w: %w", target.Host, apperror.ErrUnavailable, err))
	}
	return proxy
}
