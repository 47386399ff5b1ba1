package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

var (
	servePort   int
	serveWatch  bool
	serveDrafts bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Render the site and serve the output directory on localhost",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := renderSite(ctx, serveDrafts); err != nil {
			return err
		}

		if serveWatch {
			// Run watcher in background while serving
			go func() {
				if err := rerenderOnChange(ctx, serveDrafts); err != nil {
					logger.Error("watcher stopped", "err", err)
				}
			}()
		}

		return serveSite(ctx, conf.OutDir, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 9999, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Re-render the site on changes to its inputs")
	serveCmd.Flags().BoolVar(&serveDrafts, "drafts", false, "Include posts and pages with the draft flag")
}

// noCache keeps browsers from holding on to pages that are rewritten on
// every render.
func noCache(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		return next(c)
	}
}

func newServer(dir string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(noCache)

	e.Static("/", dir)
	return e
}

func serveSite(ctx context.Context, dir string, port int) error {
	e := newServer(dir)
	addr := fmt.Sprintf("localhost:%d", port)

	errc := make(chan error, 1)
	go func() {
		logger.Info("serving site", "dir", dir, "url", "http://"+addr+"/")
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}
