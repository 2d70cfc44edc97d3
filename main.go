package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/pageview/config"
	document "github.com/drummonds/pageview/document"
	engine "github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/engine/fitzengine"
	"github.com/drummonds/pageview/engine/pdfiumengine"
	overlay "github.com/drummonds/pageview/overlay"
	raster "github.com/drummonds/pageview/raster"
	server "github.com/drummonds/pageview/server"
	viewer "github.com/drummonds/pageview/viewer"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	engine.Logger = Logger
	document.Logger = Logger
	raster.Logger = Logger
	overlay.Logger = Logger
	viewer.Logger = Logger
	server.Logger = Logger
}

// newBackend picks the rendering engine named in the configuration
func newBackend(name string) (engine.Backend, error) {
	switch strings.ToLower(name) {
	case "", "fitz", "mupdf":
		return fitzengine.New(), nil
	case "pdfium":
		backend, err := pdfiumengine.New()
		if err != nil {
			return nil, err
		}
		return backend, nil
	}
	return nil, fmt.Errorf("unknown engine %q (want fitz or pdfium)", name)
}

// openInitialDocument opens the configured document and shows its first page
func openInitialDocument(v *viewer.Viewer, viewerConfig config.ViewerConfig) error {
	if err := v.OpenDocument(viewerConfig.DocumentPath, viewerConfig.AccelPath); err != nil {
		return err
	}
	if err := v.OnViewportResized(viewerConfig.Width, viewerConfig.Height); err != nil {
		return err
	}
	if err := v.SetZoom(viewerConfig.Zoom); err != nil {
		return err
	}
	if err := v.SetRotation(viewerConfig.Rotation); err != nil {
		return err
	}
	loc := document.Location{Chapter: viewerConfig.Chapter, Page: viewerConfig.Page}
	if err := v.NavigateTo(loc); err != nil {
		return err
	}

	status, err := v.Status()
	if err != nil {
		return err
	}
	fmt.Printf("chapters: %d, chap %d pages: %d\n", status.ChapterCount, loc.Chapter, status.PageCounts[loc.Chapter])
	return nil
}

// newEcho builds the HTTP host with the viewer API registered
func newEcho(v *viewer.Viewer) (*echo.Echo, *server.ServerHandler) {
	e := echo.New()
	e.HideBanner = true

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
		}
		if code == http.StatusNotFound {
			c.JSON(http.StatusNotFound, map[string]string{
				"error":   "Not Found",
				"message": "The requested API endpoint does not exist",
				"path":    c.Request().URL.Path,
			})
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}

	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	serverHandler := &server.ServerHandler{Viewer: v, Echo: e}
	serverHandler.AddRoutes()
	return e, serverHandler
}

// @title pageview API
// @version 1.0
// @description Document page viewer: open a document, navigate, zoom, rotate and fetch rendered frames

// @host localhost:8090
// @BasePath /api
// @schemes http

// @tag.name Document
// @tag.description Opening documents

// @tag.name View
// @tag.description Navigation, zoom and rotation

// @tag.name Events
// @tag.description Viewport, pointer and frame events

// @tag.name Page
// @tag.description Text and links of the active page

func main() {
	viewerConfig, logger := config.SetupViewer()
	injectGlobals(logger) //inject the logger into all of the packages

	backend, err := newBackend(viewerConfig.Engine)
	if err != nil {
		Logger.Error("Failed to start engine", "error", err)
		os.Exit(1)
	}
	engineCtx := engine.Init(backend)

	var opts []document.Option
	if viewerConfig.EagerInvalidate {
		opts = append(opts, document.WithEagerInvalidation(true))
	}
	v := viewer.New(engineCtx, opts...)

	e, serverHandler := newEcho(v)

	if viewerConfig.DocumentPath != "" {
		if err := config.CheckDocument(viewerConfig.DocumentPath); err != nil {
			Logger.Error("Configured document is not usable", "path", viewerConfig.DocumentPath, "error", err)
		} else if err := openInitialDocument(v, viewerConfig); err != nil {
			Logger.Error("Failed to open configured document", "path", viewerConfig.DocumentPath, "error", err)
		} else {
			serverHandler.SetDocumentID()
		}
	}

	if viewerConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}
	addr := fmt.Sprintf("%s:%s", viewerConfig.ListenAddrIP, viewerConfig.ListenAddrPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		Logger.Info("Starting HTTP server", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		Logger.Error("HTTP server shutdown failed", "error", err)
	}
	if err := v.Close(); err != nil {
		Logger.Error("Failed to close document", "error", err)
	}
	if err := engineCtx.Shutdown(); err != nil {
		Logger.Error("Engine shutdown failed", "error", err)
		os.Exit(1)
	}
}
