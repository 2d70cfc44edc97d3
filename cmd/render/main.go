package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"

	config "github.com/drummonds/pageview/config"
	document "github.com/drummonds/pageview/document"
	engine "github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/engine/fitzengine"
	"github.com/drummonds/pageview/engine/pdfiumengine"
	raster "github.com/drummonds/pageview/raster"
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
	viewer.Logger = Logger
}

func main() {
	viewerConfig, logger := config.SetupViewer()
	injectGlobals(logger)

	// Flags override the environment
	docPath := flag.String("doc", viewerConfig.DocumentPath, "Document to render")
	accelPath := flag.String("accel", viewerConfig.AccelPath, "Optional accelerator file")
	engineName := flag.String("engine", viewerConfig.Engine, "Rendering engine (fitz or pdfium)")
	chapter := flag.Int("chapter", viewerConfig.Chapter, "Chapter index")
	page := flag.Int("page", viewerConfig.Page, "Page index within the chapter")
	zoom := flag.Float64("zoom", viewerConfig.Zoom, "Zoom percentage")
	rotation := flag.Int("rotation", viewerConfig.Rotation, "Rotation in degrees (multiple of 90)")
	width := flag.Int("width", viewerConfig.Width, "Frame width in pixels")
	height := flag.Int("height", viewerConfig.Height, "Frame height in pixels")
	out := flag.String("out", "page.png", "Output image (format from extension)")
	flag.Parse()

	if err := config.CheckDocument(*docPath); err != nil {
		fmt.Fprintf(os.Stderr, "document: %v\n", err)
		os.Exit(2)
	}

	var backend engine.Backend
	switch *engineName {
	case "pdfium":
		b, err := pdfiumengine.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "pdfium: %v\n", err)
			os.Exit(1)
		}
		backend = b
	default:
		backend = fitzengine.New()
	}
	engineCtx := engine.Init(backend)

	err := render(engineCtx, *docPath, *accelPath, document.Location{Chapter: *chapter, Page: *page},
		*zoom, *rotation, *width, *height, *out)
	if shutdownErr := engineCtx.Shutdown(); shutdownErr != nil {
		Logger.Error("Engine shutdown failed", "error", shutdownErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}
}

func render(eng viewer.Engine, path, accel string, loc document.Location, zoom float64, rotation, width, height int, out string) error {
	v := viewer.New(eng)
	defer v.Close()

	if err := v.OpenDocument(path, accel); err != nil {
		return err
	}
	if err := v.SetZoom(zoom); err != nil {
		return err
	}
	if err := v.SetRotation(rotation); err != nil {
		return err
	}
	if err := v.NavigateTo(loc); err != nil {
		return err
	}
	if err := v.OnViewportResized(width, height); err != nil {
		return err
	}

	status, err := v.Status()
	if err != nil {
		return err
	}
	fmt.Printf("chapters: %d, chap %d pages: %d\n", status.ChapterCount, loc.Chapter, status.PageCounts[loc.Chapter])

	img, err := v.Snapshot()
	if img == nil {
		return err
	}
	if err != nil {
		Logger.Warn("Saving partial frame", "error", err)
	}
	if err := imaging.Save(img, out); err != nil {
		return fmt.Errorf("save %s: %w", out, err)
	}
	Logger.Info("Frame written", "file", out, "width", width, "height", height)
	return nil
}
