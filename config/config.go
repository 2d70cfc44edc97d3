package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// ViewerConfig contains all of the viewer settings
type ViewerConfig struct {
	DocumentPath    string
	AccelPath       string
	Engine          string // fitz or pdfium
	Zoom            float64
	Rotation        int
	Chapter         int
	Page            int
	Width           int
	Height          int
	EagerInvalidate bool
	ListenAddrIP    string
	ListenAddrPort  string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

// SetupViewer loads configuration and returns ViewerConfig and Logger
func SetupViewer() (ViewerConfig, *slog.Logger) {
	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("pageview.env")

	logger := setupLogging()
	Logger = logger

	viewerConfig := loadViewerConfig()
	logger.Info("Viewer configuration loaded",
		"document", viewerConfig.DocumentPath,
		"engine", viewerConfig.Engine,
		"zoom", viewerConfig.Zoom,
		"rotation", viewerConfig.Rotation,
		"viewport", fmt.Sprintf("%dx%d", viewerConfig.Width, viewerConfig.Height))
	return viewerConfig, logger
}

// loadViewerConfig reads the environment into a ViewerConfig
func loadViewerConfig() ViewerConfig {
	viewerConfig := ViewerConfig{}

	// Document configuration
	documentPath := getEnv("PAGEVIEW_DOCUMENT", "")
	if documentPath != "" {
		documentPathAbs, err := filepath.Abs(filepath.FromSlash(documentPath))
		if err != nil {
			Logger.Error("Failed creating absolute path for document", "path", documentPath, "error", err)
			documentPathAbs = documentPath
		}
		documentPath = documentPathAbs
	}
	viewerConfig.DocumentPath = documentPath
	viewerConfig.AccelPath = getEnv("PAGEVIEW_ACCEL", "")
	viewerConfig.Engine = getEnv("PAGEVIEW_ENGINE", "fitz")

	// View configuration
	viewerConfig.Zoom = getEnvFloat("PAGEVIEW_ZOOM", 100)
	viewerConfig.Rotation = getEnvInt("PAGEVIEW_ROTATION", 0)
	viewerConfig.Chapter = getEnvInt("PAGEVIEW_CHAPTER", 0)
	viewerConfig.Page = getEnvInt("PAGEVIEW_PAGE", 0)
	viewerConfig.Width = getEnvInt("PAGEVIEW_WIDTH", 900)
	viewerConfig.Height = getEnvInt("PAGEVIEW_HEIGHT", 900)
	viewerConfig.EagerInvalidate = getEnvBool("PAGEVIEW_EAGER_INVALIDATE", false)

	// Server configuration
	viewerConfig.ListenAddrIP = getEnv("SERVER_ADDR", "")
	viewerConfig.ListenAddrPort = getEnv("SERVER_PORT", "8090")

	return viewerConfig
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "stdout")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pageview.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// checkDocument verifies that the configured document exists and is a regular file
func checkDocument(path string, logger *slog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		logger.Error("Cannot find document at location specified", "path", path)
		return err
	}
	if info.IsDir() {
		logger.Error("Document path is a directory", "path", path)
		return fmt.Errorf("%s is a directory", path)
	}
	logger.Debug("Document found", "path", path)
	return nil
}

// CheckDocument runs the document sanity checks with the global logger
func CheckDocument(path string) error {
	return checkDocument(path, Logger)
}
