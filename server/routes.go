package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/drummonds/pageview/document"
	"github.com/drummonds/pageview/raster"
	"github.com/drummonds/pageview/viewer"
	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// Logger is global since we will need it everywhere
var Logger = slog.New(slog.DiscardHandler)

// ServerHandler drives a viewer from HTTP requests
type ServerHandler struct {
	Viewer *viewer.Viewer
	Echo   *echo.Echo

	mu         sync.Mutex
	documentID ulid.ULID
}

type openRequest struct {
	Path      string `json:"path"`
	AccelPath string `json:"accelPath"`
}

type zoomRequest struct {
	Percent float64 `json:"percent"`
}

type rotationRequest struct {
	Degrees int `json:"degrees"`
}

type viewportRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type pointerRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
}

// AddRoutes registers every viewer route on the echo instance
func (serverHandler *ServerHandler) AddRoutes() {
	e := serverHandler.Echo
	e.POST("/api/document", serverHandler.OpenDocument)
	e.POST("/api/navigate", serverHandler.Navigate)
	e.POST("/api/zoom", serverHandler.SetZoom)
	e.POST("/api/rotation", serverHandler.SetRotation)
	e.POST("/api/viewport", serverHandler.ResizeViewport)
	e.POST("/api/pointer", serverHandler.PressPointer)
	e.GET("/api/frame", serverHandler.GetFrame)
	e.GET("/api/status", serverHandler.GetStatus)
	e.GET("/api/page/text", serverHandler.GetPageText)
	e.GET("/api/page/links", serverHandler.GetPageLinks)
}

// SetDocumentID assigns a fresh ID to the document opened outside HTTP (e.g. at startup)
func (serverHandler *ServerHandler) SetDocumentID() ulid.ULID {
	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()
	serverHandler.documentID = ulid.Make()
	return serverHandler.documentID
}

func (serverHandler *ServerHandler) currentID() string {
	serverHandler.mu.Lock()
	defer serverHandler.mu.Unlock()
	if serverHandler.documentID == (ulid.ULID{}) {
		return ""
	}
	return serverHandler.documentID.String()
}

// errorStatus maps viewer errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, viewer.ErrNoDocument),
		errors.Is(err, document.ErrNotLoaded),
		errors.Is(err, document.ErrClosed),
		errors.Is(err, raster.ErrNoBuffer):
		return http.StatusConflict
	case errors.Is(err, document.ErrChapterOutOfRange),
		errors.Is(err, document.ErrPageOutOfRange),
		errors.Is(err, document.ErrInvalidZoom),
		errors.Is(err, document.ErrInvalidRotation),
		errors.Is(err, document.ErrInvalidPath),
		errors.Is(err, document.ErrPathTooLong),
		errors.Is(err, document.ErrOpen),
		errors.Is(err, raster.ErrInvalidSize):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func failure(c echo.Context, op string, err error) error {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		Logger.Error("Viewer operation failed", "op", op, "error", err)
	} else {
		Logger.Debug("Viewer operation rejected", "op", op, "error", err)
	}
	return c.JSON(code, map[string]interface{}{
		"error": err.Error(),
	})
}

func badRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": "Invalid request body",
	})
}

// OpenDocument opens a document in the viewer
// @Summary Open a document
// @Description Opens the document at path, closing the current one
// @Tags Document
// @Accept json
// @Produce json
// @Param request body openRequest true "Document path and optional accelerator path"
// @Success 200 {object} map[string]interface{} "Document ID and chapter count"
// @Failure 400 {object} map[string]interface{} "Invalid path or unreadable document"
// @Router /document [post]
func (serverHandler *ServerHandler) OpenDocument(c echo.Context) error {
	var req openRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if err := serverHandler.Viewer.OpenDocument(req.Path, req.AccelPath); err != nil {
		return failure(c, "open", err)
	}
	id := serverHandler.SetDocumentID()
	status, err := serverHandler.Viewer.Status()
	if err != nil {
		return failure(c, "open", err)
	}
	Logger.Info("Document opened over HTTP", "id", id.String(), "path", req.Path)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":           id.String(),
		"chapterCount": status.ChapterCount,
	})
}

// Navigate loads a page and makes it current
// @Summary Navigate to a page
// @Tags View
// @Accept json
// @Produce json
// @Param request body document.Location true "Chapter and page index"
// @Success 200 {object} viewer.Status
// @Failure 400 {object} map[string]interface{} "Location out of range"
// @Router /navigate [post]
func (serverHandler *ServerHandler) Navigate(c echo.Context) error {
	var loc document.Location
	if err := c.Bind(&loc); err != nil {
		return badRequest(c)
	}
	if err := serverHandler.Viewer.NavigateTo(loc); err != nil {
		return failure(c, "navigate", err)
	}
	return serverHandler.GetStatus(c)
}

// SetZoom changes the zoom percentage
// @Summary Set zoom
// @Tags View
// @Router /zoom [post]
func (serverHandler *ServerHandler) SetZoom(c echo.Context) error {
	var req zoomRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if err := serverHandler.Viewer.SetZoom(req.Percent); err != nil {
		return failure(c, "zoom", err)
	}
	return serverHandler.GetStatus(c)
}

// SetRotation changes the page rotation
// @Summary Set rotation
// @Tags View
// @Router /rotation [post]
func (serverHandler *ServerHandler) SetRotation(c echo.Context) error {
	var req rotationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if err := serverHandler.Viewer.SetRotation(req.Degrees); err != nil {
		return failure(c, "rotation", err)
	}
	return serverHandler.GetStatus(c)
}

// ResizeViewport reports a new viewport size
// @Summary Resize viewport
// @Tags Events
// @Router /viewport [post]
func (serverHandler *ServerHandler) ResizeViewport(c echo.Context) error {
	var req viewportRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if err := serverHandler.Viewer.OnResize(req.Width, req.Height); err != nil {
		return failure(c, "viewport", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PressPointer records a pointer press shown on the next frame
// @Summary Pointer press
// @Tags Events
// @Router /pointer [post]
func (serverHandler *ServerHandler) PressPointer(c echo.Context) error {
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	serverHandler.Viewer.OnPointerDown(req.X, req.Y, req.Button)
	return c.NoContent(http.StatusNoContent)
}

// GetFrame renders the current frame as PNG
// @Summary Render frame
// @Description Renders the active page and any pending pointer marker
// @Tags Events
// @Produce png
// @Success 200 {file} binary "PNG frame"
// @Failure 409 {object} map[string]interface{} "No document, page or viewport yet"
// @Router /frame [get]
func (serverHandler *ServerHandler) GetFrame(c echo.Context) error {
	img, err := serverHandler.Viewer.Snapshot()
	if img == nil {
		return failure(c, "frame", err)
	}
	if err != nil {
		// partial frame, still worth showing
		Logger.Warn("Serving partial frame", "error", err)
		c.Response().Header().Set("X-Frame-Error", err.Error())
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return failure(c, "encode frame", err)
	}
	if id := serverHandler.currentID(); id != "" {
		c.Response().Header().Set("X-Document-ID", id)
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// GetStatus returns the viewer state
// @Summary Viewer status
// @Tags View
// @Produce json
// @Success 200 {object} viewer.Status
// @Router /status [get]
func (serverHandler *ServerHandler) GetStatus(c echo.Context) error {
	status, err := serverHandler.Viewer.Status()
	if err != nil {
		return failure(c, "status", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     serverHandler.currentID(),
		"status": status,
	})
}

// GetPageText returns the text layer of the active page
// @Summary Active page text
// @Tags Page
// @Router /page/text [get]
func (serverHandler *ServerHandler) GetPageText(c echo.Context) error {
	text, _, err := serverHandler.Viewer.ActivePage()
	if err != nil {
		return failure(c, "page text", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"text": text,
	})
}

// GetPageLinks returns the links of the active page
// @Summary Active page links
// @Tags Page
// @Router /page/links [get]
func (serverHandler *ServerHandler) GetPageLinks(c echo.Context) error {
	_, links, err := serverHandler.Viewer.ActivePage()
	if err != nil {
		return failure(c, "page links", err)
	}
	out := make([]map[string]interface{}, 0, len(links))
	for _, l := range links {
		out = append(out, map[string]interface{}{
			"uri": l.URI,
			"x0":  l.Bounds.Min.X,
			"y0":  l.Bounds.Min.Y,
			"x1":  l.Bounds.Max.X,
			"y1":  l.Bounds.Max.Y,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"links": out,
	})
}
