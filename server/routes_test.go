package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/drummonds/pageview/engine"
	"github.com/drummonds/pageview/engine/enginetest"
	"github.com/drummonds/pageview/viewer"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// setupTestServer creates a test server with all routes configured
func setupTestServer(t *testing.T) (*echo.Echo, *ServerHandler, *enginetest.Engine) {
	t.Helper()
	fake := enginetest.New(3, 5)
	ctx := engine.Init(fake)
	v := viewer.New(ctx)

	e := echo.New()
	e.HideBanner = true
	serverHandler := &ServerHandler{
		Viewer: v,
		Echo:   e,
	}
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	serverHandler.AddRoutes()

	t.Cleanup(func() {
		v.Close()
		if err := ctx.Shutdown(); err != nil {
			t.Errorf("Engine shutdown failed: %v", err)
		}
	})
	return e, serverHandler, fake
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response %q: %v", rec.Body.String(), err)
	}
	return response
}

func TestNoDocument(t *testing.T) {
	e, _, _ := setupTestServer(t)

	t.Run("Status without document", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/api/status", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", rec.Code)
		}
	})

	t.Run("Frame without document", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/api/frame", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", rec.Code)
		}
	})

	t.Run("Navigate without document", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/navigate", `{"chapter":0,"page":0}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", rec.Code)
		}
	})
}

func TestOpenDocument(t *testing.T) {
	e, _, fake := setupTestServer(t)

	t.Run("Invalid path", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/document", `{"path":""}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})

	t.Run("Malformed body", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/document", `{"path":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})

	t.Run("Open succeeds", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/document", `{"path":"book.pdf"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		response := decode(t, rec)
		if id, _ := response["id"].(string); len(id) != 26 {
			t.Errorf("Expected a ULID, got %v", response["id"])
		}
		if response["chapterCount"] != float64(2) {
			t.Errorf("Expected 2 chapters, got %v", response["chapterCount"])
		}
		if opened := fake.Opened(); len(opened) != 1 || opened[0] != "book.pdf" {
			t.Errorf("Expected book.pdf to be opened, got %v", opened)
		}
	})

	t.Run("Engine failure", func(t *testing.T) {
		fake.FailOpen = true
		defer func() { fake.FailOpen = false }()
		rec := doRequest(e, http.MethodPost, "/api/document", `{"path":"other.pdf"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
		// the previous document stays open
		rec = doRequest(e, http.MethodGet, "/api/status", "")
		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
	})
}

func TestNavigateAndRender(t *testing.T) {
	e, _, fake := setupTestServer(t)
	if rec := doRequest(e, http.MethodPost, "/api/document", `{"path":"book.pdf"}`); rec.Code != http.StatusOK {
		t.Fatalf("Open failed: %d %s", rec.Code, rec.Body.String())
	}

	t.Run("Frame before navigation", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/api/frame", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", rec.Code)
		}
	})

	t.Run("Out of range", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/navigate", `{"chapter":1,"page":5}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
		rec = doRequest(e, http.MethodPost, "/api/navigate", `{"chapter":2,"page":0}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})

	t.Run("Navigate", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/navigate", `{"chapter":1,"page":2}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		status := decode(t, rec)["status"].(map[string]interface{})
		loc := status["location"].(map[string]interface{})
		if loc["chapter"] != float64(1) || loc["page"] != float64(2) {
			t.Errorf("Unexpected location %v", loc)
		}
		if status["loaded"] != true {
			t.Errorf("Expected page to be loaded")
		}
	})

	t.Run("Frame before viewport", func(t *testing.T) {
		rec := doRequest(e, http.MethodGet, "/api/frame", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected status 409, got %d", rec.Code)
		}
	})

	t.Run("Invalid viewport", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/viewport", `{"width":-1,"height":10}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", rec.Code)
		}
	})

	t.Run("Frame", func(t *testing.T) {
		rec := doRequest(e, http.MethodPost, "/api/viewport", `{"width":200,"height":200}`)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("Expected status 204, got %d", rec.Code)
		}
		rec = doRequest(e, http.MethodGet, "/api/frame", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get(echo.HeaderContentType); ct != "image/png" {
			t.Errorf("Expected image/png, got %q", ct)
		}
		if rec.Header().Get("X-Document-ID") == "" {
			t.Errorf("Expected X-Document-ID header")
		}
		img, err := imaging.Decode(bytes.NewReader(rec.Body.Bytes()))
		if err != nil {
			t.Fatalf("Failed to decode frame: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
			t.Errorf("Expected 200x200 frame, got %v", b)
		}
		r, g, b, _ := img.At(10, 10).RGBA()
		if r>>8 != uint32(fake.Ink.R) || g>>8 != uint32(fake.Ink.G) || b>>8 != uint32(fake.Ink.B) {
			t.Errorf("Expected page ink at (10,10), got %v", img.At(10, 10))
		}
		r, g, b, _ = img.At(150, 190).RGBA()
		if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
			t.Errorf("Expected background at (150,190), got %v", img.At(150, 190))
		}
	})

	t.Run("Partial frame", func(t *testing.T) {
		fake.FailDraw = true
		defer func() { fake.FailDraw = false }()
		rec := doRequest(e, http.MethodGet, "/api/frame", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if rec.Header().Get("X-Frame-Error") == "" {
			t.Errorf("Expected X-Frame-Error header on a partial frame")
		}
	})
}

func TestZoomAndRotation(t *testing.T) {
	e, _, _ := setupTestServer(t)
	doRequest(e, http.MethodPost, "/api/document", `{"path":"book.pdf"}`)
	doRequest(e, http.MethodPost, "/api/navigate", `{"chapter":0,"page":0}`)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"Zoom in", "/api/zoom", `{"percent":200}`, http.StatusOK},
		{"Zoom zero", "/api/zoom", `{"percent":0}`, http.StatusBadRequest},
		{"Zoom negative", "/api/zoom", `{"percent":-50}`, http.StatusBadRequest},
		{"Rotate", "/api/rotation", `{"degrees":90}`, http.StatusOK},
		{"Rotate odd angle", "/api/rotation", `{"degrees":45}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.code {
				t.Errorf("Expected status %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}

	status := decode(t, doRequest(e, http.MethodGet, "/api/status", ""))["status"].(map[string]interface{})
	if status["zoom"] != float64(200) {
		t.Errorf("Expected zoom 200, got %v", status["zoom"])
	}
	if status["rotation"] != float64(90) {
		t.Errorf("Expected rotation 90, got %v", status["rotation"])
	}
}

func TestPageContent(t *testing.T) {
	e, _, _ := setupTestServer(t)
	doRequest(e, http.MethodPost, "/api/document", `{"path":"book.pdf"}`)

	rec := doRequest(e, http.MethodGet, "/api/page/text", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected status 409 before navigation, got %d", rec.Code)
	}

	doRequest(e, http.MethodPost, "/api/navigate", `{"chapter":1,"page":4}`)

	rec = doRequest(e, http.MethodGet, "/api/page/text", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if text := decode(t, rec)["text"]; text != "chapter 1 page 4" {
		t.Errorf("Unexpected text %v", text)
	}

	rec = doRequest(e, http.MethodGet, "/api/page/links", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	links := decode(t, rec)["links"].([]interface{})
	if len(links) != 1 {
		t.Fatalf("Expected 1 link, got %d", len(links))
	}
	if uri := links[0].(map[string]interface{})["uri"]; uri != "#chapter1-page4" {
		t.Errorf("Unexpected link %v", uri)
	}
}

func TestPointer(t *testing.T) {
	e, _, _ := setupTestServer(t)
	doRequest(e, http.MethodPost, "/api/document", `{"path":"book.pdf"}`)
	doRequest(e, http.MethodPost, "/api/navigate", `{"chapter":0,"page":0}`)
	doRequest(e, http.MethodPost, "/api/viewport", `{"width":120,"height":120}`)

	rec := doRequest(e, http.MethodPost, "/api/pointer", `{"x":60,"y":60,"button":1}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}
	status := decode(t, doRequest(e, http.MethodGet, "/api/status", ""))["status"].(map[string]interface{})
	pointer, ok := status["pointer"].(map[string]interface{})
	if !ok || pointer["pending"] != true {
		t.Fatalf("Expected pending pointer, got %v", status["pointer"])
	}

	if rec := doRequest(e, http.MethodGet, "/api/frame", ""); rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	status = decode(t, doRequest(e, http.MethodGet, "/api/status", ""))["status"].(map[string]interface{})
	if pointer := status["pointer"].(map[string]interface{}); pointer["pending"] != false {
		t.Errorf("Expected pointer to be consumed by the frame, got %v", pointer)
	}
}
