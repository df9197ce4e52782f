package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"sigil-guard/internal/sigil"
	"sigil-guard/internal/style"
)

func TestClientGenerate(t *testing.T) {
	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 8, 8, gocv.MatTypeCV8UC3)
	defer out.Close()
	png, err := sigil.EncodePNG(out)
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu     sync.Mutex
		auth   string
		reqID  string
		create predictionRequest
		polls  int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
			mu.Lock()
			auth = r.Header.Get("Authorization")
			reqID = r.Header.Get("X-Request-ID")
			if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
				t.Errorf("decode create request: %v", err)
			}
			mu.Unlock()
			// No urls.get: the client must fall back to polling BaseURL.
			json.NewEncoder(w).Encode(map[string]any{"id": "p1", "status": "processing"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			mu.Lock()
			polls++
			mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "p1",
				"status": "succeeded",
				"output": []string{"http://" + r.Host + "/out.png"},
			})
		case r.URL.Path == "/out.png":
			w.Write(png)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("tok-123")
	c.BaseURL = srv.URL
	c.PollInterval = time.Millisecond

	control := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer control.Close()
	p := ParamsFor(plainStyle(), DefaultConfig())
	p.Width, p.Height, p.Seed = 8, 8, 42

	img, err := c.Generate(context.Background(), control, p)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	if img.Cols() != 8 || img.Rows() != 8 || img.Channels() != 3 {
		t.Errorf("decoded image = %dx%dx%d, want 8x8x3", img.Cols(), img.Rows(), img.Channels())
	}

	mu.Lock()
	defer mu.Unlock()
	if auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", auth)
	}
	if reqID == "" {
		t.Error("X-Request-ID not set")
	}
	if polls != 1 {
		t.Errorf("polls = %d, want 1", polls)
	}
	wantVersion := LineartModel[strings.LastIndex(LineartModel, ":")+1:]
	if create.Version != wantVersion {
		t.Errorf("version = %q, want model hash", create.Version)
	}
	image, _ := create.Input["image"].(string)
	if !strings.HasPrefix(image, "data:image/png;base64,") {
		t.Errorf("input image = %.40q, want data URL", image)
	}
	if create.Input["seed"] != float64(42) {
		t.Errorf("input seed = %v", create.Input["seed"])
	}
	if create.Input["width"] != float64(8) {
		t.Errorf("input width = %v", create.Input["width"])
	}
}

func TestClientGenerate_PredictionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "p2", "status": "failed", "error": "boom"})
	}))
	defer srv.Close()

	c := NewClient("tok")
	c.BaseURL = srv.URL
	c.PollInterval = time.Millisecond

	control := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer control.Close()

	_, err := c.Generate(context.Background(), control, ParamsFor(plainStyle(), DefaultConfig()))
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want upstream detail", err)
	}
}

func TestClientGenerate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid version"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("tok")
	c.BaseURL = srv.URL

	control := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer control.Close()

	_, err := c.Generate(context.Background(), control, ParamsFor(plainStyle(), DefaultConfig()))
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if !strings.Contains(err.Error(), "422") {
		t.Errorf("err = %v, want status in message", err)
	}
}

func TestModelFor(t *testing.T) {
	c := NewClient("tok")
	if got := c.modelFor(style.ControlLineart); got != LineartModel {
		t.Errorf("lineart model = %q", got)
	}
	if got := c.modelFor(style.ControlCanny); got != CannyModel {
		t.Errorf("canny model = %q", got)
	}
	c.Canny = "custom/canny:v2"
	if got := c.modelFor(style.ControlCanny); got != "custom/canny:v2" {
		t.Errorf("custom canny = %q", got)
	}
}

func TestFirstOutputURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"list", `["https://cdn/x.png","https://cdn/y.png"]`, "https://cdn/x.png", false},
		{"single string", `"https://cdn/x.png"`, "https://cdn/x.png", false},
		{"empty list", `[]`, "", true},
		{"number", `123`, "", true},
		{"absent", ``, "", true},
	}
	for _, tt := range tests {
		got, err := firstOutputURL(json.RawMessage(tt.raw))
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestBuildInput(t *testing.T) {
	p := ParamsFor(plainStyle(), DefaultConfig())
	p.Seed = 7
	in := buildInput("data:image/png;base64,AA==", p)

	for _, key := range []string{
		"image", "prompt", "negative_prompt", "width", "height", "seed",
		"num_inference_steps", "guidance_scale", "strength",
		"controlnet_conditioning_scale", "control_guidance_start", "control_guidance_end",
	} {
		if _, ok := in[key]; !ok {
			t.Errorf("input missing %q", key)
		}
	}
	if in["seed"] != int64(7) {
		t.Errorf("seed = %v", in["seed"])
	}
}
