package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"sigil-guard/internal/sigil"
	"sigil-guard/internal/style"
	"sigil-guard/internal/version"
)

// Hosted model versions. The scribble variant tracks hand-drawn linework
// better than the dedicated lineart models, so it backs both lineart and
// scribble control types.
const (
	LineartModel = "jagilley/controlnet-scribble:435061a1b5a4c1e26740464bf786efdfa9cb3a3ac488595a2de23e143fdb0117"
	CannyModel   = "jagilley/controlnet-canny:aff48af9c68d162388d230a2ab003f68d2638d88307bdaf1c2f1ac95079c9613"

	defaultBaseURL      = "https://api.replicate.com"
	defaultPollInterval = 500 * time.Millisecond
)

// Client talks to a Replicate-style prediction API: create a prediction,
// poll it to a terminal state, fetch the output image.
type Client struct {
	BaseURL      string
	Token        string
	HTTPClient   *http.Client
	PollInterval time.Duration

	// Model versions per control type; zero values fall back to the
	// hosted defaults.
	Lineart string
	Canny   string
}

// NewClient returns a Client using the hosted models.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:      defaultBaseURL,
		Token:        token,
		PollInterval: defaultPollInterval,
		Lineart:      LineartModel,
		Canny:        CannyModel,
	}
}

// Configured reports whether the client has an API token.
func (c *Client) Configured() bool {
	return c.Token != ""
}

// Generate implements Generator against the prediction API.
func (c *Client) Generate(ctx context.Context, control gocv.Mat, p Params) (gocv.Mat, error) {
	dataURL, err := sigil.EncodeDataURL(control)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: encode control image: %v", ErrGeneration, err)
	}

	pred, err := c.create(ctx, c.modelFor(p.ControlType), buildInput(dataURL, p))
	if err != nil {
		return gocv.NewMat(), err
	}

	pred, err = c.wait(ctx, pred)
	if err != nil {
		return gocv.NewMat(), err
	}

	outputURL, err := firstOutputURL(pred.Output)
	if err != nil {
		return gocv.NewMat(), err
	}

	data, err := c.fetch(ctx, outputURL)
	if err != nil {
		return gocv.NewMat(), err
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || img.Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: decode output image", ErrGeneration)
	}
	return img, nil
}

func (c *Client) modelFor(t style.ControlType) string {
	if t == style.ControlCanny {
		if c.Canny != "" {
			return c.Canny
		}
		return CannyModel
	}
	if c.Lineart != "" {
		return c.Lineart
	}
	return LineartModel
}

// buildInput assembles the prediction input payload.
func buildInput(controlDataURL string, p Params) map[string]any {
	return map[string]any{
		"image":           controlDataURL,
		"prompt":          p.Prompt,
		"negative_prompt": p.NegativePrompt,
		"num_outputs":     1,
		"width":           p.Width,
		"height":          p.Height,

		"conditioning_scale":  p.ConditioningScale,
		"guidance_scale":      p.GuidanceScale,
		"num_inference_steps": p.Steps,
		"strength":            p.DenoiseStrength,

		"controlnet_conditioning_scale": p.ConditioningScale,
		"control_guidance_start":        p.GuidanceStart,
		"control_guidance_end":          p.GuidanceEnd,

		"seed": p.Seed,
	}
}

type predictionRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

func (c *Client) create(ctx context.Context, model string, input map[string]any) (*prediction, error) {
	modelVersion := model
	if i := strings.LastIndex(model, ":"); i >= 0 {
		modelVersion = model[i+1:]
	}

	body, err := json.Marshal(predictionRequest{Version: modelVersion, Input: input})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/v1/predictions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", uuid.NewString())

	return c.do(req)
}

// wait polls the prediction until it reaches a terminal state.
func (c *Client) wait(ctx context.Context, p *prediction) (*prediction, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		switch p.Status {
		case "succeeded":
			return p, nil
		case "failed", "canceled":
			return nil, fmt.Errorf("%w: prediction %s %s: %s", ErrGeneration, p.ID, p.Status, p.Error)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrGeneration, ctx.Err())
		case <-ticker.C:
		}

		pollURL := p.URLs.Get
		if pollURL == "" {
			pollURL = c.baseURL() + "/v1/predictions/" + p.ID
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)

		p, err = c.do(req)
		if err != nil {
			return nil, err
		}
	}
}

func (c *Client) do(req *http.Request) (*prediction, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGeneration, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: %s", ErrGeneration, resp.Status, strings.TrimSpace(string(body)))
	}

	var p prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGeneration, err)
	}
	return &p, nil
}

// fetch downloads the generated image bytes.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch output: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch output: %s", ErrGeneration, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// firstOutputURL handles both output shapes the API produces: a list of
// URLs or a single URL string.
func firstOutputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: prediction returned no output", ErrGeneration)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 || list[0] == "" {
			return "", fmt.Errorf("%w: prediction returned no output", ErrGeneration)
		}
		return list[0], nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	return "", fmt.Errorf("%w: unexpected prediction output format", ErrGeneration)
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
