package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ytshorts/pkg/config"
	errs "ytshorts/pkg/errors"
	"ytshorts/pkg/logger"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Request describes one image to generate
type Request struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CFGScale       float64
	Sampler        string
	// Seed of -1 lets the server pick a random seed
	Seed  int64
	Model string
}

// RequestFromConfig builds a Request from the configured defaults and a prompt
func RequestFromConfig(cfg config.DiffusionConfig, prompt string) Request {
	if prompt == "" {
		prompt = cfg.Prompt
	}
	return Request{
		Prompt:         prompt,
		NegativePrompt: cfg.NegativePrompt,
		Width:          cfg.Width,
		Height:         cfg.Height,
		Steps:          cfg.Steps,
		CFGScale:       cfg.CFGScale,
		Sampler:        cfg.Sampler,
		Seed:           cfg.Seed,
		Model:          cfg.Model,
	}
}

func (r Request) wire() Txt2ImgRequest {
	body := Txt2ImgRequest{
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		Width:          r.Width,
		Height:         r.Height,
		Steps:          r.Steps,
		CFGScale:       r.CFGScale,
		SamplerName:    r.Sampler,
		Seed:           r.Seed,
		BatchSize:      1,
		NIter:          1,
	}
	if r.Model != "" {
		body.OverrideSettings = map[string]interface{}{"sd_model_checkpoint": r.Model}
	}
	return body
}

// Client talks to a text-to-image HTTP API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a new client for the configured endpoint
func NewClient(cfg config.DiffusionConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		headers: map[string]string{
			"User-Agent":   cfg.UserAgent,
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
		baseURL: cfg.Endpoint,
		logger:  log.WithField("component", "diffusion"),
	}
	if cfg.APIToken != "" {
		c.headers["Authorization"] = "Bearer " + cfg.APIToken
	}
	return c
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "network error")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps non-2xx responses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := http.StatusText(resp.StatusCode)
	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil {
		for _, s := range []string{apiErr.Detail, apiErr.Error, apiErr.Errors} {
			if s != "" {
				message = s
				break
			}
		}
	}

	errType := errs.FromStatusCode(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
		"detail": message,
	}
	if errs.IsRetryable(errType) {
		c.logger.WarnWithFields("diffusion server error", fields)
	} else {
		c.logger.ErrorWithFields("diffusion request rejected", fields)
	}

	return errs.New(errType, resp.StatusCode, "%s", message)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, joinURL(c.baseURL, endpoint), body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}

	if err := json.Unmarshal(data, out); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          req.URL.String(),
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// Generate renders one image and returns it as PNG bytes
func (c *Client) Generate(ctx context.Context, r Request) ([]byte, error) {
	if strings.TrimSpace(r.Prompt) == "" {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "prompt must not be empty")
	}

	var resp Txt2ImgResponse
	if err := c.doJSON(ctx, http.MethodPost, Txt2ImgEndpoint, r.wire(), &resp); err != nil {
		return nil, err
	}

	if len(resp.Images) == 0 {
		return nil, errs.New(errs.ErrorTypeParsing, http.StatusOK, "response contained no images")
	}

	img, err := decodeImage(resp.Images[0])
	if err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("image generated", map[string]interface{}{
		"size":   len(img),
		"width":  r.Width,
		"height": r.Height,
	})
	return img, nil
}

// decodeImage decodes a base64 image, accepting an optional data URL prefix
func decodeImage(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+1:]
	}

	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to decode image")
	}
	if !bytes.HasPrefix(img, pngSignature) {
		return nil, errs.New(errs.ErrorTypeParsing, http.StatusOK, "image is not a PNG")
	}
	return img, nil
}

// Models lists the checkpoints the server can load
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.doJSON(ctx, http.MethodGet, ModelsEndpoint, nil, &models); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// CheckModel confirms the server is reachable and knows the named
// checkpoint. An empty name only checks reachability.
func (c *Client) CheckModel(ctx context.Context, name string) (*Model, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	for i := range models {
		m := &models[i]
		if name == m.Title || name == m.ModelName || name == m.Hash ||
			strings.TrimSuffix(m.Filename, ".safetensors") == name {
			return m, nil
		}
	}
	c.logger.WarnWithFields("configured model not found", map[string]interface{}{
		"model":     name,
		"available": len(models),
	})
	return nil, errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "model %q is not available on the server", name)
}

// FrameGenerator produces numbered frames for one prompt
type FrameGenerator struct {
	client *Client
	base   Request
}

// ForRequest returns a FrameGenerator that renders base for every frame.
// A fixed seed is offset by the frame index so frames differ but stay reproducible.
func (c *Client) ForRequest(base Request) *FrameGenerator {
	return &FrameGenerator{client: c, base: base}
}

// GenerateFrame renders the frame at index
func (g *FrameGenerator) GenerateFrame(ctx context.Context, index int) ([]byte, error) {
	r := g.base
	if r.Seed >= 0 {
		r.Seed += int64(index)
	}
	return g.client.Generate(ctx, r)
}
