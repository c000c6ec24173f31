// Package ingrain is a client for the Ingrain model and inference servers.
//
// A Client talks to two independently addressed servers: the model server,
// which loads and unloads models, and the inference server, which computes
// embeddings and classifications. The client keeps no state between calls;
// which models are loaded is known only to the servers.
package ingrain

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/stevemurr/ingrain/types"
)

const defaultUserAgent = "ingrain-go"

// Client calls the Ingrain servers. It is safe for concurrent use.
type Client struct {
	modelServerURL     *url.URL
	inferenceServerURL *url.URL
	httpClient         *http.Client
	logger             *slog.Logger
	userAgent          string
	timeout            time.Duration
	retries            uint
	retryDelay         time.Duration
	metrics            *clientMetrics
	tracing            bool
}

// New creates a client for the given model server and inference server
// base URLs. It performs no network I/O.
func New(modelServerURL, inferenceServerURL string, opts ...Option) (*Client, error) {
	modelURL, err := parseBaseURL(modelServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid model server URL: %w", err)
	}
	inferenceURL, err := parseBaseURL(inferenceServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid inference server URL: %w", err)
	}

	c := &Client{
		modelServerURL:     modelURL,
		inferenceServerURL: inferenceURL,
		httpClient:         &http.Client{},
		logger:             slog.Default(),
		userAgent:          defaultUserAgent,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.tracing {
		hc := *c.httpClient
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc.Transport = otelhttp.NewTransport(base,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "ingrain " + r.Method + " " + r.URL.Path
			}),
		)
		c.httpClient = &hc
	}

	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%q: missing host", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// ModelServerURL returns the model server base URL.
func (c *Client) ModelServerURL() string {
	return c.modelServerURL.String()
}

// InferenceServerURL returns the inference server base URL.
func (c *Client) InferenceServerURL() string {
	return c.inferenceServerURL.String()
}

func (c *Client) baseURL(s types.Server) *url.URL {
	if s == types.ModelServer {
		return c.modelServerURL
	}
	return c.inferenceServerURL
}

// ModelServerHealth checks the model server.
func (c *Client) ModelServerHealth(ctx context.Context) (*types.HealthResponse, error) {
	return c.health(ctx, types.ModelServer)
}

// InferenceServerHealth checks the inference server.
func (c *Client) InferenceServerHealth(ctx context.Context) (*types.HealthResponse, error) {
	return c.health(ctx, types.InferenceServer)
}

func (c *Client) health(ctx context.Context, s types.Server) (*types.HealthResponse, error) {
	var resp types.HealthResponse
	if err := c.invoke(ctx, &call{server: s, op: "health", method: http.MethodGet, path: "/health"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoadedModels lists the models the model server currently holds.
func (c *Client) LoadedModels(ctx context.Context) (*types.LoadedModelsResponse, error) {
	var resp types.LoadedModelsResponse
	cl := &call{server: types.ModelServer, op: "loaded_models", method: http.MethodGet, path: "/loaded_models"}
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RepositoryModels lists the models in the server's model repository and
// their state.
func (c *Client) RepositoryModels(ctx context.Context) (*types.RepositoryModelsResponse, error) {
	var resp types.RepositoryModelsResponse
	cl := &call{server: types.ModelServer, op: "repository_models", method: http.MethodGet, path: "/repository_models"}
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metrics returns per-model inference statistics from the inference server.
func (c *Client) Metrics(ctx context.Context) (*types.MetricsResponse, error) {
	var resp types.MetricsResponse
	cl := &call{server: types.InferenceServer, op: "metrics", method: http.MethodGet, path: "/metrics"}
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoadModel asks the model server to load name with the given library.
func (c *Client) LoadModel(ctx context.Context, name string, library types.ModelLibrary) (*types.MessageResponse, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if !library.Valid() {
		return nil, types.NewValidationError("library", fmt.Sprintf("unsupported model library %d", int(library)))
	}
	return c.manageModel(ctx, "load_model", "/load_model", &types.LoadModelRequest{Name: name, Library: library})
}

// UnloadModel asks the model server to unload name.
func (c *Client) UnloadModel(ctx context.Context, name string) (*types.MessageResponse, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return c.manageModel(ctx, "unload_model", "/unload_model", &types.UnloadModelRequest{Name: name})
}

// DeleteModel removes name from the model repository.
func (c *Client) DeleteModel(ctx context.Context, name string) (*types.MessageResponse, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return c.manageModel(ctx, "delete_model", "/delete_model", &types.UnloadModelRequest{Name: name})
}

func (c *Client) manageModel(ctx context.Context, op, path string, in any) (*types.MessageResponse, error) {
	cl, err := newCall(types.ModelServer, op, http.MethodPost, path, in)
	if err != nil {
		return nil, err
	}
	var resp types.MessageResponse
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return types.NewValidationError("name", "model name is required")
	}
	return nil
}
