package ingrain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stevemurr/ingrain/types"
)

const (
	testModelURL     = "http://ingrain.test:8687"
	testInferenceURL = "http://ingrain.test:8686"

	openCLIPModel = "hf-hub:laion/CLIP-ViT-B-32-laion2B-s34B-b79K"
	timmModel     = "hf_hub:timm/mobilenetv4_conv_medium.e250_r384_in12k_ft_in1k"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	opts = append([]Option{WithHTTPClient(&http.Client{Transport: mt})}, opts...)
	c, err := New(testModelURL, testInferenceURL, opts...)
	require.NoError(t, err)
	return c, mt
}

func TestNew(t *testing.T) {
	c, err := New("http://localhost:8687/", "https://inference.example.com/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8687", c.ModelServerURL())
	assert.Equal(t, "https://inference.example.com/api", c.InferenceServerURL())

	for _, raw := range []string{"", "localhost:8687", "ftp://localhost:8687", "http://"} {
		_, err := New(raw, "http://localhost:8686")
		assert.Error(t, err, raw)
	}

	_, err = New("http://localhost:8687", "http://localhost:8686", WithHTTPClient(nil))
	assert.Error(t, err)
	_, err = New("http://localhost:8687", "http://localhost:8686", WithTimeout(-time.Second))
	assert.Error(t, err)
}

func TestModelServerHealth(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testModelURL+"/health",
		httpmock.NewStringResponder(200, `{"message": "Model server healthy"}`))

	resp, err := c.ModelServerHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Model server healthy", resp.Message)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestInferenceServerHealth(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testInferenceURL+"/health",
		httpmock.NewStringResponder(200, `{"message": "Inference server healthy"}`))

	resp, err := c.InferenceServerHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Inference server healthy", resp.Message)
}

func TestNonSuccessIsServerError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{"json message", 500, `{"message": "Internal Server Error"}`, "Internal Server Error"},
		{"fastapi detail", 404, `{"detail": "Model not loaded"}`, "Model not loaded"},
		{"plain text", 502, "Bad Gateway", "Bad Gateway"},
		{"malformed json", 503, `{"message": `, `{"message":`},
		{"empty body", 500, "", "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := newTestClient(t)
			mt.RegisterResponder(http.MethodGet, testModelURL+"/health",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := c.ModelServerHealth(context.Background())
			require.Error(t, err)

			var srvErr *types.ServerError
			require.ErrorAs(t, err, &srvErr)
			assert.Equal(t, tt.status, srvErr.StatusCode)
			assert.Equal(t, tt.wantMessage, srvErr.Message)
			assert.Equal(t, types.ModelServer, srvErr.Server)

			var decErr *types.DecodeError
			assert.False(t, errors.As(err, &decErr))
		})
	}
}

func TestMalformedBodyIsDecodeError(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testInferenceURL+"/health",
		httpmock.NewStringResponder(200, `{"message": `))

	_, err := c.InferenceServerHealth(context.Background())
	require.Error(t, err)

	var decErr *types.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, 200, decErr.StatusCode)
	assert.Equal(t, types.InferenceServer, decErr.Server)

	var srvErr *types.ServerError
	assert.False(t, errors.As(err, &srvErr))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	refused := errors.New("connection refused")
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testModelURL+"/loaded_models", httpmock.NewErrorResponder(refused))

	_, err := c.LoadedModels(context.Background())
	var netErr *types.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, refused)

	// The client stays usable after a failure.
	mt.RegisterResponder(http.MethodGet, testModelURL+"/loaded_models",
		httpmock.NewStringResponder(200, `{"models": [{"name": "intfloat/e5-small-v2", "library": "sentence_transformers"}]}`))
	resp, err := c.LoadedModels(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Models, 1)
	assert.Equal(t, types.SentenceTransformers, resp.Models[0].Library)
}

func TestTimeout(t *testing.T) {
	c, mt := newTestClient(t, WithTimeout(10*time.Millisecond))
	mt.RegisterResponder(http.MethodGet, testModelURL+"/health", func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	_, err := c.ModelServerHealth(context.Background())
	var netErr *types.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadAndUnloadModel(t *testing.T) {
	c, mt := newTestClient(t)
	before := *c

	mt.RegisterResponder(http.MethodPost, testModelURL+"/load_model", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.NotEmpty(t, req.Header.Get(RequestIDHeader))

		var body map[string]string
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return httpmock.NewStringResponse(400, ""), nil
		}
		assert.Equal(t, openCLIPModel, body["name"])
		assert.Equal(t, "open_clip", body["library"])
		return httpmock.NewJsonResponse(200, map[string]string{"message": "Model " + body["name"] + " loaded successfully"})
	})
	mt.RegisterResponder(http.MethodPost, testModelURL+"/unload_model", func(req *http.Request) (*http.Response, error) {
		var body map[string]string
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return httpmock.NewStringResponse(400, ""), nil
		}
		assert.Equal(t, map[string]string{"name": openCLIPModel}, body)
		return httpmock.NewJsonResponse(200, map[string]string{"message": "Model unloaded"})
	})

	loaded, err := c.LoadModel(context.Background(), openCLIPModel, types.OpenCLIP)
	require.NoError(t, err)
	assert.Contains(t, loaded.Message, "loaded")

	unloaded, err := c.UnloadModel(context.Background(), openCLIPModel)
	require.NoError(t, err)
	assert.Equal(t, "Model unloaded", unloaded.Message)

	assert.Equal(t, before, *c)
	assert.Equal(t, 2, mt.GetTotalCallCount())
}

func TestLoadModelValidation(t *testing.T) {
	c, mt := newTestClient(t)

	_, err := c.LoadModel(context.Background(), "  ", types.OpenCLIP)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = c.LoadModel(context.Background(), openCLIPModel, types.ModelLibrary(0))
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = c.LoadModel(context.Background(), openCLIPModel, types.ModelLibrary(42))
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = c.UnloadModel(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = c.DeleteModel(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	assert.Equal(t, 0, mt.GetTotalCallCount())
}

func TestUnloadModelNotLoaded(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodPost, testModelURL+"/unload_model",
		httpmock.NewStringResponder(404, `{"detail": "Model intfloat/e5-small-v2 is not loaded"}`))

	_, err := c.UnloadModel(context.Background(), "intfloat/e5-small-v2")
	var srvErr *types.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 404, srvErr.StatusCode)
	assert.Equal(t, "Model intfloat/e5-small-v2 is not loaded", srvErr.Message)
}

func TestDeleteModel(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodPost, testModelURL+"/delete_model",
		httpmock.NewStringResponder(200, `{"message": "Model deleted"}`))

	resp, err := c.DeleteModel(context.Background(), timmModel)
	require.NoError(t, err)
	assert.Equal(t, "Model deleted", resp.Message)
}

func TestRepositoryModels(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testModelURL+"/repository_models",
		httpmock.NewStringResponder(200, `{"models": [{"name": "a", "state": "READY"}, {"name": "b", "state": "UNAVAILABLE"}]}`))

	resp, err := c.RepositoryModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.RepositoryModel{{Name: "a", State: "READY"}, {Name: "b", State: "UNAVAILABLE"}}, resp.Models)
}

func TestMetricsEndpoint(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testInferenceURL+"/metrics",
		httpmock.NewStringResponder(200, `{
			"modelStats": [{
				"name": "intfloat_e5-small-v2_text_encoder",
				"version": "1",
				"inferenceStats": {"success": {"count": "12", "ns": "3400000"}, "fail": {}},
				"lastInference": "1717000000000",
				"inferenceCount": "12",
				"executionCount": "10",
				"batchStats": [{
					"batchSize": "1",
					"computeInput": {"count": "10", "ns": "1000"},
					"computeInfer": {"count": "10", "ns": "9000"},
					"computeOutput": {"count": "10", "ns": "500"}
				}]
			}]
		}`))

	resp, err := c.Metrics(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.ModelStats, 1)
	stats := resp.ModelStats[0]
	assert.Equal(t, "1", stats.Version)
	require.NotNil(t, stats.InferenceStats["success"].Count)
	assert.Equal(t, "12", *stats.InferenceStats["success"].Count)
	assert.Nil(t, stats.InferenceStats["fail"].Count)
	require.Len(t, stats.BatchStats, 1)
	assert.Equal(t, "9000", *stats.BatchStats[0].ComputeInfer.Ns)
}

func TestMetricsCollection(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, mt := newTestClient(t, WithMetrics(reg))
	mt.RegisterResponder(http.MethodGet, testModelURL+"/health",
		httpmock.NewStringResponder(200, `{"message": "ok"}`))
	mt.RegisterResponder(http.MethodGet, testInferenceURL+"/health",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.ModelServerHealth(context.Background())
	require.NoError(t, err)
	_, err = c.InferenceServerHealth(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues("model", "health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.requests.WithLabelValues("inference", "health", "error")))

	// A second client can share the registry.
	_, err = New(testModelURL, testInferenceURL, WithMetrics(reg))
	require.NoError(t, err)
}

func TestTracingWrapsTransport(t *testing.T) {
	mt := httpmock.NewMockTransport()
	hc := &http.Client{Transport: mt}
	c, err := New(testModelURL, testInferenceURL, WithHTTPClient(hc), WithTracing())
	require.NoError(t, err)

	assert.Same(t, mt, hc.Transport, "caller's client must not be modified")
	assert.NotSame(t, hc, c.httpClient)

	mt.RegisterResponder(http.MethodGet, testModelURL+"/health",
		httpmock.NewStringResponder(200, `{"message": "ok"}`))
	_, err = c.ModelServerHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}
