package ingrain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stevemurr/ingrain/types"
)

// Embed embeds text, images or both. At least one of req.Text and
// req.Image must be non-empty; otherwise a ValidationError wrapping
// types.ErrNoInput is returned and nothing is sent.
//
// The response carries exactly one vector per input of each requested
// modality and a nil slice for a modality that was not requested.
func (c *Client) Embed(ctx context.Context, req *types.EmbeddingRequest) (*types.EmbeddingResponse, error) {
	if req == nil {
		return nil, types.NewValidationError("", "nil request")
	}
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if len(req.Text) == 0 && len(req.Image) == 0 {
		return nil, &types.ValidationError{Field: "text/image", Reason: "at least one text or image is required", Err: types.ErrNoInput}
	}
	if err := validateDims(req.NDims); err != nil {
		return nil, err
	}

	cl, err := newCall(types.InferenceServer, "embed", http.MethodPost, "/embed", req)
	if err != nil {
		return nil, err
	}
	cl.retry = true

	var resp types.EmbeddingResponse
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	if err := matchInputs(cl, "text", len(req.Text), &resp.TextEmbeddings); err != nil {
		return nil, err
	}
	if err := matchInputs(cl, "image", len(req.Image), &resp.ImageEmbeddings); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EmbedText embeds a batch of text.
func (c *Client) EmbedText(ctx context.Context, req *types.TextEmbeddingRequest) (*types.TextEmbeddingResponse, error) {
	if req == nil {
		return nil, types.NewValidationError("", "nil request")
	}
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if len(req.Text) == 0 {
		return nil, &types.ValidationError{Field: "text", Reason: "at least one text is required", Err: types.ErrNoInput}
	}
	if err := validateDims(req.NDims); err != nil {
		return nil, err
	}

	cl, err := newCall(types.InferenceServer, "embed_text", http.MethodPost, "/embed_text", req)
	if err != nil {
		return nil, err
	}
	cl.retry = true

	var resp types.TextEmbeddingResponse
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	if err := matchInputs(cl, "text", len(req.Text), &resp.Embeddings); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EmbedImage embeds a batch of images.
func (c *Client) EmbedImage(ctx context.Context, req *types.ImageEmbeddingRequest) (*types.ImageEmbeddingResponse, error) {
	if req == nil {
		return nil, types.NewValidationError("", "nil request")
	}
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, &types.ValidationError{Field: "image", Reason: "at least one image is required", Err: types.ErrNoInput}
	}
	if err := validateDims(req.NDims); err != nil {
		return nil, err
	}

	cl, err := newCall(types.InferenceServer, "embed_image", http.MethodPost, "/embed_image", req)
	if err != nil {
		return nil, err
	}
	cl.retry = true

	var resp types.ImageEmbeddingResponse
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	if err := matchInputs(cl, "image", len(req.Image), &resp.Embeddings); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClassifyImage classifies a batch of images with a classifier model such
// as a timm model.
func (c *Client) ClassifyImage(ctx context.Context, req *types.ImageClassificationRequest) (*types.ImageClassificationResponse, error) {
	if req == nil {
		return nil, types.NewValidationError("", "nil request")
	}
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, &types.ValidationError{Field: "image", Reason: "at least one image is required", Err: types.ErrNoInput}
	}

	cl, err := newCall(types.InferenceServer, "classify_image", http.MethodPost, "/classify_image", req)
	if err != nil {
		return nil, err
	}
	cl.retry = true

	var resp types.ImageClassificationResponse
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	if err := matchInputs(cl, "image", len(req.Image), &resp.Probabilities); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModelClassificationLabels returns the class labels of a loaded classifier.
func (c *Client) ModelClassificationLabels(ctx context.Context, name string) (*types.ModelClassificationLabelsResponse, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	cl := &call{
		server: types.ModelServer,
		op:     "model_classification_labels",
		method: http.MethodGet,
		path:   "/model_classification_labels",
		query:  url.Values{"name": {name}},
		retry:  true,
	}

	var resp types.ModelClassificationLabelsResponse
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ModelEmbeddingSize returns the embedding width of a loaded model.
func (c *Client) ModelEmbeddingSize(ctx context.Context, name string) (*types.ModelEmbeddingSizeResponse, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	cl := &call{
		server: types.ModelServer,
		op:     "model_embedding_size",
		method: http.MethodGet,
		path:   "/model_embedding_size",
		query:  url.Values{"name": {name}},
		retry:  true,
	}

	var resp types.ModelEmbeddingSizeResponse
	if err := c.invoke(ctx, cl, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func validateDims(n *int) error {
	if n != nil && *n <= 0 {
		return types.NewValidationError("nDims", fmt.Sprintf("must be positive, got %d", *n))
	}
	return nil
}

// matchInputs checks that a modality came back with one vector per input.
// An unrequested modality must be absent or empty and is normalized to nil.
func matchInputs(cl *call, modality string, inputs int, got *[][]float32) error {
	if inputs == 0 && len(*got) == 0 {
		*got = nil
		return nil
	}
	if len(*got) == inputs {
		return nil
	}
	return &types.DecodeError{
		Server:     cl.server,
		Op:         cl.op,
		StatusCode: http.StatusOK,
		Err:        fmt.Errorf("%w: %d %s inputs, %d vectors", types.ErrEmbeddingCountMismatch, inputs, modality, len(*got)),
	}
}
