package types

// EmbeddingRequest embeds text, images or both with one model.
// Images are base64 data URIs or URLs the inference server can download.
type EmbeddingRequest struct {
	Name                 string            `json:"name"`
	Text                 []string          `json:"text,omitempty"`
	Image                []string          `json:"image,omitempty"`
	Normalize            *bool             `json:"normalize,omitempty"`
	NDims                *int              `json:"nDims,omitempty"` // truncate to the first n dimensions
	ImageDownloadHeaders map[string]string `json:"imageDownloadHeaders,omitempty"`
}

// EmbeddingResponse carries one vector per input. A field is nil when the
// request did not include that modality.
type EmbeddingResponse struct {
	TextEmbeddings   [][]float32 `json:"textEmbeddings,omitempty"`
	ImageEmbeddings  [][]float32 `json:"imageEmbeddings,omitempty"`
	ProcessingTimeMs float32     `json:"processingTimeMs"`
}

// TextEmbeddingRequest embeds text only.
type TextEmbeddingRequest struct {
	Name      string   `json:"name"`
	Text      []string `json:"text"`
	Normalize *bool    `json:"normalize,omitempty"`
	NDims     *int     `json:"nDims,omitempty"`
}

// ImageEmbeddingRequest embeds images only.
type ImageEmbeddingRequest struct {
	Name                 string            `json:"name"`
	Image                []string          `json:"image"`
	Normalize            *bool             `json:"normalize,omitempty"`
	NDims                *int              `json:"nDims,omitempty"`
	ImageDownloadHeaders map[string]string `json:"imageDownloadHeaders,omitempty"`
}

// TextEmbeddingResponse is returned by /embed_text.
type TextEmbeddingResponse struct {
	Embeddings       [][]float32 `json:"embeddings"`
	ProcessingTimeMs float32     `json:"processingTimeMs"`
}

// ImageEmbeddingResponse is returned by /embed_image.
type ImageEmbeddingResponse struct {
	Embeddings       [][]float32 `json:"embeddings"`
	ProcessingTimeMs float32     `json:"processingTimeMs"`
}
