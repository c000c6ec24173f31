package types

// ImageClassificationRequest classifies images with a classifier model.
type ImageClassificationRequest struct {
	Name                 string            `json:"name"`
	Image                []string          `json:"image"`
	ImageDownloadHeaders map[string]string `json:"imageDownloadHeaders,omitempty"`
}

// ImageClassificationResponse holds one probability vector per image, in
// the order of the model's classification labels.
type ImageClassificationResponse struct {
	Probabilities    [][]float32 `json:"probabilities"`
	ProcessingTimeMs float32     `json:"processingTimeMs"`
}
