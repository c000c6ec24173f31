package types

// InferenceStats is a counter/duration pair reported by the inference
// server. Values are decimal strings.
type InferenceStats struct {
	Count *string `json:"count,omitempty"`
	Ns    *string `json:"ns,omitempty"`
}

// BatchStats reports timings for one batch size.
type BatchStats struct {
	BatchSize     string         `json:"batchSize"`
	ComputeInput  InferenceStats `json:"computeInput"`
	ComputeInfer  InferenceStats `json:"computeInfer"`
	ComputeOutput InferenceStats `json:"computeOutput"`
}

// ModelStats reports usage statistics for one model version.
type ModelStats struct {
	Name           string                    `json:"name"`
	Version        string                    `json:"version"`
	InferenceStats map[string]InferenceStats `json:"inferenceStats"`
	LastInference  *string                   `json:"lastInference,omitempty"`
	InferenceCount *string                   `json:"inferenceCount,omitempty"`
	ExecutionCount *string                   `json:"executionCount,omitempty"`
	BatchStats     []BatchStats              `json:"batchStats,omitempty"`
}

// MetricsResponse represents the response from the inference server's /metrics.
type MetricsResponse struct {
	ModelStats []ModelStats `json:"modelStats"`
}
