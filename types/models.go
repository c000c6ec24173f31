package types

// MessageResponse is the acknowledgement returned by model management calls.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by the health endpoint of either server.
type HealthResponse = MessageResponse

// LoadModelRequest asks the model server to load a model.
type LoadModelRequest struct {
	Name    string       `json:"name"`
	Library ModelLibrary `json:"library"`
}

// UnloadModelRequest names a model to unload or delete.
type UnloadModelRequest struct {
	Name string `json:"name"`
}

// ModelMetadataRequest names a model whose metadata is queried. It is sent
// as a query string.
type ModelMetadataRequest struct {
	Name string `json:"name"`
}

// LoadedModel is a model currently held by the model server.
type LoadedModel struct {
	Name    string       `json:"name"`
	Library ModelLibrary `json:"library"`
}

// LoadedModelsResponse represents the response from /loaded_models.
type LoadedModelsResponse struct {
	Models []LoadedModel `json:"models"`
}

// RepositoryModel is a model known to the server's model repository.
type RepositoryModel struct {
	Name  string `json:"name"`
	State string `json:"state"` // e.g. READY, UNAVAILABLE
}

// RepositoryModelsResponse represents the response from /repository_models.
type RepositoryModelsResponse struct {
	Models []RepositoryModel `json:"models"`
}

// ModelClassificationLabelsResponse lists the class labels of a classifier.
type ModelClassificationLabelsResponse struct {
	Labels []string `json:"labels"`
}

// ModelEmbeddingSizeResponse reports the embedding width of a model.
type ModelEmbeddingSizeResponse struct {
	EmbeddingSize uint64 `json:"embeddingSize"`
}
