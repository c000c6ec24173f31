package types

// Server identifies one of the two Ingrain servers a request is sent to.
type Server string

const (
	// ModelServer loads, unloads and describes models.
	ModelServer Server = "model"
	// InferenceServer computes embeddings and classifications.
	InferenceServer Server = "inference"
)

func (s Server) String() string {
	return string(s)
}
