// Package discovery locates running Ingrain servers.
package discovery

import (
	"context"

	"github.com/stevemurr/ingrain"
)

// Endpoint is a pair of Ingrain server base URLs, usually served by the
// same container.
type Endpoint struct {
	ID                 string `json:"id"`
	ModelServerURL     string `json:"modelServerUrl"`
	InferenceServerURL string `json:"inferenceServerUrl"`
}

// Client builds an Ingrain client for the endpoint.
func (e Endpoint) Client(opts ...ingrain.Option) (*ingrain.Client, error) {
	return ingrain.New(e.ModelServerURL, e.InferenceServerURL, opts...)
}

// EventType represents a discovery event type.
type EventType string

const (
	EventAdded   EventType = "added"
	EventRemoved EventType = "removed"
)

// Event signals that an endpoint appeared or went away.
type Event struct {
	Type     EventType `json:"type"`
	Endpoint Endpoint  `json:"endpoint"`
}

// Discoverer finds and monitors Ingrain endpoints.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context) ([]Endpoint, error)
	Watch(ctx context.Context) (<-chan Event, error)
}
