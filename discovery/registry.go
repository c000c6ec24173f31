package discovery

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/stevemurr/ingrain"
	"github.com/stevemurr/ingrain/types"
)

// Registry tracks discovered Ingrain endpoints and the models loaded on
// each. The model index is refreshed from the servers; it is never updated
// by load or unload calls made through the returned clients.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*member  // endpoint ID -> member
	models  map[string][]string // model name -> []endpoint ID

	clientOpts []ingrain.Option
	logger     *slog.Logger
}

type member struct {
	endpoint Endpoint
	client   *ingrain.Client
	healthy  atomic.Bool
	models   []types.LoadedModel
}

// Member is a snapshot of a registered endpoint.
type Member struct {
	Endpoint Endpoint            `json:"endpoint"`
	Healthy  bool                `json:"healthy"`
	Models   []types.LoadedModel `json:"models"`
}

// NewRegistry creates an empty registry. The options are used for every
// endpoint client it creates.
func NewRegistry(logger *slog.Logger, opts ...ingrain.Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		members:    make(map[string]*member),
		models:     make(map[string][]string),
		clientOpts: opts,
		logger:     logger,
	}
}

// Register adds an endpoint and indexes its loaded models. An endpoint whose
// servers cannot be reached is still registered, marked unhealthy.
func (r *Registry) Register(ctx context.Context, ep Endpoint) error {
	c, err := ep.Client(r.clientOpts...)
	if err != nil {
		return fmt.Errorf("endpoint %s: %w", ep.ID, err)
	}

	r.mu.Lock()
	r.members[ep.ID] = &member{endpoint: ep, client: c}
	r.mu.Unlock()

	if err := r.Refresh(ctx, ep.ID); err != nil {
		r.logger.Warn("registered unhealthy ingrain endpoint", "id", ep.ID, "error", err)
	}
	return nil
}

// Unregister removes an endpoint and its model mappings.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.members, id)
	r.removeModelMappings(id)
}

// removeModelMappings drops every model -> id mapping (must hold lock).
func (r *Registry) removeModelMappings(id string) {
	for name, ids := range r.models {
		filtered := make([]string, 0, len(ids))
		for _, mid := range ids {
			if mid != id {
				filtered = append(filtered, mid)
			}
		}
		if len(filtered) == 0 {
			delete(r.models, name)
		} else {
			r.models[name] = filtered
		}
	}
}

// addModelMapping adds a model -> id mapping (must hold lock).
func (r *Registry) addModelMapping(name, id string) {
	ids := r.models[name]
	for _, mid := range ids {
		if mid == id {
			return
		}
	}
	r.models[name] = append(ids, id)
}

// Refresh checks both servers of an endpoint and re-indexes its loaded
// models. The endpoint is healthy only if every call succeeds.
func (r *Registry) Refresh(ctx context.Context, id string) error {
	r.mu.RLock()
	m, ok := r.members[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("endpoint not found: %s", id)
	}

	_, modelErr := m.client.ModelServerHealth(ctx)
	_, inferenceErr := m.client.InferenceServerHealth(ctx)
	loaded, listErr := m.client.LoadedModels(ctx)
	err := errors.Join(modelErr, inferenceErr, listErr)
	m.healthy.Store(err == nil)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Unregistered while the servers were queried.
	if r.members[id] != m {
		return err
	}
	if listErr != nil {
		return err
	}
	r.removeModelMappings(id)
	m.models = loaded.Models
	for _, lm := range loaded.Models {
		r.addModelMapping(lm.Name, id)
	}
	return err
}

// RefreshAll refreshes every registered endpoint.
func (r *Registry) RefreshAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		if err := r.Refresh(ctx, id); err != nil {
			r.logger.Debug("ingrain endpoint refresh failed", "id", id, "error", err)
		}
	}
}

// LookupResult is the endpoint chosen for a model.
type LookupResult struct {
	Endpoint Endpoint
	Client   *ingrain.Client
	Fallback bool // the endpoint preferred for the key was unhealthy
}

// Lookup finds an endpoint serving the model. With an empty key the first
// healthy endpoint wins. Otherwise the key is hashed onto the endpoints
// serving the model so the same key keeps hitting the same endpoint while
// it stays healthy.
func (r *Registry) Lookup(model, key string) (LookupResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.models[model]
	if !ok || len(ids) == 0 {
		return LookupResult{}, false
	}

	var all, healthy []*member
	for _, id := range ids {
		m, ok := r.members[id]
		if !ok {
			continue
		}
		all = append(all, m)
		if m.healthy.Load() {
			healthy = append(healthy, m)
		}
	}
	if len(all) == 0 {
		return LookupResult{}, false
	}

	if key == "" {
		if len(healthy) > 0 {
			return result(healthy[0], false), true
		}
		return result(all[0], false), true
	}

	byID := func(ms []*member) {
		sort.Slice(ms, func(i, j int) bool { return ms[i].endpoint.ID < ms[j].endpoint.ID })
	}
	byID(all)
	byID(healthy)

	preferred := all[hashKeyToIndex(key, len(all))]
	if preferred.healthy.Load() {
		return result(preferred, false), true
	}
	if len(healthy) > 0 {
		return result(healthy[hashKeyToIndex(key, len(healthy))], true), true
	}
	return result(preferred, true), true
}

func result(m *member, fallback bool) LookupResult {
	return LookupResult{Endpoint: m.endpoint, Client: m.client, Fallback: fallback}
}

// hashKeyToIndex maps a key onto [0, count) with FNV-1a.
func hashKeyToIndex(key string, count int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(count))
}

// Members returns a snapshot of every endpoint, sorted by ID.
func (r *Registry) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, Member{
			Endpoint: m.endpoint,
			Healthy:  m.healthy.Load(),
			Models:   append([]types.LoadedModel(nil), m.models...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint.ID < out[j].Endpoint.ID })
	return out
}

// Count returns the number of registered endpoints.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ModelCount returns the number of distinct loaded models.
func (r *Registry) ModelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// Sync registers everything d currently finds, then follows its events
// until ctx is done or the event stream ends.
func (r *Registry) Sync(ctx context.Context, d Discoverer) error {
	endpoints, err := d.Discover(ctx)
	if err != nil {
		return fmt.Errorf("%s discovery: %w", d.Name(), err)
	}
	for _, ep := range endpoints {
		if err := r.Register(ctx, ep); err != nil {
			r.logger.Warn("skipping ingrain endpoint", "id", ep.ID, "error", err)
		}
	}

	events, err := d.Watch(ctx)
	if err != nil {
		return fmt.Errorf("%s watch: %w", d.Name(), err)
	}
	for ev := range events {
		switch ev.Type {
		case EventAdded:
			if err := r.Register(ctx, ev.Endpoint); err != nil {
				r.logger.Warn("skipping ingrain endpoint", "id", ev.Endpoint.ID, "error", err)
			}
		case EventRemoved:
			r.Unregister(ev.Endpoint.ID)
		}
	}
	return ctx.Err()
}
