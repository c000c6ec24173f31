package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// Default container ports of the Ingrain server image.
const (
	DefaultModelServerPort     = 8687
	DefaultInferenceServerPort = 8686
)

// ImageRule marks containers of an image as Ingrain servers.
type ImageRule struct {
	Pattern       string // prefix, or prefix*suffix
	ModelPort     int
	InferencePort int
}

// DefaultImageRules match the published Ingrain server image.
var DefaultImageRules = []ImageRule{
	{
		Pattern:       "owenpelliott/ingrain-server",
		ModelPort:     DefaultModelServerPort,
		InferencePort: DefaultInferenceServerPort,
	},
}

// LabelConfig names the container labels read by the discoverer. Every key
// is prefixed with Prefix.
type LabelConfig struct {
	Prefix           string
	EnabledKey       string // "true" opts a container in regardless of image
	ModelPortKey     string
	InferencePortKey string
	ModelURLKey      string // full URL, overrides host and port
	InferenceURLKey  string
	DefaultHost      string
}

// DefaultLabelConfig uses ingrain.* labels and localhost.
var DefaultLabelConfig = LabelConfig{
	Prefix:           "ingrain.",
	EnabledKey:       "enabled",
	ModelPortKey:     "model_port",
	InferencePortKey: "inference_port",
	ModelURLKey:      "model_url",
	InferenceURLKey:  "inference_url",
	DefaultHost:      "localhost",
}

// dockerAPI is the subset of the Docker client used here.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	Close() error
}

// DockerDiscoverer finds Ingrain servers running in Docker containers.
type DockerDiscoverer struct {
	client     dockerAPI
	imageRules []ImageRule
	labels     LabelConfig
	logger     *slog.Logger
	ownClient  bool
}

// DockerOption configures the Docker discoverer.
type DockerOption func(*DockerDiscoverer)

// WithImageRule adds a custom image rule.
func WithImageRule(rule ImageRule) DockerOption {
	return func(d *DockerDiscoverer) {
		d.imageRules = append(d.imageRules, rule)
	}
}

// WithLabelConfig replaces the label names.
func WithLabelConfig(cfg LabelConfig) DockerOption {
	return func(d *DockerDiscoverer) {
		d.labels = cfg
	}
}

// WithDockerClient uses an existing Docker client.
func WithDockerClient(c *client.Client) DockerOption {
	return func(d *DockerDiscoverer) {
		d.client = c
		d.ownClient = false
	}
}

// WithDiscoveryLogger sets a custom logger.
func WithDiscoveryLogger(l *slog.Logger) DockerOption {
	return func(d *DockerDiscoverer) {
		d.logger = l
	}
}

// NewDockerDiscoverer creates a new Docker discoverer. Without
// WithDockerClient it connects using the DOCKER_* environment.
func NewDockerDiscoverer(opts ...DockerOption) (*DockerDiscoverer, error) {
	d := &DockerDiscoverer{
		imageRules: append([]ImageRule(nil), DefaultImageRules...),
		labels:     DefaultLabelConfig,
		logger:     slog.Default(),
		ownClient:  true,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.client == nil {
		c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("failed to create Docker client: %w", err)
		}
		d.client = c
	}

	return d, nil
}

func (d *DockerDiscoverer) Name() string {
	return "docker"
}

// Discover returns an endpoint per running Ingrain container.
func (d *DockerDiscoverer) Discover(ctx context.Context) ([]Endpoint, error) {
	containers, err := d.client.ContainerList(ctx, container.ListOptions{
		All: false, // Only running containers
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var found []Endpoint
	for _, c := range containers {
		if ep, ok := d.containerToEndpoint(c); ok {
			d.logger.Debug("discovered ingrain server", "id", ep.ID,
				"model_server", ep.ModelServerURL, "inference_server", ep.InferenceServerURL)
			found = append(found, ep)
		}
	}

	return found, nil
}

// Watch streams endpoint changes from Docker container events until ctx is
// done or the event stream fails.
func (d *DockerDiscoverer) Watch(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event, 10)

	eventFilter := filters.NewArgs()
	eventFilter.Add("type", "container")
	eventFilter.Add("event", "start")
	eventFilter.Add("event", "stop")
	eventFilter.Add("event", "die")

	dockerEvents, errChan := d.client.Events(ctx, events.ListOptions{
		Filters: eventFilter,
	})

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errChan:
				if err != nil {
					d.logger.Warn("docker event stream failed", "error", err)
				}
				return
			case event := <-dockerEvents:
				d.handleDockerEvent(ctx, event, out)
			}
		}
	}()

	return out, nil
}

func (d *DockerDiscoverer) handleDockerEvent(ctx context.Context, event events.Message, out chan<- Event) {
	var eventType EventType
	switch string(event.Action) {
	case "start":
		eventType = EventAdded
	case "stop", "die":
		eventType = EventRemoved
	default:
		return
	}

	info, err := d.client.ContainerInspect(ctx, event.Actor.ID)
	if err != nil {
		d.logger.Debug("failed to inspect container", "id", event.Actor.ID, "error", err)
		return
	}
	if info.ContainerJSONBase == nil || info.Config == nil {
		return
	}

	c := types.Container{
		ID:     info.ID,
		Names:  []string{info.Name},
		Image:  info.Config.Image,
		Labels: info.Config.Labels,
	}
	if info.NetworkSettings != nil {
		c.Ports = publishedPorts(info.NetworkSettings.Ports)
	}

	ep, ok := d.containerToEndpoint(c)
	if !ok {
		return
	}

	select {
	case out <- Event{Type: eventType, Endpoint: ep}:
	default:
		d.logger.Warn("discovery event dropped", "id", ep.ID, "type", eventType)
	}
}

// publishedPorts converts an inspect port map to the list form returned by
// ContainerList.
func publishedPorts(pm nat.PortMap) []types.Port {
	var ports []types.Port
	for p, bindings := range pm {
		for _, b := range bindings {
			public, err := strconv.Atoi(b.HostPort)
			if err != nil {
				continue
			}
			ports = append(ports, types.Port{
				IP:          b.HostIP,
				PrivatePort: uint16(p.Int()),
				PublicPort:  uint16(public),
				Type:        p.Proto(),
			})
		}
	}
	return ports
}

func (d *DockerDiscoverer) containerToEndpoint(c types.Container) (Endpoint, bool) {
	rule, matched := d.matchImage(c.Image)
	if !matched && !d.enabled(c) {
		return Endpoint{}, false
	}
	if !matched {
		rule = ImageRule{ModelPort: DefaultModelServerPort, InferencePort: DefaultInferenceServerPort}
	}

	return Endpoint{
		ID:                 "ingrain-" + d.containerName(c),
		ModelServerURL:     d.getBaseURL(c, d.labels.ModelURLKey, d.labels.ModelPortKey, rule.ModelPort),
		InferenceServerURL: d.getBaseURL(c, d.labels.InferenceURLKey, d.labels.InferencePortKey, rule.InferencePort),
	}, true
}

func (d *DockerDiscoverer) label(c types.Container, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	v, ok := c.Labels[d.labels.Prefix+key]
	return v, ok
}

func (d *DockerDiscoverer) enabled(c types.Container) bool {
	v, ok := d.label(c, d.labels.EnabledKey)
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(v)
	return err == nil && enabled
}

func (d *DockerDiscoverer) matchImage(image string) (ImageRule, bool) {
	for _, rule := range d.imageRules {
		if matchesPattern(image, rule.Pattern) {
			return rule, true
		}
	}
	return ImageRule{}, false
}

// getBaseURL resolves one server URL. A URL label wins; a port label is used
// as is; otherwise the default container port is mapped to its published
// host port when there is one.
func (d *DockerDiscoverer) getBaseURL(c types.Container, urlKey, portKey string, defaultPort int) string {
	if u, ok := d.label(c, urlKey); ok && u != "" {
		return strings.TrimRight(u, "/")
	}

	host := d.labels.DefaultHost
	if host == "" {
		host = "localhost"
	}

	if v, ok := d.label(c, portKey); ok {
		if p, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("http://%s:%d", host, p)
		}
	}

	port := defaultPort
	for _, p := range c.Ports {
		if int(p.PrivatePort) == defaultPort && p.PublicPort != 0 {
			port = int(p.PublicPort)
			break
		}
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

func (d *DockerDiscoverer) containerName(c types.Container) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// matchesPattern checks if an image name matches a pattern.
// Patterns can use a single * as a wildcard.
func matchesPattern(image, pattern string) bool {
	if pattern == "" {
		return false
	}

	// "owenpelliott/ingrain-server" matches "owenpelliott/ingrain-server:latest"
	if strings.HasPrefix(image, pattern) {
		return true
	}

	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			return strings.HasPrefix(image, parts[0]) && strings.HasSuffix(image, parts[1])
		}
	}

	return false
}

// Close closes the Docker client if owned by this discoverer.
func (d *DockerDiscoverer) Close() error {
	if d.ownClient && d.client != nil {
		return d.client.Close()
	}
	return nil
}

var _ Discoverer = (*DockerDiscoverer)(nil)
