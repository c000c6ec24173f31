package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stevemurr/ingrain"
	"github.com/stevemurr/ingrain/discovery"
)

func newDiscoverCmd(opts *rootOptions) *cobra.Command {
	var (
		watch  bool
		status bool
		images []string
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find Ingrain servers running in local Docker containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dopts := []discovery.DockerOption{discovery.WithDiscoveryLogger(slog.Default())}
			for _, image := range images {
				dopts = append(dopts, discovery.WithImageRule(discovery.ImageRule{
					Pattern:       image,
					ModelPort:     discovery.DefaultModelServerPort,
					InferencePort: discovery.DefaultInferenceServerPort,
				}))
			}
			d, err := discovery.NewDockerDiscoverer(dopts...)
			if err != nil {
				return err
			}
			defer d.Close()

			endpoints, err := d.Discover(cmd.Context())
			if err != nil {
				return err
			}
			if status {
				reg := discovery.NewRegistry(slog.Default(),
					ingrain.WithLogger(slog.Default()),
					ingrain.WithTimeout(opts.cfg.Client.Timeout),
				)
				for _, ep := range endpoints {
					if err := reg.Register(cmd.Context(), ep); err != nil {
						slog.Warn("skipping ingrain endpoint", "id", ep.ID, "error", err)
					}
				}
				err = printJSON(cmd.OutOrStdout(), reg.Members())
			} else {
				err = printJSON(cmd.OutOrStdout(), endpoints)
			}
			if err != nil {
				return err
			}
			if !watch {
				return nil
			}

			events, err := d.Watch(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for ev := range events {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "check the health and loaded models of each endpoint")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and print container start and stop events")
	cmd.Flags().StringArrayVar(&images, "image", nil, "additional image pattern to treat as an Ingrain server, repeatable")
	return cmd
}
