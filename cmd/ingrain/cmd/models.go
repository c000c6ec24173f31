package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevemurr/ingrain/types"
)

func newHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the health of both servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			model, err := c.ModelServerHealth(cmd.Context())
			if err != nil {
				return err
			}
			inference, err := c.InferenceServerHealth(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]*types.HealthResponse{
				"modelServer":     model,
				"inferenceServer": inference,
			})
		},
	}
}

func newModelsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models known to the model server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "loaded",
			Short: "List loaded models",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.client()
				if err != nil {
					return err
				}
				resp, err := c.LoadedModels(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			},
		},
		&cobra.Command{
			Use:   "repository",
			Short: "List models in the repository and their state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.client()
				if err != nil {
					return err
				}
				resp, err := c.RepositoryModels(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			},
		},
	)
	return cmd
}

func newLoadCmd(opts *rootOptions) *cobra.Command {
	var library string

	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Load a model onto the model server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := types.ParseModelLibrary(library)
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.LoadModel(cmd.Context(), args[0], lib)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&library, "library", "", fmt.Sprintf("model library, one of %v", types.ModelLibraries))
	_ = cmd.MarkFlagRequired("library")
	return cmd
}

func newUnloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unload NAME",
		Short: "Unload a model from the model server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.UnloadModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a model from the model repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.DeleteModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newLabelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "labels NAME",
		Short: "Print the classification labels of a loaded model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.ModelClassificationLabels(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newDimsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dims NAME",
		Short: "Print the embedding size of a loaded model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.ModelEmbeddingSize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newMetricsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print inference server model statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.Metrics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}
