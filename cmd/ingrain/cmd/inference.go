package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stevemurr/ingrain/types"
)

type embedFlags struct {
	normalize bool
	dims      int
}

func (f *embedFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.normalize, "normalize", true, "normalize the embeddings")
	cmd.Flags().IntVar(&f.dims, "dims", 0, "truncate embeddings to the first N dimensions")
}

// apply returns the request options, leaving unset flags to the server.
func (f *embedFlags) apply(cmd *cobra.Command) (normalize *bool, dims *int) {
	if cmd.Flags().Changed("normalize") {
		normalize = &f.normalize
	}
	if cmd.Flags().Changed("dims") {
		dims = &f.dims
	}
	return normalize, dims
}

func newEmbedCmd(opts *rootOptions) *cobra.Command {
	var (
		flags  embedFlags
		texts  []string
		images []string
	)

	cmd := &cobra.Command{
		Use:   "embed NAME",
		Short: "Embed text and images with one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imgs, err := imageInputs(images)
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			req := &types.EmbeddingRequest{Name: args[0], Text: texts, Image: imgs}
			req.Normalize, req.NDims = flags.apply(cmd)

			resp, err := c.Embed(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringArrayVar(&texts, "text", nil, "text to embed, repeatable")
	cmd.Flags().StringArrayVar(&images, "image", nil, "image file, URL or data URI to embed, repeatable")
	flags.register(cmd)
	return cmd
}

func newEmbedTextCmd(opts *rootOptions) *cobra.Command {
	var flags embedFlags

	cmd := &cobra.Command{
		Use:   "embed-text NAME TEXT...",
		Short: "Embed text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			req := &types.TextEmbeddingRequest{Name: args[0], Text: args[1:]}
			req.Normalize, req.NDims = flags.apply(cmd)

			resp, err := c.EmbedText(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags.register(cmd)
	return cmd
}

func newEmbedImageCmd(opts *rootOptions) *cobra.Command {
	var flags embedFlags

	cmd := &cobra.Command{
		Use:   "embed-image NAME IMAGE...",
		Short: "Embed images given as files, URLs or data URIs",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imgs, err := imageInputs(args[1:])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			req := &types.ImageEmbeddingRequest{Name: args[0], Image: imgs}
			req.Normalize, req.NDims = flags.apply(cmd)

			resp, err := c.EmbedImage(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	flags.register(cmd)
	return cmd
}

type labelScore struct {
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "classify NAME IMAGE...",
		Short: "Classify images with a classifier model",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imgs, err := imageInputs(args[1:])
			if err != nil {
				return err
			}
			c, err := opts.client()
			if err != nil {
				return err
			}
			resp, err := c.ClassifyImage(cmd.Context(), &types.ImageClassificationRequest{Name: args[0], Image: imgs})
			if err != nil {
				return err
			}
			if top <= 0 {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			labels, err := c.ModelClassificationLabels(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ranked := make([][]labelScore, 0, len(resp.Probabilities))
			for _, probs := range resp.Probabilities {
				scores, err := topLabels(labels.Labels, probs, top)
				if err != nil {
					return err
				}
				ranked = append(ranked, scores)
			}
			return printJSON(cmd.OutOrStdout(), ranked)
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "print the N most likely labels per image instead of raw probabilities")
	return cmd
}

func topLabels(labels []string, probs []float32, n int) ([]labelScore, error) {
	if len(labels) != len(probs) {
		return nil, fmt.Errorf("model has %d labels but returned %d probabilities", len(labels), len(probs))
	}
	scores := make([]labelScore, len(probs))
	for i, p := range probs {
		scores[i] = labelScore{Label: labels[i], Probability: p}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Probability > scores[j].Probability
	})
	if n < len(scores) {
		scores = scores[:n]
	}
	return scores, nil
}
