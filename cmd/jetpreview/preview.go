package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type previewResult struct {
	URL         string  `json:"url"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	Error       string  `json:"error,omitempty"`
}

func newPreviewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <url>...",
		Short: "Print the preview of each URL as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.log, false)
			if err != nil {
				return fmt.Errorf("initialize components: %w", err)
			}
			defer a.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, u := range args {
				res := previewResult{URL: u}
				md, err := a.previews.Lookup(cmd.Context(), u)
				if err != nil {
					res.Error = err.Error()
					failed++
				} else {
					res.Title, res.Description, res.ImageURL = md.Title, md.Description, md.ImageURL
				}
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d previews failed", failed, len(args))
			}
			return nil
		},
	}
}
