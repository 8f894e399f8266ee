package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/service/vector"
	"github.com/m-mizutani/kiln/pkg/usecase/creation"
	"github.com/urfave/cli/v3"
)

func similarCommand() *cli.Command {
	var (
		cfg      config
		limit    int64
		category string
		tags     []string
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of similar creations to display",
			Value:       10,
			Sources:     cli.EnvVars("KILN_SIMILAR_LIMIT"),
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "category",
			Usage:       "Restrict to creations whose primary category matches",
			Destination: &category,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Restrict to creations having all the tags",
			Destination: &tags,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "similar",
		Usage:     "Find creations similar to a text using vector similarity",
		ArgsUsage: "<text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return goerr.New("text is required")
			}

			var done cleanup
			defer done.run()

			uc, err := cfg.newQueryUseCase(ctx, &done)
			if err != nil {
				return err
			}

			results, err := uc.Similar(ctx, cfg.userID, query, int(limit), &vector.Filter{
				Category: category,
				Tags:     tags,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to search similar creations")
			}

			printSimilar(c.Root().Writer, results)
			return nil
		},
	}
}

func printSimilar(w io.Writer, results []*creation.SimilarCreation) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No similar creations found\n")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SCORE\tID\tCATEGORY\tPROMPT\n")
	for _, r := range results {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", r.Score, r.Record.ID, r.Record.PrimaryCategory, shorten(r.Record.Prompt, 60))
	}
	_ = tw.Flush()
}
