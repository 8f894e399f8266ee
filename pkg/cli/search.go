package cli

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg      config
		tags     []string
		category string
		asJSON   bool
	)

	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Find creations having any of the tags",
			Destination: &tags,
		},
		&cli.StringFlag{
			Name:        "category",
			Usage:       "Find creations in the category",
			Destination: &category,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print creations as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search creations by keywords, tags or category",
		ArgsUsage: "[keywords]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			query := strings.Join(c.Args().Slice(), " ")

			var done cleanup
			defer done.run()

			uc, err := cfg.newQueryUseCase(ctx, &done)
			if err != nil {
				return err
			}

			var records []*model.CreationRecord
			switch {
			case len(tags) > 0:
				records, err = uc.SearchByTags(ctx, cfg.userID, tags)
			case category != "":
				records, err = uc.SearchByCategory(ctx, cfg.userID, category)
			case query != "":
				records, err = uc.Search(ctx, cfg.userID, query)
			default:
				return goerr.New("keywords, --tag or --category is required")
			}
			if err != nil {
				return goerr.Wrap(err, "failed to search creations")
			}

			if asJSON {
				return printJSON(c.Root().Writer, records)
			}
			printRecords(c.Root().Writer, records)
			return nil
		},
	}
}
