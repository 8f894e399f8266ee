package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg    config
		limit  int64
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of creations to list (0 for all)",
			Value:       20,
			Sources:     cli.EnvVars("KILN_LIST_LIMIT"),
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print creations as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List recent creations, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			var done cleanup
			defer done.run()

			uc, err := cfg.newQueryUseCase(ctx, &done)
			if err != nil {
				return err
			}

			records, err := uc.Recent(ctx, cfg.userID, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list creations")
			}

			if asJSON {
				return printJSON(c.Root().Writer, records)
			}
			printRecords(c.Root().Writer, records)
			return nil
		},
	}
}
