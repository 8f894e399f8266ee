package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the creation as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a creation",
		ArgsUsage: "<creation-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if c.Args().Len() != 1 {
				return goerr.New("creation id is required")
			}
			id := model.CreationID(c.Args().First())

			var done cleanup
			defer done.run()

			uc, err := cfg.newQueryUseCase(ctx, &done)
			if err != nil {
				return err
			}

			record, err := uc.Show(ctx, id)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(c.Root().Writer, record)
			}
			printRecord(c.Root().Writer, record)
			return nil
		},
	}
}
