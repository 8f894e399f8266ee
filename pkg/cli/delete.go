package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/urfave/cli/v3"
)

func deleteCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a creation from the catalog and the index. Artifacts are kept.",
		ArgsUsage: "<creation-id>",
		Flags:     globalFlags(&cfg),
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

			if err := uc.Delete(ctx, id); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Deleted: %s\n", id)
			return nil
		},
	}
}
