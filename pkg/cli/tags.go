package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/urfave/cli/v3"
)

func tagsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "tags",
		Usage: "List all tags of the user's creations",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			var done cleanup
			defer done.run()

			uc, err := cfg.newQueryUseCase(ctx, &done)
			if err != nil {
				return err
			}

			tags, err := uc.Tags(ctx, cfg.userID)
			if err != nil {
				return goerr.Wrap(err, "failed to list tags")
			}
			for _, tag := range tags {
				fmt.Fprintln(c.Root().Writer, tag)
			}
			return nil
		},
	}
}

func categoriesCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "categories",
		Usage: "List all categories of the user's creations",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			var done cleanup
			defer done.run()

			uc, err := cfg.newQueryUseCase(ctx, &done)
			if err != nil {
				return err
			}

			categories, err := uc.Categories(ctx, cfg.userID)
			if err != nil {
				return goerr.Wrap(err, "failed to list categories")
			}
			for _, category := range categories {
				fmt.Fprintln(c.Root().Writer, category)
			}
			return nil
		},
	}
}

func tagCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "tag",
		Usage:     "Replace the tags of a creation",
		ArgsUsage: "<creation-id> <tag>...",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if c.Args().Len() < 2 {
				return goerr.New("creation id and at least one tag are required")
			}
			id := model.CreationID(c.Args().First())
			tags := c.Args().Tail()

			var done cleanup
			defer done.run()

			uc, err := cfg.newQueryUseCase(ctx, &done)
			if err != nil {
				return err
			}

			record, err := uc.UpdateTags(ctx, id, tags)
			if err != nil {
				return goerr.Wrap(err, "failed to update tags", goerr.V("id", id))
			}

			printRecord(c.Root().Writer, record)
			return nil
		},
	}
}
