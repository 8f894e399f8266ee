package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func appsCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print descriptors as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, appFlags(&cfg)...)

	return &cli.Command{
		Name:      "apps",
		Usage:     "Resolve remote apps and show their manifests and schemas",
		ArgsUsage: "[app-id]...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			var done cleanup
			defer done.run()

			registry, err := cfg.newRegistry(ctx, &done)
			if err != nil {
				return err
			}

			appIDs := c.Args().Slice()
			if len(appIDs) == 0 {
				appIDs = []string{cfg.imageApp, cfg.modelApp}
			}

			var failed int
			for _, appID := range appIDs {
				if _, err := registry.Resolve(ctx, appID); err != nil {
					logging.From(ctx).Error("failed to resolve app", "app_id", appID, "error", err)
					failed++
				}
			}

			descriptors := registry.Descriptors()
			if asJSON {
				if err := printJSON(c.Root().Writer, descriptors); err != nil {
					return err
				}
			} else {
				for _, desc := range descriptors {
					printDescriptor(c.Root().Writer, desc)
				}
			}

			if failed > 0 {
				return goerr.New("some apps could not be resolved", goerr.V("failed", failed), goerr.V("total", len(appIDs)))
			}
			return nil
		},
	}
}

func printDescriptor(w io.Writer, desc *model.CapabilityDescriptor) {
	fmt.Fprintf(w, "%s\n", desc.AppID)
	fmt.Fprintf(w, "  name:      %s %s\n", desc.Manifest.Name, desc.Manifest.Version)
	if desc.Manifest.Description != "" {
		fmt.Fprintf(w, "  about:     %s\n", desc.Manifest.Description)
	}
	fmt.Fprintf(w, "  endpoint:  %s\n", desc.Endpoint)
	fmt.Fprintf(w, "  input:     %s\n", schemaFields(desc, true))
	fmt.Fprintf(w, "  output:    %s\n", schemaFields(desc, false))
	if resources := desc.ResourceFields(); len(resources) > 0 {
		fmt.Fprintf(w, "  resources: %s\n", strings.Join(resources, ", "))
	}
}

func schemaFields(desc *model.CapabilityDescriptor, input bool) string {
	schema := desc.Output
	if input {
		schema = desc.Input
	}
	if schema == nil || len(schema.Properties) == 0 {
		return "-"
	}

	fields := make([]string, 0, len(schema.Properties))
	for name, prop := range schema.Properties {
		typ := "any"
		if prop != nil && prop.Type != "" {
			typ = prop.Type
		}
		fields = append(fields, name+":"+typ)
	}
	slices.Sort(fields)
	return strings.Join(fields, ", ")
}
