package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/usecase/creation"
	"github.com/urfave/cli/v3"
)

func generateCommand() *cli.Command {
	var (
		cfg         config
		prompt      string
		attachments []string
		asJSON      bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"m"},
			Usage:       "Prompt to generate from (or pass it as arguments)",
			Sources:     cli.EnvVars("KILN_PROMPT"),
			Destination: &prompt,
		},
		&cli.StringSliceFlag{
			Name:        "attachment",
			Aliases:     []string{"a"},
			Usage:       "Attachment reference recorded with the request",
			Destination: &attachments,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the response as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, generateFlags(&cfg)...)
	flags = append(flags, appFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate an image and a 3D model from a prompt",
		ArgsUsage: "[prompt]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if prompt == "" {
				prompt = strings.Join(c.Args().Slice(), " ")
			}

			var done cleanup
			defer done.run()

			uc, _, err := cfg.newUseCase(ctx, &done)
			if err != nil {
				return err
			}

			res, err := runGenerate(ctx, uc, cfg.userID, model.GenerateRequest{
				Prompt:      prompt,
				Attachments: attachments,
			}, !asJSON)
			if err != nil {
				return err
			}

			resp := res.Response()
			if asJSON {
				if err := printJSON(c.Root().Writer, resp); err != nil {
					return err
				}
			} else {
				printResponse(c.Root().Writer, resp)
			}

			if resp.Status != model.ResponseStatusSuccess {
				return goerr.New(resp.Message)
			}
			return nil
		},
	}
}

// runGenerate runs the pipeline, showing a spinner on stderr when requested
func runGenerate(ctx context.Context, uc *creation.UseCase, userID string, req model.GenerateRequest, progress bool) (*creation.Result, error) {
	if progress {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " generating..."
		s.Start()
		defer s.Stop()
	}

	res, err := uc.Generate(ctx, userID, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate")
	}
	return res, nil
}

func printResponse(w io.Writer, resp *model.Response) {
	fmt.Fprintf(w, "%s: %s\n", resp.Status, resp.Message)
	d := resp.Details
	if d.CreationID != "" {
		fmt.Fprintf(w, "  creation:  %s\n", d.CreationID)
	}
	fmt.Fprintf(w, "  prompt:    %s\n", d.Prompt)
	if d.ExpandedPrompt != d.Prompt {
		fmt.Fprintf(w, "  expanded:  %s\n", d.ExpandedPrompt)
	}
	fmt.Fprintf(w, "  image:     %s\n", orNone(d.ImagePath))
	fmt.Fprintf(w, "  model:     %s\n", orNone(d.ModelPath))
	fmt.Fprintf(w, "  time:      %s\n", d.ProcessingTime)
	for _, warning := range d.Warnings {
		fmt.Fprintf(w, "  warning:   [%s] %s\n", warning.Stage, warning.Message)
	}
}
