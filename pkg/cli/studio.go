package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/m-mizutani/kiln/pkg/usecase/creation"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const studioHelp = `Type a prompt to generate. Commands:
  /recent          list recent creations
  /search <words>  keyword search
  /similar <text>  similarity search
  /session         show the current session
  /tags            list tags
  /exit            quit
`

func studioCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, generateFlags(&cfg)...)
	flags = append(flags, appFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "studio",
		Usage: "Interactive session generating from successive prompts",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			var done cleanup
			defer done.run()

			uc, _, err := cfg.newUseCase(ctx, &done)
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "kiln> ",
				HistoryFile:     filepath.Join(cfg.dataDir, "studio_history"),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to start readline")
			}
			defer rl.Close()

			w := rl.Stdout()
			imageApp, modelApp := uc.Apps()
			fmt.Fprintf(w, "image app: %s\nmodel app: %s\n", imageApp, modelApp)
			fmt.Fprint(w, studioHelp)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "/exit" || line == "exit" {
					break
				}

				if err := studioStep(ctx, w, uc, cfg.userID, line); err != nil {
					logging.From(ctx).Error("command failed", "error", err)
				}
			}

			fmt.Fprintf(w, "Studio session closed\n")
			return nil
		},
	}
}

func studioStep(ctx context.Context, w io.Writer, uc *creation.UseCase, userID, line string) error {
	if !strings.HasPrefix(line, "/") {
		res, err := runGenerate(ctx, uc, userID, model.GenerateRequest{Prompt: line}, true)
		if err != nil {
			return err
		}
		printResponse(w, res.Response())
		return nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/recent":
		records, err := uc.Recent(ctx, userID, 10)
		if err != nil {
			return err
		}
		printRecords(w, records)

	case "/search":
		records, err := uc.Search(ctx, userID, arg)
		if err != nil {
			return err
		}
		printRecords(w, records)

	case "/similar":
		results, err := uc.Similar(ctx, userID, arg, 5, nil)
		if err != nil {
			return err
		}
		printSimilar(w, results)

	case "/session":
		session := uc.Session(ctx, userID)
		if session == nil {
			fmt.Fprintf(w, "No session yet\n")
			return nil
		}
		return printJSON(w, session)

	case "/tags":
		tags, err := uc.Tags(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", orNone(strings.Join(tags, ", ")))

	default:
		fmt.Fprint(w, studioHelp)
	}
	return nil
}
