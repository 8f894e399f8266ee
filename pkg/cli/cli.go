package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/model"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	// .env is optional; flags and the environment take precedence
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "kiln",
		Usage: "Turn prompts into images and 3D models, and search past creations",
		Commands: []*cli.Command{
			generateCommand(),
			studioCommand(),
			listCommand(),
			searchCommand(),
			similarCommand(),
			tagsCommand(),
			categoriesCommand(),
			tagCommand(),
			showCommand(),
			deleteCommand(),
			appsCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

func printRecords(w io.Writer, records []*model.CreationRecord) {
	if len(records) == 0 {
		fmt.Fprintf(w, "No creations found\n")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tCREATED\tSTATUS\tCATEGORY\tPROMPT\n")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Status,
			r.PrimaryCategory,
			shorten(r.Prompt, 60),
		)
	}
	_ = tw.Flush()
}

func printRecord(w io.Writer, r *model.CreationRecord) {
	fmt.Fprintf(w, "ID:        %s\n", r.ID)
	fmt.Fprintf(w, "Status:    %s\n", r.Status)
	fmt.Fprintf(w, "Created:   %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Prompt:    %s\n", r.Prompt)
	if r.ExpandedPrompt != r.Prompt {
		fmt.Fprintf(w, "Expanded:  %s\n", r.ExpandedPrompt)
	}
	fmt.Fprintf(w, "Image:     %s\n", orNone(r.ImagePath))
	fmt.Fprintf(w, "Model:     %s\n", orNone(r.ModelPath))
	fmt.Fprintf(w, "Category:  %s\n", orNone(r.PrimaryCategory))
	fmt.Fprintf(w, "Tags:      %s\n", orNone(strings.Join(r.Tags, ", ")))
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
