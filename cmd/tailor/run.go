package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tailor"
)

func newRunCmd() *cobra.Command {
	var (
		req     tailor.Request
		preview bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tailor context for one task and print it",
		Example: `  tailor run --project p1 --task "Implement JWT authentication in Go" --budget 3000
  tailor run --project p1 --task "Add rate limiting" --preview`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if preview {
				resp, err := a.service.Preview(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(out, resp)
			}
			resp, err := a.service.Tailor(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, resp)
			}
			_, err = fmt.Fprintln(out, resp.Context)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Task, "task", "", "Task description")
	f.StringVar(&req.ProjectID, "project", "", "Project to retrieve from")
	f.StringVar(&req.UserID, "user", "", "Requesting user")
	f.IntVar(&req.TokenBudget, "budget", 0, "Token budget (0 uses the estimated budget)")
	f.IntVar(&req.MaxChunks, "max-chunks", 0, "Cap on included chunks (0 uses the configured cap)")
	f.BoolVar(&req.IncludeWebSearch, "web", false, "Fill gaps from web search")
	f.BoolVar(&preview, "preview", false, "Estimate the result without model calls")
	f.BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
