package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/pdf-rag/internal/app"
)

// ErrMismatch 回答与期望不一致
var ErrMismatch = errors.New("response does not match the expected response")

// NewQueryCommand 创建问答命令
func NewQueryCommand() *cobra.Command {
	var (
		expected string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:          "query [question]",
		Short:        "Answer a question using the ingested documents",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			question := strings.Join(args, " ")

			cfg, err := loadConfig(cmd, map[string]string{"search.limit": "limit"})
			if err != nil {
				return err
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if expected == "" {
				answer, err := a.QA.Answer(cmd.Context(), question)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, answer)
				}
				fmt.Fprintf(out, "Response: %s\n", answer.Text)
				fmt.Fprintf(out, "Sources: %s\n", strings.Join(answer.Sources, ", "))
				return nil
			}

			eval, err := a.QA.Evaluate(cmd.Context(), question, expected)
			if err != nil {
				return err
			}
			if asJSON {
				if err := printJSON(cmd, eval); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Response: %s\n", eval.Answer.Text)
				fmt.Fprintf(out, "Sources: %s\n", strings.Join(eval.Answer.Sources, ", "))
				fmt.Fprintf(out, "Expected: %s\n", eval.Expected)
				fmt.Fprintf(out, "Verdict: %s\n", eval.Verdict)
			}
			if !eval.Passed {
				return ErrMismatch
			}
			return nil
		},
	}

	addConfigFlag(cmd)
	cmd.Flags().StringVar(&expected, "expect", "", "expected answer; exit non-zero when the response does not match")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().Int("limit", 0, "number of chunks to retrieve")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
