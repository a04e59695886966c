package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/pdf-rag/internal/app"
)

// NewIngestCommand 创建入库命令
// 不带参数时增量入库，--reset 先删除持久化的向量库
func NewIngestCommand() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load PDFs from the data directory into the vector store",
		Long: `Loads every document in the data directory, splits it into chunks and
adds the chunks that are not yet in the vector store. Chunks already stored
are left untouched, so running ingest repeatedly is safe.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig(cmd, map[string]string{"data.path": "data"})
			if err != nil {
				return err
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if reset {
				fmt.Fprintln(out, "Clearing database")
				if err := a.Ingest.Reset(); err != nil {
					return err
				}
			}

			result, err := a.Ingest.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Loaded %d pages, %d chunks\n", result.Documents, result.Chunks)
			fmt.Fprintf(out, "Number of existing chunks: %d\n", result.Existing)
			if result.Skipped > 0 {
				fmt.Fprintf(out, "Skipped duplicate chunks: %d\n", result.Skipped)
			}
			if result.Added == 0 {
				fmt.Fprintln(out, "No new chunks to add")
			} else {
				fmt.Fprintf(out, "Added new chunks: %d\n", result.Added)
			}
			return nil
		},
	}

	addConfigFlag(cmd)
	cmd.Flags().BoolVar(&reset, "reset", false, "reset the database before ingesting")
	cmd.Flags().String("data", "", "directory containing the input documents")
	return cmd
}
