package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/fyerfyer/pdf-rag/api"
	"github.com/fyerfyer/pdf-rag/api/handler"
	"github.com/fyerfyer/pdf-rag/internal/app"
)

// shutdownTimeout 优雅关闭的最长等待时间
const shutdownTimeout = 10 * time.Second

// NewServerCommand 创建HTTP服务命令
func NewServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve the question answering HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"server.port": "port",
				"server.host": "host",
			})
			if err != nil {
				return err
			}

			gin.SetMode(cfg.Server.Mode)

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			router := api.SetupRouter(a.Logger, api.Handlers{
				QA:       handler.NewQAHandler(a.QA, a.Logger),
				Ingest:   handler.NewIngestHandler(a.Ingest, a.Logger),
				Document: handler.NewDocumentHandler(a.Storage, cfg.Data.Extensions, a.Logger),
			})

			srv := &http.Server{
				Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				Handler:      router,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.Logger.WithField("addr", srv.Addr).Info("Server started")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.Logger.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			a.Logger.Info("Server exited")
			return nil
		},
	}

	addConfigFlag(cmd)
	cmd.Flags().Int("port", 0, "port to listen on")
	cmd.Flags().String("host", "", "host to bind")
	return cmd
}
