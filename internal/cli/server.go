package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/config"
	transport "exam-delivery-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var withSeed bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the exam server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, withSeed)
		},
	}
	cmd.Flags().BoolVar(&withSeed, "seed", false, "load demo data before serving")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string, withSeed bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if withSeed || cfg.Storage.Driver == config.DriverMemory {
		if err := seed(ctx, b.repo); err != nil {
			return err
		}
	}

	audit := app.NewAuditSink(b.repo)
	defer audit.Wait()
	router := transport.NewRouter(transport.Services{
		Exam:     app.NewExamService(b.repo, b.sessions),
		Admin:    app.NewAdminService(b.repo, audit),
		Accounts: app.NewAccountService(b.repo),
	}, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
