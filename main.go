package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/victorstack-ai/codex-agent-harness/config"
	"github.com/victorstack-ai/codex-agent-harness/services/agent_service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "agent-harness",
		Short:        "Supervised tool-execution agent runtime",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func(cmd *cobra.Command) (*runtime, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger := newLogger(cmd.ErrOrStderr(), cfg)
		return newRuntime(cmd.Context(), cfg, logger)
	}

	root.AddCommand(serveCmd(load), runCmd(load), toolsCmd(load))
	return root
}

func serveCmd(load func(*cobra.Command) (*runtime, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load(cmd)
			if err != nil {
				return err
			}
			defer rt.close()
			gin.SetMode(gin.ReleaseMode)
			svc := agent_service.NewService(rt.registry, rt.newAgent, rt.cfg.MaxSteps, rt.logger)
			srv := &http.Server{
				Addr:              rt.cfg.HTTPAddr,
				Handler:           svc.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("http server listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			rt.logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func runCmd(load func(*cobra.Command) (*runtime, error)) *cobra.Command {
	var maxSteps int
	var showHistory bool
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one prompt and print the final transcript entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := load(cmd)
			if err != nil {
				return err
			}
			defer rt.close()
			steps := rt.cfg.MaxSteps
			if cmd.Flags().Changed("max-steps") {
				steps = maxSteps
			}

			agent := rt.newAgent()
			out, err := agent.Run(cmd.Context(), args[0], steps)
			if err != nil {
				return err
			}
			if showHistory {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(agent.State().Messages())
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().IntVarP(&maxSteps, "max-steps", "n", 0, "step budget (defaults to the configured max_steps)")
	cmd.Flags().BoolVar(&showHistory, "history", false, "print the whole transcript as JSON")
	return cmd
}

func toolsCmd(load func(*cobra.Command) (*runtime, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := load(cmd)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rt.registry.List())
		},
	}
}
