// Command gateway is the single executable for every role of the
// payment gateway. The mode is selected by subcommand (lb, api,
// worker), collapsing the teacher's one-binary-per-role layout
// (cmd/api-gateway, cmd/load-balancer, cmd/payment-orchestrator,
// cmd/summary-service) and matching original_source/src/main.rs's
// `match mode.as_deref()` dispatch.
package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lucas-de-lima/payment-gateway/internal/api"
	"github.com/lucas-de-lima/payment-gateway/internal/config"
	"github.com/lucas-de-lima/payment-gateway/internal/controlplane"
	"github.com/lucas-de-lima/payment-gateway/internal/keys"
	"github.com/lucas-de-lima/payment-gateway/internal/lb"
	"github.com/lucas-de-lima/payment-gateway/internal/logging"
	"github.com/lucas-de-lima/payment-gateway/internal/resolver"
	"github.com/lucas-de-lima/payment-gateway/internal/worker"
)

// controlPlaneKeyTTL bounds how long a resolved control-plane signing
// key is trusted before a re-read of the keys file is forced.
const controlPlaneKeyTTL = 5 * time.Minute

func main() {
	root := &cobra.Command{
		Use:           "gateway",
		Short:         "payment ingestion gateway",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(lbCmd(), apiCmd(), workerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func rootContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}

func lbCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lb",
		Short: "run the load balancer role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logging.New("lb", cfg.LogFormat)
			return lb.New(cfg, log).Run(rootContext())
		},
	}
}

func apiCmd() *cobra.Command {
	var listenAddr, controlPlaneAddr string

	cmd := &cobra.Command{
		Use:   "api",
		Short: "run the API role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logging.New("api", cfg.LogFormat)

			addr := cfg.APIListenAddr
			if listenAddr != "" {
				addr = listenAddr
			}
			if controlPlaneAddr != "" {
				cfg.APIControlPlane = controlPlaneAddr
			}

			return api.New(cfg, addr, log).Run(rootContext())
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "override the configured listen address/socket (for running multiple API instances)")
	cmd.Flags().StringVar(&controlPlaneAddr, "control-plane-addr", "", "override this instance's control-plane listen address (must match the corresponding entry the LB probes)")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "run the worker role",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logging.New("worker", cfg.LogFormat)

			auth, err := loadAuthenticator(cfg, log)
			if err != nil {
				log.Warn().Err(err).Msg("control plane purge authentication disabled")
			}

			return worker.New(cfg, auth, log).Run(rootContext())
		},
	}
}

func loadAuthenticator(cfg config.Config, log zerolog.Logger) (*controlplane.Authenticator, error) {
	store, err := keys.LoadFromFile(cfg.KeysFile)
	if err != nil {
		return nil, err
	}

	r := resolver.New(func(kid string) (ed25519.PublicKey, error) {
		pub, ok := store.PublicKeys[kid]
		if !ok {
			return nil, fmt.Errorf("gateway: unknown control-plane kid %q", kid)
		}
		return pub, nil
	}, controlPlaneKeyTTL)

	return controlplane.NewAuthenticator(r), nil
}
