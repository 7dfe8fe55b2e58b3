package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kazilsky/Petal/internal/bus"
	"github.com/Kazilsky/Petal/internal/config"
	"github.com/Kazilsky/Petal/internal/gateway"
	"github.com/Kazilsky/Petal/internal/logging"
	"github.com/Kazilsky/Petal/internal/memory"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "petal",
		Short: "Petal conversational agent",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real deployments use the environment.
			_ = godotenv.Load()

			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			return logging.Setup(cfg.Logging.Level)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")

	root.AddCommand(gatewayCmd(), chatCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the agent gateway with all enabled channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := gateway.New(cfg, gateway.Options{})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().Str("component", "main").Str("config", configPath).Msg("starting gateway")
			return gw.Run(ctx)
		},
	}
}

func chatCmd() *cobra.Command {
	var message string
	var username string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send one message and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("message is required, pass it with -m")
			}

			// Platform channels stay off for a one-shot exchange.
			cfg.Channels.Telegram.Enabled = false
			cfg.Channels.HTTP.Enabled = false
			cfg.Thinking.Enabled = false

			gw, err := gateway.New(cfg, gateway.Options{})
			if err != nil {
				return err
			}

			reply, err := gw.RespondSync(cmd.Context(), bus.NewChatMessage(message, username, "cli", "cli"))
			if err != nil {
				return err
			}
			if reply == "" {
				fmt.Println("(no response)")
				return nil
			}
			fmt.Println(reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "message to send")
	cmd.Flags().StringVarP(&username, "username", "u", "cli", "username for the message")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured agent state",
		RunE: func(cmd *cobra.Command, args []string) error {
			mem := memory.NewStore(cfg.Memory.FactsPath, cfg.Memory.TurnWindow)

			fmt.Printf("agent:    %s\n", cfg.Agent.Name)
			fmt.Printf("config:   %s\n", configPath)
			fmt.Printf("model:    %s\n", cfg.Provider.Model)
			fmt.Printf("facts:    %d (%s)\n", mem.FactCount(), cfg.Memory.FactsPath)
			fmt.Printf("thinking: enabled=%v interval=%ds\n", cfg.Thinking.Enabled, cfg.Thinking.IntervalSeconds)
			fmt.Printf("channels: telegram=%v http=%v\n", cfg.Channels.Telegram.Enabled, cfg.Channels.HTTP.Enabled)
			return nil
		},
	}
}
