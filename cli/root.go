// Package cli implementa a linha de comando imovelnft: o servidor HTTP, a
// inicialização do registro e os comandos de cliente.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ferreirogomes/imovelnft/config"
)

type rootOptions struct {
	configPath string
	server     string
	keypair    string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand monta a árvore de comandos.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "imovelnft",
		Short:         "Registro de imóveis tokenizados",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.server != "" {
				cfg.Client.Server = opts.server
			}
			if opts.keypair != "" {
				cfg.Client.Keypair = opts.keypair
			}
			opts.cfg = cfg

			level, _ := config.ParseLevel(cfg.LogLevel)
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "arquivo de configuração YAML")
	root.PersistentFlags().StringVar(&opts.server, "server", "", "URL do servidor (padrão: client.server)")
	root.PersistentFlags().StringVar(&opts.keypair, "keypair", "", "arquivo de chave solana usado para assinar (padrão: client.keypair)")

	root.AddCommand(
		newServeCommand(opts),
		newInitCommand(opts),
		newKeygenCommand(),
		newMintCommand(opts),
		newGetCommand(opts),
		newListCommand(opts),
		newCollectionCommand(opts),
		newOwnerCommand(opts),
		newBalanceCommand(opts),
		newTokensCommand(opts),
		newTransferCommand(opts),
		newApproveCommand(opts),
		newBurnCommand(opts),
		newEventsCommand(opts),
	)
	return root
}

// Execute roda a linha de comando e devolve o código de saída.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "erro:", err)
		return 1
	}
	return 0
}
