package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/ledger"
	"github.com/ferreirogomes/imovelnft/services"
)

func newInitCommand(opts *rootOptions) *cobra.Command {
	var admin string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Grava o administrador e os metadados da coleção",
		Long: `Init grava o administrador e os metadados da coleção diretamente no
armazenamento configurado. Só funciona uma vez por registro.

Example:
  imovelnft init --admin 7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU -c imovelnft.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if admin == "" {
				admin = opts.cfg.Registry.Admin
			}
			pub, err := auth.ParseIdentity(admin)
			if err != nil {
				return err
			}
			if ephemeralStore(opts.cfg) {
				return fmt.Errorf("store.backend %q não persiste o estado; use badger com store.path, sqlite ou postgres, ou configure registry.admin no serve", opts.cfg.Store.Backend)
			}

			store, err := openStore(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			svc := services.NewRegistryService(store, ledger.New(newAuthorizer(opts.cfg)), services.WithLogger(opts.logger))
			if err := svc.Initialize(cmd.Context(), pub, opts.cfg.CollectionMetadata()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registro inicializado com administrador %s\n", pub)
			return nil
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "identidade do administrador (padrão: registry.admin)")
	return cmd
}
