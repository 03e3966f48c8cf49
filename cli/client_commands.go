package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/client"
	"github.com/ferreirogomes/imovelnft/models"
)

// newClient cria o cliente HTTP, assinando com client.keypair quando configurado.
func (o *rootOptions) newClient() (*client.Client, error) {
	var clientOpts []client.Option
	if o.cfg.Client.Keypair != "" {
		key, err := loadKeypair(o.cfg.Client.Keypair)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, client.WithKey(key))
	}
	return client.New(o.cfg.Client.Server, clientOpts...), nil
}

// signer retorna a identidade do keypair configurado ou falha.
func signer(c *client.Client) (solana.PublicKey, error) {
	pub, ok := c.Signer()
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("%w: informe --keypair", models.ErrUnauthorized)
	}
	return pub, nil
}

func printJSON(w io.Writer, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("falha ao serializar saída: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func parseTokenID(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: id de token inválido %q", models.ErrInvalidInput, s)
	}
	return uint32(n), nil
}

// identityOr interpreta s como identidade; vazio cai no signatário.
func identityOr(s string, c *client.Client) (solana.PublicKey, error) {
	if s == "" {
		return signer(c)
	}
	return auth.ParseIdentity(s)
}

func newMintCommand(opts *rootOptions) *cobra.Command {
	var to, location, document string
	var price uint32
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Tokeniza um imóvel",
		Long: `Mint emite um novo token e grava o imóvel vinculado a ele. O
destinatário precisa ser o signatário da requisição.

Example:
  imovelnft mint --keypair alice.json --location Mumbai --price 1000 --document Doc1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			recipient, err := identityOr(to, c)
			if err != nil {
				return err
			}
			id, err := c.MintProperty(cmd.Context(), recipient, location, price, document)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destinatário (padrão: o signatário)")
	cmd.Flags().StringVar(&location, "location", "", "localização do imóvel")
	cmd.Flags().Uint32Var(&price, "price", 0, "preço do imóvel")
	cmd.Flags().StringVar(&document, "document", "", "referência do documento")
	return cmd
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Mostra o imóvel de um token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			prop, err := c.GetProperty(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), prop)
		},
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var owner, location string
	var minPrice, maxPrice uint32
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lista imóveis, mais recentes primeiro",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			filter := models.PropertyFilter{Location: location, Page: page, Limit: limit}
			if owner != "" {
				if filter.Owner, err = auth.ParseIdentity(owner); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("min-price") {
				filter.MinPrice = &minPrice
			}
			if cmd.Flags().Changed("max-price") {
				filter.MaxPrice = &maxPrice
			}

			props, pagination, err := c.ListProperties(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"data":       props,
				"pagination": pagination,
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "filtra pelo dono gravado no mint")
	cmd.Flags().StringVar(&location, "location", "", "filtra por trecho da localização")
	cmd.Flags().Uint32Var(&minPrice, "min-price", 0, "preço mínimo")
	cmd.Flags().Uint32Var(&maxPrice, "max-price", 0, "preço máximo")
	cmd.Flags().IntVar(&page, "page", 1, "página")
	cmd.Flags().IntVar(&limit, "limit", models.DefaultPageLimit, "itens por página")
	return cmd
}

func newCollectionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collection",
		Short: "Mostra os metadados da coleção",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			info, err := c.Collection(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}
}

func newOwnerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "owner <id>",
		Short: "Mostra o dono atual de um token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			owner, err := c.OwnerOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), owner)
			return nil
		},
	}
}

func newBalanceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Mostra quantos tokens uma identidade possui",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			var address string
			if len(args) == 1 {
				address = args[0]
			}
			owner, err := identityOr(address, c)
			if err != nil {
				return err
			}
			balance, err := c.Balance(cmd.Context(), owner)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), balance)
			return nil
		},
	}
}

func newTokensCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [address]",
		Short: "Lista os tokens que uma identidade possui",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			var address string
			if len(args) == 1 {
				address = args[0]
			}
			owner, err := identityOr(address, c)
			if err != nil {
				return err
			}
			tokens, err := c.TokensOf(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tokens)
		},
	}
}

func newTransferCommand(opts *rootOptions) *cobra.Command {
	var from string
	var asSpender bool
	cmd := &cobra.Command{
		Use:   "transfer <id> <to>",
		Short: "Transfere um token",
		Long: `Transfer move o token para outra identidade. Com --spender o signatário
age como aprovado em nome de --from.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			to, err := auth.ParseIdentity(args[1])
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			me, err := signer(c)
			if err != nil {
				return err
			}
			owner, err := identityOr(from, c)
			if err != nil {
				return err
			}
			if asSpender {
				return c.TransferFrom(cmd.Context(), me, owner, to, id)
			}
			return c.Transfer(cmd.Context(), owner, to, id)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "dono atual (padrão: o signatário)")
	cmd.Flags().BoolVar(&asSpender, "spender", false, "assina como aprovado do token")
	return cmd
}

func newApproveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id> <spender>",
		Short: "Autoriza outra identidade a mover ou queimar o token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			spender, err := auth.ParseIdentity(args[1])
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			me, err := signer(c)
			if err != nil {
				return err
			}
			return c.Approve(cmd.Context(), me, spender, id)
		},
	}
}

func newBurnCommand(opts *rootOptions) *cobra.Command {
	var from string
	var asSpender bool
	cmd := &cobra.Command{
		Use:   "burn <id>",
		Short: "Queima o token e apaga o imóvel vinculado",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			me, err := signer(c)
			if err != nil {
				return err
			}
			owner, err := identityOr(from, c)
			if err != nil {
				return err
			}
			if asSpender {
				return c.BurnFrom(cmd.Context(), me, owner, id)
			}
			return c.Burn(cmd.Context(), owner, id)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "dono atual (padrão: o signatário)")
	cmd.Flags().BoolVar(&asSpender, "spender", false, "assina como aprovado do token")
	return cmd
}

func newEventsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events <id>",
		Short: "Mostra o histórico de um token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenID(args[0])
			if err != nil {
				return err
			}
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			events, err := c.Events(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), events)
		},
	}
}
