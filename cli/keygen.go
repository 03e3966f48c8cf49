package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
)

func newKeygenCommand() *cobra.Command {
	var out string
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Gera um par de chaves solana para assinar requisições",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := solana.NewRandomPrivateKey()
			if err != nil {
				return fmt.Errorf("falha ao gerar chave: %w", err)
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey())
				fmt.Fprintln(cmd.OutOrStdout(), key)
				return nil
			}
			if err := writeKeygenFile(out, key, force); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key.PublicKey())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "outfile", "o", "", "grava a chave no formato do solana-keygen")
	cmd.Flags().BoolVar(&force, "force", false, "sobrescreve o arquivo existente")
	return cmd
}

// writeKeygenFile grava a chave como um array JSON de bytes, o mesmo formato
// lido por solana.PrivateKeyFromSolanaKeygenFile.
func writeKeygenFile(path string, key solana.PrivateKey, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return fmt.Errorf("falha ao criar arquivo de chave: %w", err)
	}
	defer f.Close()

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	if err := json.NewEncoder(f).Encode(ints); err != nil {
		return fmt.Errorf("falha ao gravar chave: %w", err)
	}
	return nil
}

func loadKeypair(path string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler chave %s: %w", path, err)
	}
	return key, nil
}
