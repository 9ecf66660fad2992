package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/toolshim/internal/config"
	"github.com/psantana5/toolshim/pkg/auth"
	tlsutil "github.com/psantana5/toolshim/pkg/tls"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		if used := v.ConfigFileUsed(); used != "" {
			fmt.Printf("# from %s\n", used)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.ExampleConfig)
	},
}

var configGenKeyCmd = &cobra.Command{
	Use:   "gen-key",
	Short: "Generate an API key for serve",
	Long: `Prints a new API key and its bcrypt hash. Put the hash in
serve.api_key_hashes; give the key to clients (Authorization: Bearer <key>).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, hash, err := auth.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Printf("key:  %s\nhash: %s\n", key, hash)
		return nil
	},
}

var (
	genCertFile  string
	genKeyFile   string
	genCertHosts []string
)

var configGenCertCmd = &cobra.Command{
	Use:   "gen-cert",
	Short: "Generate a self-signed certificate for serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := tlsutil.GenerateSelfSignedCert(genCertFile, genKeyFile, "toolshim", genCertHosts...); err != nil {
			return err
		}
		fmt.Printf("serve:\n  tls:\n    cert: %s\n    key: %s\n", genCertFile, genKeyFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configExampleCmd)
	configCmd.AddCommand(configGenKeyCmd)
	configCmd.AddCommand(configGenCertCmd)

	configGenCertCmd.Flags().StringVar(&genCertFile, "cert", "toolshim-cert.pem", "certificate output file")
	configGenCertCmd.Flags().StringVar(&genKeyFile, "key", "toolshim-key.pem", "private key output file")
	configGenCertCmd.Flags().StringSliceVar(&genCertHosts, "host", nil, "extra IP address or DNS name (repeatable)")
}
