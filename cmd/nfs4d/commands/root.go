// Package commands implements the nfs4d CLI, grounded on the teacher's
// cmd/dittofs/commands package: a cobra root command with persistent flags
// bound through viper so every flag can also be set via config file or
// NFS4D_* environment variable.
package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var (
	cfgFile     string
	addr        string
	debug       bool
	logFormat   string
	metricsAddr string
	readOnly    bool
	leaseSecs   int
)

var rootCmd = &cobra.Command{
	Use:   "nfs4d <export-dir>",
	Short: "nfs4d - a standalone NFSv4.0 file server",
	Long: `nfs4d exports a single directory tree over NFSv4.0 (RFC 7530).

It speaks only ONC RPC program 100003 version 4 on a fixed TCP port: no
MOUNT protocol, no NFSv3 fallback, no RPCSEC_GSS. Clients reach the export
root directly via PUTROOTFH.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (keys mirror the flags below)")
	rootCmd.Flags().StringVar(&addr, "addr", "0.0.0.0:2049", "TCP address to listen on")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "lower the log level to debug")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "log output format: text or json")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	rootCmd.Flags().BoolVar(&readOnly, "read-only", false, "reject all mutating operations with NFS4ERR_ROFS")
	rootCmd.Flags().IntVar(&leaseSecs, "lease-seconds", 90, "lease duration advertised via FATTR4_LEASE_TIME")

	_ = viper.BindPFlag("addr", rootCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
	_ = viper.BindPFlag("log_format", rootCmd.Flags().Lookup("log-format"))
	_ = viper.BindPFlag("metrics_addr", rootCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("read_only", rootCmd.Flags().Lookup("read-only"))
	_ = viper.BindPFlag("lease_seconds", rootCmd.Flags().Lookup("lease-seconds"))

	viper.SetEnvPrefix("NFS4D")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the nfs4d version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Println(Version)
		return nil
	},
}

// Execute parses cfgFile (if set via --config) into viper, then runs the
// command tree.
func Execute() error {
	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			_ = viper.ReadInConfig()
		}
	})
	return rootCmd.Execute()
}
