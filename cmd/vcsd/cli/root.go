// Package cli builds the cobra root command for the reference vcsd
// binary, grounded on the teacher's cmd/rpcdaemon/cli.RootCommand()
// split between flag/config wiring (this package) and the RPC method
// table (commands).
package cli

import (
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/biscuitwizard/vcscore/repo"
)

// RootCommand returns the bare vcsd command plus the config struct its
// persistent flags are bound to. PersistentPreRunE is set here to fill
// the config from --config or the flags; the caller attaches
// subcommands before executing.
func RootCommand() (*cobra.Command, *repo.Config) {
	cfg := &repo.Config{
		StoragePath:     "vcscore.db",
		FlushInterval:   2 * time.Second,
		FlushLimitBytes: 4 * datasize.MB,
	}

	cmd := &cobra.Command{
		Use:   "vcsd",
		Short: "reference frontend for the object version-control core",
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.StoragePath, "datadir", cfg.StoragePath, "path to the embedded database file")
	flags.DurationVar(&cfg.FlushInterval, "flush.interval", cfg.FlushInterval, "quiescent-period flush interval")
	var flushLimitMB uint64 = uint64(cfg.FlushLimitBytes / datasize.MB)
	flags.Uint64Var(&flushLimitMB, "flush.limit-mb", flushLimitMB, "flush threshold in megabytes")
	flags.StringVar(&cfg.Mirror.URL, "mirror.url", "", "upstream mirror submission endpoint")
	flags.StringVar(&cfg.Mirror.CredentialsRef, "mirror.credentials-ref", "", "credential reference forwarded to the mirror")
	flags.DurationVar(&cfg.Mirror.Timeout, "mirror.timeout", 30*time.Second, "mirror submission timeout")
	configFile := flags.String("config", "", "optional config file (TOML/YAML/JSON) overriding the flags above")

	v := viper.New()
	v.SetEnvPrefix("vcsd")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if *configFile != "" {
			loaded, err := repo.LoadConfig(*configFile)
			if err != nil {
				return err
			}
			*cfg = loaded
			return nil
		}
		// No --config file: flags (already bound into cfg by
		// StringVar/DurationVar above) take precedence, falling back to
		// VCSD_-prefixed environment variables for anything left at its
		// flag default.
		cfg.StoragePath = v.GetString("datadir")
		cfg.FlushInterval = v.GetDuration("flush.interval")
		flushLimitMB = v.GetUint64("flush.limit-mb")
		cfg.FlushLimitBytes = datasize.ByteSize(flushLimitMB) * datasize.MB
		cfg.Mirror.URL = v.GetString("mirror.url")
		cfg.Mirror.CredentialsRef = v.GetString("mirror.credentials-ref")
		cfg.Mirror.Timeout = v.GetDuration("mirror.timeout")
		return nil
	}

	return cmd, cfg
}
