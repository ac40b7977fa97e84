package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/festy23/patch_integrator/internal/config"
)

const (
	flagReposFile    = "reposfile"
	flagClonePath    = "clonepath"
	flagDBProperties = "dbproperties"
	flagParallelism  = "parallelism"
	flagTimeout      = "timeout"
	flagMetricsAddr  = "metrics-addr"
)

func newRootCommand() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "patchintegrator",
		Short: "Mine cherry-pick conflicts between forks and their upstream",
		Long: "patchintegrator cherry-picks the upstream pull requests each fork is missing,\n" +
			"records the conflicting regions with their line history and runs refactoring\n" +
			"detection over every commit that touched them.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         analyse(v),
	}
	addAnalysisFlags(root.Flags(), v)

	root.AddCommand(newRunCommand(), newServeCommand())
	return root
}

func newRunCommand() *cobra.Command {
	v := viper.New()
	run := &cobra.Command{
		Use:          "run",
		Short:        "Analyse every project of the repository list (default command)",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         analyse(v),
	}
	addAnalysisFlags(run.Flags(), v)
	return run
}

func analyse(v *viper.Viper) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		return runAnalysis(cmd.Context(), resolveConfig(v))
	}
}

// addAnalysisFlags registers the analysis flags on fs and binds them to v.
// Defaults come from the environment, so a flag given on the command line wins
// over the environment which wins over the built-in default.
func addAnalysisFlags(fs *pflag.FlagSet, v *viper.Viper) {
	defaults := config.LoadAnalysisConfigFromEnv()

	fs.StringP(flagReposFile, "r", defaults.ReposFile, "file listing one `source,fork,patch...` line per project")
	fs.StringP(flagClonePath, "c", defaults.ClonePath, "directory holding the project workspaces")
	fs.StringP(flagDBProperties, "d", defaults.DBPropertiesFile, "database properties file")
	fs.IntP(flagParallelism, "p", defaults.Parallelism, "number of projects analysed concurrently")
	fs.Duration(flagTimeout, defaults.RefactoringTimeout, "refactoring detection deadline per commit")
	fs.String(flagMetricsAddr, defaults.MetricsAddr, "serve Prometheus metrics on this address during the run")

	_ = v.BindPFlags(fs)
}

// resolveConfig builds the run configuration from the environment and the
// values bound to v.
func resolveConfig(v *viper.Viper) config.Config {
	cfg := config.LoadFromEnv()
	cfg.Analysis.ReposFile = v.GetString(flagReposFile)
	cfg.Analysis.ClonePath = v.GetString(flagClonePath)
	cfg.Analysis.DBPropertiesFile = v.GetString(flagDBProperties)
	cfg.Analysis.Parallelism = v.GetInt(flagParallelism)
	cfg.Analysis.RefactoringTimeout = v.GetDuration(flagTimeout)
	cfg.Analysis.MetricsAddr = v.GetString(flagMetricsAddr)
	return cfg
}
