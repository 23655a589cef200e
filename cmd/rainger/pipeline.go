package main

import (
	"github.com/spf13/cobra"

	"github.com/m25mathews/rainger-poc/internal/scope"
)

// reportErr logs a scope run and turns failures into the command's error.
func reportErr(a *app, step string, report *scope.Report, err error) error {
	if err != nil {
		return err
	}
	a.logger.Info(step+" finished", "scopes", report.Total, "processed", report.Processed, "failed", len(report.Failures))
	return report.Err()
}

// createInitializeCmd prepares sales-order and sold-to runs.
func createInitializeCmd() *cobra.Command {
	var incremental bool
	cmd := &cobra.Command{
		Use:   "initialize",
		Short: "Plan sales-order and sold-to scopes",
		Long: `Clears staging tables, resets locations on full runs and writes the
sales-order and sold-to scope files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				for _, kind := range []scope.Kind{scope.KindSalesOrder, scope.KindSoldTo} {
					files, err := a.workflows.Initialize(cmd.Context(), kind, incremental)
					if err != nil {
						return err
					}
					a.logger.Info("initialized", "kind", kind, "files", len(files), "incremental", incremental)
				}
				return nil
			})
		},
	}
	addGroupFlags(cmd)
	cmd.Flags().BoolVar(&incremental, "incremental", false, "only records without a location")
	return cmd
}

func createInitializeKindCmd(use string, kind scope.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "Plan " + string(kind) + " scopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				files, err := a.workflows.Initialize(cmd.Context(), kind, false)
				if err != nil {
					return err
				}
				a.logger.Info("initialized", "kind", kind, "files", len(files))
				return nil
			})
		},
	}
	addGroupFlags(cmd)
	return cmd
}

// addGroupFlags lets process counts be set per run; flags override the
// config file.
func addGroupFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("n-parallel-small", 0, "processes for the small group")
	f.Int("n-parallel-medium", 0, "processes for the medium group")
	f.Int("n-parallel-large", 0, "processes for the large group")
	f.Int("n-parallel-huge", 0, "processes for the huge group")
	f.Int("n-parallel-soldto", 0, "processes for sold-to scopes")
	f.Int("n-parallel", 0, "processes for keepstock scopes")
	f.Int("max-scopes", 0, "keep only the largest keys of each group")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		g := &cfg.Scopes.Groups
		targets := map[string]*int{
			"n-parallel-small":  &g.ParallelSmall,
			"n-parallel-medium": &g.ParallelMedium,
			"n-parallel-large":  &g.ParallelLarge,
			"n-parallel-huge":   &g.ParallelHuge,
			"n-parallel-soldto": &g.ParallelSoldTo,
			"n-parallel":        &g.Parallel,
			"max-scopes":        &g.MaxScopes,
		}
		for name, target := range targets {
			if !cmd.Flags().Changed(name) {
				continue
			}
			v, err := cmd.Flags().GetInt(name)
			if err != nil {
				return err
			}
			*target = v
		}
		return nil
	}
}

// scopeFlags are the group and process id of a scope file.
type scopeFlags struct {
	group string
	pid   int
}

func (s *scopeFlags) register(cmd *cobra.Command, withGroup bool) {
	if withGroup {
		cmd.Flags().StringVar(&s.group, "group", "", "size group")
		cmd.MarkFlagRequired("group")
	}
	cmd.Flags().IntVar(&s.pid, "pid", 0, "process id within the group")
}

func createGenerateCmd() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Canonicalize sales-order records into locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.workflows.Generate(cmd.Context(), sf.group, sf.pid)
				return reportErr(a, "generate", report, err)
			})
		},
	}
	sf.register(cmd, true)
	return cmd
}

func createGenerateSoldToCmd() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "generate-soldto",
		Short: "Canonicalize sold-to records into locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.workflows.GenerateSoldTo(cmd.Context(), sf.pid)
				return reportErr(a, "generate-soldto", report, err)
			})
		},
	}
	sf.register(cmd, false)
	return cmd
}

func createClusterCmd() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group nearby sales-order locations into sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.workflows.Cluster(cmd.Context(), sf.group, sf.pid)
				return reportErr(a, "cluster", report, err)
			})
		},
	}
	sf.register(cmd, true)
	return cmd
}

func createAssociateCmd() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "associate",
		Short: "Resolve sales-order records to locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.workflows.Associate(cmd.Context(), sf.group, sf.pid)
				return reportErr(a, "associate", report, err)
			})
		},
	}
	sf.register(cmd, true)
	return cmd
}

func createAssociateSoldToCmd() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "associate-soldto",
		Short: "Resolve sold-to records to sold-to locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.workflows.AssociateSoldTo(cmd.Context(), sf.pid)
				return reportErr(a, "associate-soldto", report, err)
			})
		},
	}
	sf.register(cmd, false)
	return cmd
}

func createAssociateFirmographicCmd() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "associate-firmographic",
		Short: "Find the firmographic record of each location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.workflows.AssociateFirmographic(cmd.Context(), sf.group, sf.pid)
				return reportErr(a, "associate-firmographic", report, err)
			})
		},
	}
	sf.register(cmd, true)
	return cmd
}

func createAssociateKeepstockCmd() *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "associate-keepstock",
		Short: "Resolve keepstock records to locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.workflows.AssociateKeepstock(cmd.Context(), sf.pid)
				return reportErr(a, "associate-keepstock", report, err)
			})
		},
	}
	sf.register(cmd, false)
	return cmd
}

func createCommitCmd() *cobra.Command {
	var kindName string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Copy staged associations onto the source records",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := scope.ParseKind(kindName)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app) error {
				n, err := a.workflows.Commit(cmd.Context(), kind)
				if err != nil {
					return err
				}
				a.logger.Info("commit finished", "kind", kind, "rows", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "", "salesorder, soldto, firmographic or keepstock")
	cmd.MarkFlagRequired("kind")
	return cmd
}

func createBridgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bridge",
		Short: "Commit staged sites and rebuild the location bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				_, err := a.workflows.Bridge(cmd.Context())
				return err
			})
		},
	}
}

func createFlagResidentialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flag-residential",
		Short: "Check locations without a residential flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				_, err := a.workflows.FlagResidential(cmd.Context())
				return err
			})
		},
	}
}

func createStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Record table statistics for this run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				_, err := a.workflows.Stats(cmd.Context())
				return err
			})
		},
	}
}
