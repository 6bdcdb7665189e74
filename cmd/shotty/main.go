package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"
	"github.com/younsl/shotty/internal/version"
	"github.com/younsl/shotty/pkg/aws"
	"github.com/younsl/shotty/pkg/controller"
	"github.com/younsl/shotty/pkg/utils"
)

// DefaultLogLevel keeps diagnostics quiet unless asked for
const DefaultLogLevel = "warn"

// globalOptions holds the flags shared by every command
type globalOptions struct {
	profile  string
	project  string
	region   string
	logLevel string
}

// spinnerIndicator shows a spinner on stderr while waiting on an instance
type spinnerIndicator struct {
	s *spinner.Spinner
}

func newSpinnerIndicator() *spinnerIndicator {
	return &spinnerIndicator{
		s: spinner.New(spinner.CharSets[9], 200*time.Millisecond, spinner.WithWriter(os.Stderr)),
	}
}

func (i *spinnerIndicator) Start(message string) {
	i.s.Suffix = message
	i.s.Start()
}

func (i *spinnerIndicator) Stop() {
	i.s.Stop()
}

// newLogger creates a logfmt logger on stderr filtered at level
func newLogger(level string) (log15.Logger, error) {
	lvl, err := log15.LvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger := log15.New("app", "shotty")
	logger.SetHandler(
		log15.LvlFilterHandler(
			lvl,
			log15.StreamHandler(os.Stderr, log15.LogfmtFormat()),
		),
	)
	return logger, nil
}

// newController resolves the session and builds a controller for opts
func newController(ctx context.Context, opts *globalOptions) (*controller.Controller, error) {
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return nil, err
	}

	if opts.region != "" && !utils.IsKnownRegion(opts.region) {
		logger.Warn("region is not in the known region list, passing it to AWS as is", "region", opts.region)
	}

	client, err := aws.NewEC2Client(ctx, aws.SessionConfig{
		Profile: opts.profile,
		Region:  opts.region,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved AWS session", "profile", opts.profile, "region", client.Region())

	return controller.New(client, opts.project,
		controller.WithOutput(os.Stdout),
		controller.WithLogger(logger),
		controller.WithIndicator(newSpinnerIndicator()),
	), nil
}

// runWith wraps a controller operation as a cobra RunE
func runWith(opts *globalOptions, op func(*controller.Controller, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := newController(ctx, opts)
		if err != nil {
			return err
		}
		return op(c, ctx)
	}
}

func newVolumesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "Commands for volumes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List EC2 volumes",
		Args:  cobra.NoArgs,
		RunE:  runWith(opts, (*controller.Controller).ListVolumes),
	})
	return cmd
}

func newInstancesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Commands for instances",
	}

	subcommands := []struct {
		use   string
		short string
		op    func(*controller.Controller, context.Context) error
	}{
		{"list", "List EC2 instances", (*controller.Controller).ListInstances},
		{"stop", "Stop EC2 instances", (*controller.Controller).StopInstances},
		{"start", "Start EC2 instances", (*controller.Controller).StartInstances},
		{"wait_until_stopped", "Wait until EC2 instances are stopped", (*controller.Controller).WaitUntilStopped},
		{"wait_until_running", "Wait until EC2 instances are running", (*controller.Controller).WaitUntilRunning},
		{"snapshots", "Create snapshots of all volumes", (*controller.Controller).CreateSnapshots},
	}
	for _, sc := range subcommands {
		cmd.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE:  runWith(opts, sc.op),
		})
	}
	return cmd
}

func newSnapshotsCmd(opts *globalOptions) *cobra.Command {
	var listAll bool

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Commands for snapshots",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List EC2 snapshots",
		Args:  cobra.NoArgs,
		RunE: runWith(opts, func(c *controller.Controller, ctx context.Context) error {
			return c.ListSnapshots(ctx, listAll)
		}),
	}
	listCmd.Flags().BoolVar(&listAll, "all", false, "List all the snapshots, not just the most recent one")

	cmd.AddCommand(listCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get())
		},
	}
}

// newRootCmd builds the shotty command tree
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "shotty",
		Short: "Shotty manages EC2 instances, volumes and snapshots",
		Long: `shotty is a CLI tool that lists EC2 instances, volumes and snapshots,
stops and starts instances, and snapshots their volumes, optionally
limited to the instances tagged PROJECT=<project>.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.profile, "profile", "", "The AWS profile to be used")
	rootCmd.PersistentFlags().StringVar(&opts.project, "project", "", "Only instances for project (tag PROJECT)")
	rootCmd.PersistentFlags().StringVarP(&opts.region, "region", "r", "", "AWS region (default: from profile or environment)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", DefaultLogLevel, "Log level on stderr (debug, info, warn, error, crit)")

	rootCmd.AddCommand(
		newVolumesCmd(opts),
		newInstancesCmd(opts),
		newSnapshotsCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
