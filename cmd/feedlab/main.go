// Package main provides the feedlab CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/feedlab/internal/display"
	"github.com/gauthierbraillon/feedlab/internal/feedloader"
	"github.com/gauthierbraillon/feedlab/internal/logging"
	"github.com/gauthierbraillon/feedlab/internal/personalize"
	"github.com/gauthierbraillon/feedlab/internal/randpool"
	"github.com/gauthierbraillon/feedlab/internal/source"
)

// version is set via -ldflags "-X main.version=..." at release time.
var version = "dev"

const defaultConfigLocation = "data/feed-config.json"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()
	logging.Init(logging.FromEnv())

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflags string, info *debug.BuildInfo) string {
	if ldflags != "dev" {
		return ldflags
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// getConfigLocation returns the configuration path or URL.
func getConfigLocation() string {
	if loc := os.Getenv("FEEDLAB_CONFIG"); loc != "" {
		return loc
	}
	return defaultConfigLocation
}

// newRootCmd creates the root command for feedlab CLI.
func newRootCmd() *cobra.Command {
	info, _ := debug.ReadBuildInfo()

	rootCmd := &cobra.Command{
		Use:          "feedlab",
		Short:        "Compose experimental social media feeds",
		Long:         "Feedlab mixes stimulus and filler posts into personalized feeds for survey experiments.",
		Version:      resolveVersion(version, info),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Debug().
				Str("command", cmd.Name()).
				Str("version", cmd.Root().Version).
				Str("config", configFlag(cmd)).
				Msg("starting")
		},
	}

	rootCmd.SetVersionTemplate("feedlab version {{.Version}}\n")
	rootCmd.PersistentFlags().String("config", getConfigLocation(), "Feed configuration file or URL (env FEEDLAB_CONFIG)")

	rootCmd.AddCommand(newFeedCmd())
	rootCmd.AddCommand(newConditionsCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

type feedFlags struct {
	gender, age, politics, ideology, issue string
	params                                 []string
	total                                  int
	seed                                   int64
	format                                 string
	debug                                  bool
}

// participant collects the personalization parameters given on the command
// line. Empty values are skipped.
func (f *feedFlags) participant() (personalize.Params, error) {
	params := personalize.Params{}
	for k, v := range map[string]string{
		personalize.ParamGender:   f.gender,
		personalize.ParamAge:      f.age,
		personalize.ParamPolitics: f.politics,
		personalize.ParamIdeology: f.ideology,
		personalize.ParamIssue:    f.issue,
	} {
		if v != "" {
			params[k] = v
		}
	}
	for _, kv := range f.params {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", kv)
		}
		if v != "" {
			params[k] = v
		}
	}
	return params, nil
}

// newFeedCmd creates the feed subcommand.
func newFeedCmd() *cobra.Command {
	var flags feedFlags

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Generate a feed",
		Long:  "Generate one feed from the configuration, optionally personalized for a participant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(flags.format); err != nil {
				return err
			}
			params, err := flags.participant()
			if err != nil {
				return err
			}

			opts := []feedloader.Option{}
			if cmd.Flags().Changed("seed") {
				opts = append(opts, feedloader.WithPool(randpool.New(flags.seed)))
			}
			loader := feedloader.New(opts...)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			feed, err := loader.LoadFeed(ctx, configFlag(cmd), feedloader.Options{
				Personalization: params,
				TotalPosts:      flags.total,
				Debug:           flags.debug,
			})
			if err != nil {
				return err
			}

			for _, w := range feed.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			if flags.format == "json" {
				return writeJSON(cmd.OutOrStdout(), feed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), feed.String())
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatFeed(feed.Posts))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.gender, "gender", "", "Participant gender")
	cmd.Flags().StringVar(&flags.age, "age", "", "Participant age group (e.g. 30-44)")
	cmd.Flags().StringVar(&flags.politics, "politics", "", "Participant political score (1-10)")
	cmd.Flags().StringVar(&flags.ideology, "ideology", "", "Participant ideology label")
	cmd.Flags().StringVar(&flags.issue, "issue", "", "Participant policy issue")
	cmd.Flags().StringArrayVar(&flags.params, "param", nil, "Extra participant parameter as key=value (repeatable)")
	cmd.Flags().IntVarP(&flags.total, "total", "n", 0, "Override feed_settings.total_posts")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "Random seed for a reproducible feed")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Log selection details")

	return cmd
}

// newConditionsCmd creates the conditions subcommand.
func newConditionsCmd() *cobra.Command {
	var stimuli, format string

	cmd := &cobra.Command{
		Use:   "conditions",
		Short: "List experimental conditions",
		Long:  "Group the stimulus pool by condition and list the available filter values.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			loader := feedloader.New()
			location := stimuli
			if location == "" {
				cfg, err := loader.LoadConfig(ctx, configFlag(cmd))
				if err != nil {
					return err
				}
				location = source.Resolve(configFlag(cmd), cfg.StimuliSource)
			}

			cat, err := loader.LoadConditions(ctx, location)
			if err != nil {
				return err
			}

			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), cat)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d conditions in %s\n\n", len(cat.Conditions), cat.Source)
			for _, c := range cat.Conditions {
				fmt.Fprintf(out, "%s\t%d posts\t%d images\t%d texts\n", c.ID, len(c.PostIDs), len(c.Images), len(c.Texts))
			}
			fmt.Fprintf(out, "\nage groups:    %s\n", strings.Join(cat.Filters.AgeGroups, ", "))
			fmt.Fprintf(out, "genders:       %s\n", strings.Join(cat.Filters.Genders, ", "))
			fmt.Fprintf(out, "ideologies:    %s\n", strings.Join(cat.Filters.Ideologies, ", "))
			fmt.Fprintf(out, "policy issues: %s\n", strings.Join(cat.Filters.PolicyIssues, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&stimuli, "stimuli", "", "Stimulus pool file or URL (default: stimuli_source next to the config)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

// newValidateCmd creates the validate subcommand.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a feed configuration",
		Long:  "Load the configuration and report every missing section or invalid value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			cfg, err := feedloader.New().LoadConfig(ctx, configFlag(cmd))
			if err != nil {
				return err
			}
			for _, w := range cfg.Warnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
			return nil
		},
	}
}

// newConfigCmd creates the config subcommand.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration location",
		Long:  "Show where feedlab looks for its feed configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Config location: %s\n", configFlag(cmd))
			return nil
		},
	}
}

func configFlag(cmd *cobra.Command) string {
	loc, _ := cmd.Flags().GetString("config")
	return loc
}

func checkFormat(format string) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", format)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
