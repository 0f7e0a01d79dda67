package cmd

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bianoble/template-cleanup/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the configuration, cache and handlers",
	Long: `Displays the template-cleanup version, working directory, configuration path,
profiles and the rules the selected profile resolves to, cache directory and
size, and the registered package managers and custom rule modules.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(commandContext(cmd))
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "template-cleanup %s\n", version)
		fmt.Fprintf(stdout, "  working dir:   %s\n", client.WorkingDir())

		cfgPath, cfgErr := client.ConfigPath()
		var cfg *config.Config
		if cfgErr == nil {
			cfg, cfgErr = client.Config()
		}
		switch {
		case cfgPath == "":
			fmt.Fprintf(stdout, "  config:        not found\n")
		case cfgErr != nil:
			fmt.Fprintf(stdout, "  config:        %s (invalid)\n", cfgPath)
		default:
			fmt.Fprintf(stdout, "  config:        %s\n", cfgPath)
		}

		if dir := client.CacheDir(); dir != "" {
			size, _ := client.CacheSize()
			fmt.Fprintf(stdout, "  cache dir:     %s\n", dir)
			fmt.Fprintf(stdout, "  cache size:    %s\n", humanize.IBytes(uint64(size)))
		} else {
			fmt.Fprintf(stdout, "  cache:         disabled\n")
		}

		fmt.Fprintf(stdout, "  managers:      %s\n", strings.Join(client.Managers(), ", "))
		fmt.Fprintf(stdout, "  plugins:       %s\n", strings.Join(client.Plugins(), ", "))

		if cfg == nil {
			if cfgErr != nil && cfgPath != "" {
				return cfgErr
			}
			return nil
		}

		if len(cfg.Features) > 0 {
			fmt.Fprintf(stdout, "  features:      %s\n", strings.Join(cfg.Features, ", "))
		}

		fmt.Fprintln(stdout, "\nProfiles:")
		for _, name := range cfg.ProfileNames() {
			p := cfg.Profiles[name]
			extends := ""
			if p.Extends != "" {
				extends = " (extends " + p.Extends + ")"
			}
			fmt.Fprintf(stdout, "  %-15s %d rule(s)%s\n", name, len(p.Rules), extends)
		}

		rules, err := cfg.ResolveRules(profile)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nRules for profile %s:\n", profile)
		for _, r := range rules {
			cond := ""
			if r.Condition != "" {
				cond = " when " + r.Condition
			}
			fmt.Fprintf(stdout, "  %-28s %s%s\n", r.ID, r.Type, cond)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
