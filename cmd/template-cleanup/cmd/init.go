package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bianoble/template-cleanup/internal/config"
)

var initForce bool

// initTemplate is the default template-cleanup.yaml scaffold.
// It includes a working default profile and commented-out alternatives.
const initTemplate = `# template-cleanup configuration
# Docs: https://github.com/bianoble/template-cleanup

# Features enabled unless disabled with --feature '!name'.
features: [docker]

# Block markers. Without an entry the defaults accept both
# TEMPLATE-ONLY:START/END and TEMPLATE-ONLY-START/END (likewise CONDITIONAL);
# setting a pair replaces both spellings with the one given.
markers:
  # template_only:
  #   start: "TEMPLATE-ONLY:START"
  #   end: "TEMPLATE-ONLY:END"
  # conditional:
  #   start: "CONDITIONAL:START"
  #   end: "CONDITIONAL:END"
  line_tag: "@template-only"

profiles:
  default:
    rules:
      # Strip // TEMPLATE-ONLY:START ... // TEMPLATE-ONLY:END blocks
      - id: strip-template-blocks
        type: block_markers

      # Drop single lines tagged // @template-only
      - id: strip-template-lines
        type: line_tag

      # Delete template-only files and directories
      - id: drop-template-files
        type: file_glob_delete
        globs:
          - ".template/**"
          - "TEMPLATE_README.md"

  minimal:
    extends: default
    rules:
      - id: drop-examples
        type: file_glob_delete
        glob: "examples/**"

      # Remove demo dependencies from package.json
      # - id: prune-demo-deps
      #   type: package_prune
      #   manager: npm
      #   remove_deps: [left-pad]
      #   remove_dev_deps: [storybook]

      - id: prune-empty
        type: prune_empty

conditional_rules:
  docker:
    # Runs when the docker feature is disabled.
    - id: drop-docker
      type: file_glob_delete
      globs: ["Dockerfile", ".dockerignore", "docker-compose*.yml"]
      condition: "!docker"

# comment_syntax:
#   .tpl: "##"
#   .jinja: ["{#", "#}"]

# Custom rules run statically registered handlers:
# - id: strip-debug
#   type: custom
#   module: builtin/remove-lines-matching
#   options:
#     pattern: "console\\.debug\\("
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter template-cleanup.yaml configuration",
	Long: `Creates a template-cleanup.yaml file in the working directory (or at --config)
with a well-commented default profile, a minimal profile extending it and a
feature-gated conditional rule.

Use --force to overwrite an existing configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := configPath
		if outPath == "" {
			outPath = filepath.Join(workingDir, config.FileNames[0])
		}
		if !filepath.IsAbs(outPath) {
			abs, err := filepath.Abs(outPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			outPath = abs
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		if err := os.WriteFile(outPath, []byte(initTemplate), 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Edit the rules to match your template")
		info("  2. Run 'template-cleanup' to preview the changes")
		info("  3. Run 'template-cleanup --apply' to clean the project")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}
