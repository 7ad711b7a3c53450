package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		format string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default configuration file",
		Long: `Write a reactor.json (or reactor.toml) with every setting at its default.

Examples:
  reactor init
  reactor init --format=toml ./project`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := runInit(dir, format, force)
			if err != nil {
				return err
			}
			success("Created %s", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "File format: json or toml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func runInit(dir, format string, force bool) (string, error) {
	var name string
	switch format {
	case "json":
		name = config.JSONFileName
	case "toml":
		name = config.TOMLFileName
	default:
		return "", errors.New("C004").
			WithDetail("Unknown format " + format).
			WithSuggestion("Use --format=json or --format=toml")
	}

	path := filepath.Join(dir, name)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", errors.New("C005").
				WithDetail(path + " already exists").
				WithSuggestion("Pass --force to overwrite it")
		}
	}

	if err := config.New().SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
