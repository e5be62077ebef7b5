package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/grovetools/wdtp/pkg/markdown"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/recent"
	"github.com/grovetools/wdtp/pkg/tree"
)

var (
	cfgFile         string
	ProjectOverride string
)

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "wdtp")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("WDTP")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("data_dir", filepath.Join(os.Getenv("HOME"), ".local", "share", "wdtp"))
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("editor", os.Getenv("EDITOR"))
	viper.SetDefault("markdown.hard_wraps", false)
	viper.SetDefault("markdown.unsafe_html", false)
	viper.SetDefault("markdown.highlight_style", markdown.DefaultHighlightStyle)

	if err := viper.ReadInConfig(); err == nil {
		// Do not print this in normal operation, it's noisy.
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
	}
}

// NewLogger returns the command-line logger at the configured level.
func NewLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	return logrus.NewEntry(logger).WithField("app", "wdtp")
}

// DataDir returns the directory holding the recent list and search indexes.
func DataDir() string {
	return viper.GetString("data_dir")
}

// Editor returns the configured editor command.
func Editor() string {
	return viper.GetString("editor")
}

// MarkdownOptions returns the converter options from the config.
func MarkdownOptions() markdown.Options {
	return markdown.Options{
		HardWraps:      viper.GetBool("markdown.hard_wraps"),
		UnsafeHTML:     viper.GetBool("markdown.unsafe_html"),
		HighlightStyle: viper.GetString("markdown.highlight_style"),
	}
}

// Env bundles what the commands work with.
type Env struct {
	Manager *project.Manager
	Recents *recent.List
	Logger  *logrus.Entry
}

// Close releases the recent list.
func (e *Env) Close() error {
	if e == nil || e.Recents == nil {
		return nil
	}
	return e.Recents.Close()
}

func InitEnv() (*Env, error) {
	logger := NewLogger()
	fs := afero.NewOsFs()

	recents, err := recent.Open(DataDir(), fs)
	if err != nil {
		return nil, fmt.Errorf("open recent projects: %w", err)
	}

	manager := project.NewManager(
		project.WithFs(fs),
		project.WithConverter(markdown.New(MarkdownOptions())),
		project.WithRecents(recents),
		project.WithLogger(logger),
	)
	return &Env{Manager: manager, Recents: recents, Logger: logger}, nil
}

// ProjectPath resolves the project to work on: the --project flag, then
// WDTP_PROJECT, then the only project file in the working directory.
func ProjectPath() (string, error) {
	if ProjectOverride != "" {
		return ProjectOverride, nil
	}
	if p := viper.GetString("project"); p != "" {
		return p, nil
	}
	matches, err := filepath.Glob("*" + tree.ProjectExt)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no project file in the current directory, use --project")
	case 1:
		return filepath.Abs(matches[0])
	default:
		return "", fmt.Errorf("%d project files in the current directory, use --project", len(matches))
	}
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wdtp/config.yaml)")
	cmd.PersistentFlags().StringVarP(&ProjectOverride, "project", "P", "", "Project file to work on")
}
