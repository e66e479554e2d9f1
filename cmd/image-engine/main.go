// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the image-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/image-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault resolves a credential: an explicit flag value wins,
// then a .secrets/ file, then the environment (IMAGE_ENGINE_* via viper).
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return viper.GetString(key)
}

// rootCmd is the base command for the image-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "image-engine",
	Short: "Search, detect, and index images from web providers",
	Long: `image-engine builds a searchable local image index from web image
providers. It queries provider APIs (Google Custom Search, Unsplash, Pexels,
with a Wikipedia fallback), crawls arbitrary pages for images, annotates
results with MobileNet-SSD object detection, and stores everything in a
full-text-searchable SQLite index.

Each pipeline stage is a subcommand: fetch, crawl, detect, index, and serve.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.LoadDotenv(".env"); err != nil {
			return err
		}
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./image-engine.yaml or ~/.config/image-engine/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "data", "base directory for pipeline data (contains queries/, index/, images/)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("image-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "image-engine"))
		}
	}

	viper.SetEnvPrefix("IMAGE_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
