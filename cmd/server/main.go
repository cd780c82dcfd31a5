package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"course-rag/internal/config"
)

func main() {
	var cfgPath string
	root := &cobra.Command{
		Use:           "course-rag",
		Short:         "Course materials question answering service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default configs/config.toml)")

	load := func() (*config.Config, error) {
		if cfgPath != "" {
			if err := os.Setenv("CONFIG_FILE", cfgPath); err != nil {
				return nil, err
			}
		}
		return config.Load()
	}

	root.AddCommand(serveCMD(load), ingestCMD(load), workerCMD(load))
	if err := root.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
