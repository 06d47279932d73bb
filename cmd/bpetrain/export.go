package main

import (
	"fmt"

	"github.com/example/go-bpetrain/internal/bpe"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the model as vocab.json and merges.txt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			model, err := bpe.LoadFile(cfg.Paths.ModelPath)
			if err != nil {
				return err
			}

			if err := model.ExportGPT2(outDir); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported model (vocab %d, %d merges) to %s\n",
				model.Vocab.Len(), len(model.Merges), outDir)
			return err
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "export", "Output directory")

	return cmd
}
