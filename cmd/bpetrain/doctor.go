package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/example/go-bpetrain/internal/doctor"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	var requireModel bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run corpus, configuration and model checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			dcfg := doctor.Config{
				GoVersion:     func() (string, error) { return runtime.Version(), nil },
				NFC:           cfg.Train.NFC,
				ModelPath:     cfg.Paths.ModelPath,
				RequireModel:  requireModel,
				Pattern:       cfg.Train.Pattern,
				VocabSize:     cfg.Train.VocabSize,
				Sentinel:      cfg.Train.Sentinel,
				SpecialTokens: cfg.Train.SpecialTokens,
			}
			// stdin is not probed.
			if cfg.Paths.CorpusPath != "-" {
				dcfg.CorpusPath = cfg.Paths.CorpusPath
			}

			result := doctor.Run(dcfg, out)

			if err := cfg.Validate(); err != nil {
				result.AddFailure(fmt.Sprintf("config: %v", err))
				_, _ = fmt.Fprintf(out, "%s config: %v\n", doctor.FailMark, err)
			} else {
				_, _ = fmt.Fprintf(out, "%s config: ok\n", doctor.PassMark)
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&requireModel, "require-model", false, "Fail when the model file does not exist")

	return cmd
}
