package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var input string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode text with a trained model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			tok, err := loadTokenizer(cfg.Paths.ModelPath)
			if err != nil {
				return err
			}

			src, err := readInputText(input, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ids, err := tok.Encode(src)
			if err != nil {
				return err
			}

			return writeIDs(cmd.OutOrStdout(), ids, asJSON)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to encode (reads stdin when empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print IDs as a JSON array")

	return cmd
}

// readInputText returns text when set, otherwise all of r.
func readInputText(text string, r io.Reader) (string, error) {
	if text != "" {
		return text, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}

	if len(data) == 0 {
		return "", fmt.Errorf("no input text: pass --text or pipe text on stdin")
	}

	return string(data), nil
}

func writeIDs(w io.Writer, ids []int64, asJSON bool) error {
	if asJSON {
		if ids == nil {
			ids = []int64{}
		}
		return json.NewEncoder(w).Encode(ids)
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}
