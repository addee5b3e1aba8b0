package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const importChunk = 500

func newImportCmd(opts *globalOptions) *cobra.Command {
	var scheme string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load identifiers issued elsewhere into a scheme's source column",
		Long: `Reads one identifier per line from FILE ("-" for stdin) and inserts them
into the source column of the scheme, so later allocations skip them.
Blank lines are ignored; values are stored as given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			sc, ok := s.service.Scheme(scheme)
			if !ok {
				return fmt.Errorf("unknown scheme %q", scheme)
			}

			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			values, err := readLines(in)
			if err != nil {
				return err
			}
			for start := 0; start < len(values); start += importChunk {
				end := min(start+importChunk, len(values))
				if err := s.backend.Importer.InsertIdentifiers(cmd.Context(), sc.Source, values[start:end]...); err != nil {
					return err
				}
			}
			return printJSON(cmd, map[string]any{
				"scheme":   sc.Name,
				"source":   sc.Source.Table + "." + sc.Source.Column,
				"imported": len(values),
			})
		},
	}
	cmd.Flags().StringVar(&scheme, "scheme", "asli", "scheme whose source column receives the values")
	return cmd
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return out, nil
}
