package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/logger"
	"github.com/mohammad-safakhou/researchpilot/internal/memory"
)

func memoryCMD(cfgPath *string) *cobra.Command {
	mem := &cobra.Command{
		Use:   "memory",
		Short: "Inspect retrieval memory",
	}

	var (
		factsPath string
		k         int
	)
	query := &cobra.Command{
		Use:   "query [text]",
		Short: "Load facts (one per line) and print the top-k matches for text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.General.LogLevel)
			defer log.Sync()

			f, err := os.Open(factsPath)
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			m, err := memory.New(ctx, cfg.Memory, log.Named("memory"))
			if err != nil {
				return err
			}
			defer m.Close()

			n, err := loadFacts(ctx, m, f)
			if err != nil {
				return err
			}
			log.Debug("facts loaded", zap.Int("count", n), zap.String("backend", m.Backend()))

			hits, err := m.RetrieveRelevant(ctx, args[0], k)
			if err != nil {
				return err
			}
			for i, hit := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, hit)
			}
			return nil
		},
	}
	query.Flags().StringVar(&factsPath, "facts", "", "file with one fact per line")
	query.Flags().IntVar(&k, "k", 3, "number of facts to return")
	_ = query.MarkFlagRequired("facts")

	mem.AddCommand(query)
	return mem
}

// loadFacts adds every non-blank line of r to m.
func loadFacts(ctx context.Context, m *memory.Memory, r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := m.AddFact(ctx, line); err != nil {
			return n, err
		}
		n++
	}
	return n, sc.Err()
}
