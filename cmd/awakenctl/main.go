// awakenctl fetches a wallet's history through an AwakenFetch server and
// writes the Awaken-importable CSV file.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"awakenfetch/internal/client"
	"awakenfetch/pkg/awakencsv"
	"awakenfetch/pkg/types/chains"
	"awakenfetch/pkg/utils"
)

var (
	flagServer  string
	flagChain   string
	flagAddress string
	flagFrom    string
	flagTo      string
	flagOut     string
	flagVerbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "awakenctl",
		Short: "Export wallet transaction history as Awaken CSV",
	}

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch transactions and write the CSV export",
		RunE:  runFetch,
	}
	fetchCmd.Flags().StringVar(&flagServer, "server", utils.GetEnv("AWAKENFETCH_SERVER", "http://localhost:8080"), "AwakenFetch server URL")
	fetchCmd.Flags().StringVar(&flagChain, "chain", "", "chain id (e.g. kaspa, ethereum)")
	fetchCmd.Flags().StringVar(&flagAddress, "address", "", "wallet address")
	fetchCmd.Flags().StringVar(&flagFrom, "from", "", "inclusive start date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&flagTo, "to", "", "inclusive end date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&flagOut, "out", ".", "output directory")
	fetchCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	fetchCmd.MarkFlagRequired("chain")
	fetchCmd.MarkFlagRequired("address")

	rootCmd.AddCommand(fetchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFetch(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var from, to *time.Time
	if flagFrom != "" {
		t, err := time.Parse("2006-01-02", flagFrom)
		if err != nil {
			return fmt.Errorf("invalid --from date: %s", flagFrom)
		}
		from = &t
	}
	if flagTo != "" {
		t, err := time.Parse("2006-01-02", flagTo)
		if err != nil {
			return fmt.Errorf("invalid --to date: %s", flagTo)
		}
		to = &t
	}

	fetched := 0
	c, err := client.New(
		client.WithBaseURL(flagServer),
		client.WithLogger(logger),
		client.WithDateRange(from, to),
		client.WithProgress(func(batch []chains.Transaction) {
			fetched += len(batch)
			fmt.Fprintf(os.Stderr, "\rfetched %d transactions...", fetched)
		}),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	txs, err := c.FetchTransactions(ctx, flagChain, flagAddress)
	fmt.Fprintln(os.Stderr)
	for _, warning := range c.State().Warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}
	if err != nil {
		return err
	}

	csvData := awakencsv.GenerateStandardCSV(txs)
	filename := awakencsv.Filename(flagChain, sanitize(flagAddress), time.Now(), false)
	path := filepath.Join(flagOut, filename)

	if err := os.WriteFile(path, []byte(csvData), 0o644); err != nil {
		return err
	}

	fmt.Printf("wrote %d transactions to %s\n", len(txs), path)
	return nil
}

// sanitize keeps the exported file name portable across filesystems.
func sanitize(address string) string {
	return strings.NewReplacer(":", "", "/", "", "\\", "").Replace(address)
}
