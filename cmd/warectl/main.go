package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/waretrace/waretrace/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "warectl",
	Short: "Warehouse ledger CLI",
	Long: `warectl is the operator command-line interface for the warehouse
transaction ledger.

It inspects the hash chain, verifies its integrity, and queries item
histories and point-in-time state without touching the database directly.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.warectl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.warectl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "ledger server URL (default http://localhost:8080)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(versionCmd)
}

// ── init ─────────────────────────────────────────────────────────────────────

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the genesis block if the chain is empty",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		block, err := c.Initialize(context.Background())
		if err != nil {
			return fmt.Errorf("initialize chain: %w", err)
		}
		fmt.Printf("✓ Chain initialized\n\n")
		fmt.Printf("  Block:  %d\n", block.Number)
		fmt.Printf("  Hash:   %s\n", block.Hash)
		return nil
	},
}

// ── status ───────────────────────────────────────────────────────────────────

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chain counts and the current tip",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		o, err := c.Overview(context.Background())
		if err != nil {
			return fmt.Errorf("fetch overview: %w", err)
		}
		if statusFormat == "json" {
			return printJSON(o)
		}
		fmt.Printf("Blocks:       %d\n", o.Blocks)
		fmt.Printf("Transactions: %d\n", o.Transactions)
		fmt.Printf("Tip:          %d\n", o.TipNumber)
		fmt.Printf("Tip Hash:     %s\n", o.TipHash)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format: text or json")
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Walk the full chain and verify every hash link",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		result, err := c.Verify(context.Background())
		if err != nil {
			return fmt.Errorf("verify chain: %w", err)
		}
		if !result.Valid {
			return fmt.Errorf("chain verification FAILED: %s", result.Error)
		}
		fmt.Println("✓ Chain verified: all block and transaction hashes intact")
		return nil
	},
}

// ── blocks ───────────────────────────────────────────────────────────────────

var (
	blocksLimit  int
	blocksOffset int
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List blocks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		blocks, err := c.Blocks(context.Background(), blocksLimit, blocksOffset)
		if err != nil {
			return fmt.Errorf("list blocks: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NUMBER\tTXS\tHASH\tCREATED")
		for _, b := range blocks {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n",
				b.Number, b.TransactionCount, shortHash(b.Hash), b.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	blocksCmd.Flags().IntVar(&blocksLimit, "limit", 20, "Maximum number of blocks to list")
	blocksCmd.Flags().IntVar(&blocksOffset, "offset", 0, "Number of blocks to skip")
}

// ── block ────────────────────────────────────────────────────────────────────

var blockCmd = &cobra.Command{
	Use:   "block <number>",
	Short: "Show a single block and its transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var number int64
		if _, err := fmt.Sscanf(args[0], "%d", &number); err != nil {
			return fmt.Errorf("invalid block number %q", args[0])
		}

		c := client.New(serverURL)
		block, txs, err := c.Block(context.Background(), number)
		if err != nil {
			return fmt.Errorf("fetch block %d: %w", number, err)
		}

		fmt.Printf("Block:         %d\n", block.Number)
		fmt.Printf("Hash:          %s\n", block.Hash)
		fmt.Printf("Previous:      %s\n", block.PreviousHash)
		fmt.Printf("Merkle Root:   %s\n", block.MerkleRoot)
		fmt.Printf("Transactions:  %d\n", block.TransactionCount)
		fmt.Printf("Created:       %s\n", block.CreatedAt.Format("2006-01-02 15:04:05"))

		if len(txs) == 0 {
			return nil
		}
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tITEM\tQTY\tHASH")
		for _, tx := range txs {
			fmt.Fprintf(w, "%s\t%s\t%g → %g\t%s\n",
				tx.Type, tx.ItemID, tx.OldQuantity, tx.NewQuantity, shortHash(tx.Hash))
		}
		return w.Flush()
	},
}

// ── history ──────────────────────────────────────────────────────────────────

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history <item-id>",
	Short: "Show an item's full transaction history, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		entries, err := c.ItemHistory(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetch history for %s: %w", args[0], err)
		}
		if historyFormat == "json" {
			return printJSON(entries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tQTY\tSTATE\tUSER")
		for _, e := range entries {
			tx := e.Transaction
			fmt.Fprintf(w, "%s\t%s\t%g → %g\t%s\t%s\n",
				tx.CreatedAt.Format("2006-01-02 15:04:05"),
				tx.Type,
				tx.OldQuantity, tx.NewQuantity,
				deref(tx.NewStateID),
				e.Username)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyFormat, "format", "text", "Output format: text or json")
}

// ── state ────────────────────────────────────────────────────────────────────

var stateCmd = &cobra.Command{
	Use:   "state <item-id>",
	Short: "Show an item's current state as recorded on the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(serverURL)
		sv, err := c.ItemState(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetch state for %s: %w", args[0], err)
		}
		fmt.Printf("Item:        %s\n", sv.ItemID)
		fmt.Printf("Quantity:    %g\n", sv.Quantity)
		fmt.Printf("State:       %s\n", deref(sv.StateID))
		fmt.Printf("Location:    %s\n", deref(sv.Location))
		fmt.Printf("Transaction: %s\n", sv.TransactionID)
		fmt.Printf("Hash:        %s\n", sv.TransactionHash)
		fmt.Printf("Updated:     %s\n", sv.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the warectl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("warectl %s\n", version)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "…"
	}
	return h
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
