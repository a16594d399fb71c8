package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tommyd2377/voice-ai-system/pkg/orders"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect stored orders",
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := orders.Open(orders.Options{Dir: cfg.DataDir})
		if err != nil {
			return err
		}
		defer store.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCALL\tFROM\tCREATED\tPAYLOAD")
		for rec, err := range store.All(cmd.Context()) {
			if err != nil {
				return err
			}
			payload, _ := json.Marshal(rec.Payload)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.ID, rec.CallSid, rec.CallerFrom,
				rec.CreatedAt.Format("2006-01-02 15:04:05"), payload)
		}
		return w.Flush()
	},
}

var ordersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one order as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := orders.Open(orders.Options{Dir: cfg.DataDir})
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	ordersCmd.AddCommand(ordersListCmd)
	ordersCmd.AddCommand(ordersShowCmd)
	rootCmd.AddCommand(ordersCmd)
}
