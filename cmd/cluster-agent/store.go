package main

import (
	"fmt"
	"os"

	"github.com/cuemby/clusteragent/pkg/log"
	"github.com/cuemby/clusteragent/pkg/storage"
	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the desired-state store",
}

var storeImportCmd = &cobra.Command{
	Use:   "import --from db.json --to db.bolt",
	Short: "Convert a JSON store into a bbolt store",
	Long: `Copy every table of a JSON store into a new bbolt store, keeping
record order. The destination must not exist yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if from == "" || to == "" {
			return fmt.Errorf("--from and --to are required")
		}

		src, err := storage.OpenJSONStore(from)
		if err != nil {
			return err
		}

		if dryRun {
			for _, table := range src.Tables() {
				records, err := src.FindAll(table, storage.All())
				if err != nil {
					return err
				}
				log.Logger.Info().Str("table", table).Int("records", len(records)).Msg("Would import table")
			}
			return nil
		}

		if _, err := os.Stat(to); err == nil {
			return fmt.Errorf("destination %s already exists", to)
		}

		dst, err := storage.OpenBoltStore(to, false)
		if err != nil {
			return err
		}
		defer dst.Close()

		count, err := storage.Import(dst, src)
		if err != nil {
			return err
		}

		log.Logger.Info().Str("from", from).Str("to", to).Int("records", count).Msg("Store imported")
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeImportCmd)

	storeImportCmd.Flags().String("from", "", "Source JSON store")
	storeImportCmd.Flags().String("to", "", "Destination bbolt store")
	storeImportCmd.Flags().Bool("dry-run", false, "Show what would be imported without writing")
}
