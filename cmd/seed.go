package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tidbyt.dev/txc/logging"
	"tidbyt.dev/txc/parse"
	"tidbyt.dev/txc/storage"
)

var seedStopsCmd = &cobra.Command{
	Use:   "seed-stops <csv>",
	Short: "Imports NaPTAN stop points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return seed(args[0], func(s storage.Storage, r io.Reader) (int, error) {
			stops, err := parse.ParseStopPointsCSV(r)
			if err != nil {
				return 0, err
			}
			return len(stops), s.WriteStopPoints(stops)
		})
	},
}

var seedLocalitiesCmd = &cobra.Command{
	Use:   "seed-localities <csv>",
	Short: "Imports NPTG localities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return seed(args[0], func(s storage.Storage, r io.Reader) (int, error) {
			localities, err := parse.ParseLocalitiesCSV(r)
			if err != nil {
				return 0, err
			}
			return len(localities), s.WriteLocalities(localities)
		})
	},
}

var seedAdminAreasCmd = &cobra.Command{
	Use:   "seed-admin-areas <csv>",
	Short: "Imports NPTG administrative areas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return seed(args[0], func(s storage.Storage, r io.Reader) (int, error) {
			areas, err := parse.ParseAdminAreasCSV(r)
			if err != nil {
				return 0, err
			}
			return len(areas), s.WriteAdminAreas(areas)
		})
	},
}

func seed(path string, write func(storage.Storage, io.Reader) (int, error)) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(f, logger, "close_csv")

	s, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(s, logger, "close_storage")

	n, err := write(s, f)
	if err != nil {
		return fmt.Errorf("seeding from %s: %w", path, err)
	}

	fmt.Printf("imported %d records\n", n)
	return nil
}
