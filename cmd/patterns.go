package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tidbyt.dev/txc/logging"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns <revision_id>",
	Short: "Lists the service patterns loaded into a revision",
	Args:  cobra.ExactArgs(1),
	RunE:  patterns,
}

var showStops bool

func init() {
	patternsCmd.Flags().BoolVarP(&showStops, "stops", "s", false, "Also list each pattern's stops")
}

func patterns(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid revision id: %w", err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(s, logger, "close_storage")

	rev, err := s.GetRevision(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d lines)\n", rev.Name, rev.Report.LineCount)

	sps, err := s.ListServicePatterns(id)
	if err != nil {
		return err
	}

	for _, sp := range sps {
		kind := ""
		if sp.Flexible {
			kind = " [flexible]"
		}
		fmt.Printf("%s %s %s: %s -> %s (%.1f km)%s\n",
			sp.ServiceCode, sp.LineName, sp.Direction, sp.Origin, sp.Destination, sp.LengthKm, kind)

		if !showStops {
			continue
		}
		stops, err := s.ListServicePatternStops(sp.ID, 0)
		if err != nil {
			return err
		}
		for _, stop := range stops {
			fmt.Printf("  %3d %-8s %-12s %s\n", stop.Sequence, stop.DepartureTime, stop.AtcoCode, stop.CommonName)
		}
	}

	return nil
}
