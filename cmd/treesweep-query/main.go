package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"treesweep/internal/database"
	"treesweep/internal/exitcodes"
)

func main() {
	// Parse command-line flags
	dbPath := flag.String("db", "", "Path to deletion history database")
	recent := flag.Int("recent", 0, "Show N most recent records")
	stats := flag.Bool("stats", false, "Show deletion statistics")
	action := flag.String("action", "", "Filter by action (DELETE, DRY_RUN, ERROR, SKIP, PRUNE)")
	pathPattern := flag.String("path", "", "Filter by relative path pattern (SQL LIKE syntax)")
	largest := flag.Int("largest", 0, "Show N largest deletions")
	days := flag.Int("days", 30, "Number of days for statistics (0 = all time)")
	purge := flag.Int("purge", 0, "Delete records older than N days")
	vacuum := flag.Bool("vacuum", false, "Compact the database after purging")
	jsonOutput := flag.Bool("json", false, "Output in JSON format")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "ERROR: --db is required")
		flag.Usage()
		os.Exit(exitcodes.SetupError)
	}

	// Open database
	db, err := database.NewHistoryDB(*dbPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to open database %s: %v", *dbPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close database: %v", err)
		}
	}()

	// Handle different query modes
	switch {
	case *stats:
		showStats(db, *days, *jsonOutput)
	case *recent > 0:
		showRecent(db, *recent, *jsonOutput)
	case *action != "":
		showByAction(db, *action, *jsonOutput)
	case *pathPattern != "":
		showByPath(db, *pathPattern, *jsonOutput)
	case *largest > 0:
		showLargest(db, *largest, *jsonOutput)
	case *purge > 0:
		purgeOld(db, *purge, *vacuum)
	default:
		flag.Usage()
		fmt.Println("\nExamples:")
		fmt.Println("  treesweep-query --db history.db --recent 10        # Show 10 most recent records")
		fmt.Println("  treesweep-query --db history.db --stats            # Show deletion statistics")
		fmt.Println("  treesweep-query --db history.db --action DELETE    # Show only real deletions")
		fmt.Println("  treesweep-query --db history.db --path 'logs/%'    # Show records under logs/")
		fmt.Println("  treesweep-query --db history.db --largest 10       # Show 10 largest deletions")
		fmt.Println("  treesweep-query --db history.db --purge 90         # Drop records older than 90 days")
		os.Exit(exitcodes.SetupError)
	}
}

func showStats(db *database.HistoryDB, days int, jsonOutput bool) {
	if days <= 0 {
		// All-time view only has per-action counts
		counts, err := db.GetDeletionCountByAction()
		if err != nil {
			log.Fatalf("ERROR: Failed to get statistics: %v", err)
		}

		if jsonOutput {
			data, _ := json.MarshalIndent(counts, "", "  ")
			fmt.Println(string(data))
			return
		}

		fmt.Println("All-time records by action:")
		for action, count := range counts {
			fmt.Printf("  %-10s %d\n", action, count)
		}
		printDatabaseStats(db)
		return
	}

	stats, err := db.GetStats(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to get statistics: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Deletion Statistics (Last %d days)\n", days)
	fmt.Printf("Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Printf("Deleted:       %d\n", stats.TotalDeleted)
	fmt.Printf("Dry-run only:  %d\n", stats.TotalDryRun)
	fmt.Printf("Errors:        %d\n", stats.TotalErrors)
	fmt.Printf("Skipped:       %d\n", stats.TotalSkipped)
	fmt.Printf("Pruned dirs:   %d\n", stats.TotalPruned)
	fmt.Printf("Space Freed:   %s\n\n", formatBytes(stats.TotalSpaceFreed))

	if len(stats.ByAction) > 0 {
		fmt.Println("By Action:")
		for action, count := range stats.ByAction {
			fmt.Printf("  %-10s %d\n", action, count)
		}
	}

	printDatabaseStats(db)
}

func printDatabaseStats(db *database.HistoryDB) {
	dbStats, err := db.GetDatabaseStats()
	if err != nil {
		return
	}
	fmt.Println()
	if total, ok := dbStats["total_records"].(int64); ok {
		fmt.Printf("Database records: %d\n", total)
	}
	if size, ok := dbStats["database_size_bytes"].(int64); ok {
		fmt.Printf("Database size:    %s\n", formatBytes(size))
	}
}

func showRecent(db *database.HistoryDB, limit int, jsonOutput bool) {
	records, err := db.GetRecentDeletions(limit)
	if err != nil {
		log.Fatalf("ERROR: Failed to get recent records: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return
	}

	printRecords(records)
}

func showByAction(db *database.HistoryDB, action string, jsonOutput bool) {
	records, err := db.GetDeletionsByAction(action)
	if err != nil {
		log.Fatalf("ERROR: Failed to query by action: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Records with action: %s\n\n", action)
	printRecords(records)
}

func showByPath(db *database.HistoryDB, pathPattern string, jsonOutput bool) {
	records, err := db.GetDeletionsByPath(pathPattern)
	if err != nil {
		log.Fatalf("ERROR: Failed to query by path: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Records matching path pattern: %s\n\n", pathPattern)
	printRecords(records)
}

func showLargest(db *database.HistoryDB, limit int, jsonOutput bool) {
	records, err := db.GetLargestDeletions(limit)
	if err != nil {
		log.Fatalf("ERROR: Failed to get largest deletions: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Largest %d deletions:\n\n", limit)
	printRecords(records)
}

func purgeOld(db *database.HistoryDB, days int, vacuum bool) {
	removed, err := db.DeleteOldRecords(days)
	if err != nil {
		log.Fatalf("ERROR: Failed to purge old records: %v", err)
	}
	fmt.Printf("Removed %d record(s) older than %d days\n", removed, days)

	if vacuum {
		if err := db.Vacuum(); err != nil {
			log.Fatalf("ERROR: Failed to vacuum database: %v", err)
		}
		fmt.Println("Database compacted")
	}
}

func printRecords(records []database.Record) {
	if len(records) == 0 {
		fmt.Println("No records found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tSize\tPath\tDetail")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t----\t----\t------")

	for _, r := range records {
		timestamp := r.Timestamp.Format("2006-01-02 15:04:05")
		size := formatBytes(r.Size)
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, timestamp, r.Action, size, r.RelPath, r.ErrorMessage)
	}
	_ = w.Flush()
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
