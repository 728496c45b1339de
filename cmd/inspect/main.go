// Command inspect prints the records of a chat database as a table.
// It opens the database read-only, so it can run next to a live server.
package main

import (
	"chat-sync/internal"
	"chat-sync/repositories"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	Limit          int    `envconfig:"INSPECT_LIMIT" default:"200"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Config error: ", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "v1/", "Key prefix to scan, e.g. v1/conversation/")
	limit := flag.Int("limit", config.Limit, "Maximum number of records to print")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	records, err := repositories.NewRecordRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn)).Scan(*prefix, limit)
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, record := range records {
		kind, detail := internal.Describe(record.Key, record.Value)
		table.Append([]string{record.Key, kind, detail})
	}
	table.Render()
	fmt.Printf("\n%d record(s) under %q\n", len(records), *prefix)
}
