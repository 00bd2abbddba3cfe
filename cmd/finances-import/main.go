// Command finances-import imports a CSV statement from the local disk
// into the configured ledger backend.
//
// Usage:
//
//	finances-import [-keep] statement.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"finances/internal/cli"
	"finances/internal/log"
)

func main() {
	keep := flag.Bool("keep", false, "do not remove the staged copy when the import fails")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-keep] statement.csv\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, logger := cli.Bootstrap(log.ComponentImport, false)
	if err := run(context.Background(), cfg, logger, flag.Arg(0), *keep); err != nil {
		logger.Error("Import failed", log.FieldError, err, log.FieldFileName, flag.Arg(0))
		os.Exit(1)
	}
}
