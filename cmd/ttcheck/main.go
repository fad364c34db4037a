// Command ttcheck validates a timetable catalog file and optionally publishes
// it as a new version to the postgres timetable store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"shuttle-tracker/internal/catalog"
	"shuttle-tracker/internal/db"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("ttcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	strict := fs.Bool("strict", false, "treat malformed tokens as errors")
	publish := fs.Bool("publish", false, "store the catalog in postgres after validation")
	feed := fs.String("feed", "harvard", "feed name used when publishing")
	dsn := fs.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection string used when publishing")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: ttcheck [flags] [catalog.json]\n\nWithout a file the embedded catalog is checked.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var (
		data []byte
		err  error
		name = "embedded"
	)
	if fs.NArg() > 0 {
		name = fs.Arg(0)
		data, err = os.ReadFile(name)
		if err != nil {
			fmt.Fprintf(stderr, "read %s: %v\n", name, err)
			return 1
		}
	}

	var cat *catalog.Catalog
	if data == nil {
		cat, _, err = catalog.LoadEmbedded()
	} else {
		cat, _, err = catalog.Parse(data)
	}
	if err != nil {
		var ve *catalog.ValidationError
		if errors.As(err, &ve) {
			fmt.Fprintf(stderr, "%s: %d problems\n", name, len(ve.Problems))
			for _, p := range ve.Problems {
				fmt.Fprintf(stderr, "  %v\n", p)
			}
		} else {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
		}
		return 1
	}

	issues := cat.StopIssues()
	for _, is := range issues {
		fmt.Fprintf(stdout, "%s / %s: token %d %q: %v\n", is.Timetable, is.Stop, is.Index, is.Token, is.Err)
	}
	fmt.Fprintf(stdout, "%s: version %s, %d routes, %d timetables, %d stops, %d malformed tokens\n",
		name, cat.Version, len(cat.Routes), len(cat.Timetables), len(cat.StopNames()), len(issues))
	if *strict && len(issues) > 0 {
		return 1
	}

	if !*publish {
		return 0
	}
	if data == nil {
		fmt.Fprintln(stderr, "-publish needs a catalog file")
		return 2
	}
	if *dsn == "" {
		fmt.Fprintln(stderr, "-publish needs -dsn or DATABASE_URL")
		return 2
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := publishCatalog(ctx, *dsn, *feed, cat.Version, data); err != nil {
		fmt.Fprintf(stderr, "publish: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "published %s version %s\n", *feed, cat.Version)
	return 0
}

func publishCatalog(ctx context.Context, dsn, feed, version string, data []byte) error {
	if version == "" {
		return errors.New("catalog has no version")
	}
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return err
	}
	if _, err := sqlDB.ExecContext(ctx, db.Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return db.PublishCatalog(ctx, sqlDB, feed, version, data)
}
