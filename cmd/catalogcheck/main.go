// catalogcheck validates an application catalog YAML file and optionally
// loads it into the portal database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/paulexconde/camperportal/internal/catalog"
	"github.com/paulexconde/camperportal/internal/config"
	"github.com/paulexconde/camperportal/internal/database/postgres"
	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		file  string
		apply bool
		dsn   string
	)

	flagSet := pflag.NewFlagSet("catalogcheck", pflag.ContinueOnError)
	flagSet.StringVarP(&file, "file", "f", "catalog.yaml", "catalog YAML file")
	flagSet.BoolVar(&apply, "apply", false, "write the catalog to the database after validating it")
	flagSet.StringVar(&dsn, "dsn", "", "postgres connection string (default: built from POSTGRES_* env)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	sections, err := catalog.LoadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if err := services.ValidateCatalog(sections); err != nil {
		fmt.Fprintf(os.Stderr, "%s is invalid:\n", file)
		var joined interface{ Unwrap() []error }
		if errors.As(err, &joined) {
			for _, problem := range joined.Unwrap() {
				fmt.Fprintf(os.Stderr, "  - %v\n", problem)
			}
		} else {
			fmt.Fprintf(os.Stderr, "  - %v\n", err)
		}
		return 1
	}

	printSummary(file, sections)

	if !apply {
		return 0
	}

	if err := applyCatalog(dsn, sections); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Println("catalog applied")
	return 0
}

func printSummary(file string, sections []models.Section) {
	var questions, triggered int
	for _, s := range sections {
		questions += len(s.Questions)
		for _, q := range s.Questions {
			if q.HasTrigger() {
				triggered++
			}
		}
	}
	fmt.Printf("%s: %d sections, %d questions (%d conditional)\n", file, len(sections), questions, triggered)
}

func applyCatalog(dsn string, sections []models.Section) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var (
		db  *sqlx.DB
		err error
	)
	if dsn == "" {
		db, err = postgres.Connect(ctx, config.New().Postgres, logger.NewNop())
	} else {
		db, err = sqlx.ConnectContext(ctx, "postgres", dsn)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	if dsn != "" {
		if err := postgres.ApplySchema(ctx, db); err != nil {
			return err
		}
	}

	return catalog.NewPostgresProvider(db).Replace(ctx, sections)
}
