// Command specimenhub is the operational CLI for the specimen warehouse:
// minting identifiers, loading sample manifests, and managing database
// users.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/specimenhub-backend/internal/data/db"
	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
	"github.com/yungbote/specimenhub-backend/internal/platform/envutil"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:   "specimenhub",
	Short: "Manage the specimen warehouse",
	Long: `specimenhub manages the specimen tracking warehouse.

The warehouse is a central identifier authority: it mints pre-generated,
error-resistant barcodes for tracking physical items such as samples and
collection kits, and merges sample metadata arriving from manifests and
surveys into one record per physical sample.`,
	SilenceUsage: true,
}

// cliContext bundles the database wiring every subcommand needs.
type cliContext struct {
	log  *logger.Logger
	sess session.Session
	wh   *warehouse.Warehouse
}

func openWarehouse() (*cliContext, func(), error) {
	log, err := logger.New(envutil.String("LOG_MODE", "production"))
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}

	ctx := &cliContext{
		log:  log,
		sess: session.New(pg.DB(), log),
		wh: warehouse.New(warehouse.Deps{
			Log:          log,
			MintRetryCap: envutil.Int("MINT_RETRY_CAP", 0),
		}),
	}
	cleanup := func() { log.Sync() }
	return ctx, cleanup, nil
}

func init() {
	rootCmd.AddCommand(identifierCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(etlCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
