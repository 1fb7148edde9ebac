package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
)

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Process received records into the warehouse",
}

var etlManifestFlags struct {
	manifestPath string
	configPath   string
}

var etlManifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Process sample manifest records",
	Long: `Process sample manifest records into the warehouse.

Manifest records are JSON documents, one per line, with a "sample" barcode,
an optional "collection" barcode, an optional collection "date", and other
metadata. Barcodes are resolved to full identifiers and each record is
created or merged as a sample; the remaining metadata lands in the sample's
details document.

Records with unknown barcodes are skipped with a warning. Each record is
processed in its own savepoint, so one bad record does not lose the batch.`,
	Args: cobra.NoArgs,
	RunE: runEtlManifest,
}

// manifestConfig validates which identifier sets the manifest's barcodes may
// come from. An empty list accepts any set.
type manifestConfig struct {
	SampleSets     []string `yaml:"sample_sets"`
	CollectionSets []string `yaml:"collection_sets"`
}

func init() {
	f := etlManifestCmd.Flags()
	f.StringVar(&etlManifestFlags.manifestPath, "manifest", "", "Manifest records as JSON lines (required)")
	f.StringVar(&etlManifestFlags.configPath, "config", "", "YAML config naming the expected identifier sets")
	etlManifestCmd.MarkFlagRequired("manifest")

	etlCmd.AddCommand(etlManifestCmd)
}

func runEtlManifest(cmd *cobra.Command, args []string) error {
	var cfg manifestConfig
	if etlManifestFlags.configPath != "" {
		raw, err := os.ReadFile(etlManifestFlags.configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	file, err := os.Open(etlManifestFlags.manifestPath)
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	defer file.Close()

	cli, cleanup, err := openWarehouse()
	if err != nil {
		return err
	}
	defer cleanup()

	var processed, created, updated, skipped int
	err = cli.sess.Transaction(cmd.Context(), func(tx session.Session) error {
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)

		line := 0
		for scanner.Scan() {
			line++
			if len(scanner.Bytes()) == 0 {
				continue
			}

			var document map[string]any
			if err := json.Unmarshal(scanner.Bytes(), &document); err != nil {
				return fmt.Errorf("manifest line %d: %w", line, err)
			}

			err := tx.Savepoint(cmd.Context(), fmt.Sprintf("manifest record %d", line), func(sp session.Session) error {
				status, err := processManifestRecord(cmd, cli, sp, cfg, document)
				if err != nil {
					return err
				}
				switch status {
				case warehouse.StatusCreated:
					created++
				case warehouse.StatusUpdated:
					updated++
				default:
					skipped++
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("manifest line %d: %w", line, err)
			}
			processed++
		}
		return scanner.Err()
	})
	if err != nil {
		return err
	}

	fmt.Printf("processed %d records: %d created, %d updated, %d skipped\n",
		processed, created, updated, skipped)
	return nil
}

// processManifestRecord resolves the record's barcodes and upserts the
// sample. An empty status means the record was skipped.
func processManifestRecord(cmd *cobra.Command, cli *cliContext, sp session.Session, cfg manifestConfig, document map[string]any) (warehouse.UpsertStatus, error) {
	ctx := cmd.Context()

	sampleBarcode, _ := document["sample"].(string)
	if sampleBarcode == "" {
		cli.log.Warn("Skipping manifest record without a sample barcode")
		return "", nil
	}
	delete(document, "sample")

	sampleIdentifier, err := cli.wh.FindIdentifier(ctx, sp, sampleBarcode)
	if err != nil {
		return "", err
	}
	if sampleIdentifier == nil {
		cli.log.Warn("Skipping sample with unknown sample barcode", "barcode", sampleBarcode)
		return "", nil
	}
	if !setAllowed(cfg.SampleSets, sampleIdentifier.SetName) {
		return "", fmt.Errorf("sample identifier found in set %q, not %v",
			sampleIdentifier.SetName, cfg.SampleSets)
	}

	in := warehouse.UpsertSampleInput{Identifier: &sampleIdentifier.UUID}

	if collectionBarcode, _ := document["collection"].(string); collectionBarcode != "" {
		delete(document, "collection")
		collectionIdentifier, err := cli.wh.FindIdentifier(ctx, sp, collectionBarcode)
		if err != nil {
			return "", err
		}
		if collectionIdentifier == nil {
			cli.log.Warn("Skipping sample with unknown collection barcode", "barcode", collectionBarcode)
			return "", nil
		}
		if !setAllowed(cfg.CollectionSets, collectionIdentifier.SetName) {
			return "", fmt.Errorf("collection identifier found in set %q, not %v",
				collectionIdentifier.SetName, cfg.CollectionSets)
		}
		in.CollectionIdentifier = &collectionIdentifier.UUID
	}

	if date, _ := document["date"].(string); date != "" {
		delete(document, "date")
		in.CollectionDate = &date
	}

	// Barcodes were looked up and removed above so that each piece of
	// information has one clear home in the warehouse.
	in.Details = document

	_, status, err := cli.wh.UpsertSample(ctx, sp, in)
	if err != nil {
		return "", err
	}
	return status, nil
}

func setAllowed(allowed []string, name string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	return false
}
