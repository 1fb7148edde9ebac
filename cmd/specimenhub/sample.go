package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Manage sample records",
}

var sampleUpsertFlags struct {
	identifier           string
	collectionIdentifier string
	collectionDate       string
	encounterID          int64
	detailsJSON          string
	updateIdentifiers    bool
}

var sampleUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create or update one sample record",
	Long: `Create or update a sample record matched by its sample identifier
or collection identifier. Existing details are shallow-merged with the
provided details; the collection date and encounter only fill in missing
values unless --update-identifiers is given.`,
	Args: cobra.NoArgs,
	RunE: runSampleUpsert,
}

func init() {
	f := sampleUpsertCmd.Flags()
	f.StringVar(&sampleUpsertFlags.identifier, "identifier", "", "Sample identifier (uuid)")
	f.StringVar(&sampleUpsertFlags.collectionIdentifier, "collection-identifier", "", "Collection identifier (uuid)")
	f.StringVar(&sampleUpsertFlags.collectionDate, "collection-date", "", "Collection date, e.g. 2026-08-26")
	f.Int64Var(&sampleUpsertFlags.encounterID, "encounter-id", 0, "Encounter to link the sample to")
	f.StringVar(&sampleUpsertFlags.detailsJSON, "details", "", "Additional details as a JSON object")
	f.BoolVar(&sampleUpsertFlags.updateIdentifiers, "update-identifiers", false,
		"Overwrite the stored identifiers instead of keeping them")

	sampleCmd.AddCommand(sampleUpsertCmd)
}

func runSampleUpsert(cmd *cobra.Command, args []string) error {
	in := warehouse.UpsertSampleInput{
		UpdateIdentifiers: sampleUpsertFlags.updateIdentifiers,
	}
	if sampleUpsertFlags.identifier != "" {
		in.Identifier = &sampleUpsertFlags.identifier
	}
	if sampleUpsertFlags.collectionIdentifier != "" {
		in.CollectionIdentifier = &sampleUpsertFlags.collectionIdentifier
	}
	if in.Identifier == nil && in.CollectionIdentifier == nil {
		return fmt.Errorf("at least one of --identifier or --collection-identifier is required")
	}
	if sampleUpsertFlags.collectionDate != "" {
		in.CollectionDate = &sampleUpsertFlags.collectionDate
	}
	if sampleUpsertFlags.encounterID != 0 {
		in.EncounterID = &sampleUpsertFlags.encounterID
	}
	if sampleUpsertFlags.detailsJSON != "" {
		if err := json.Unmarshal([]byte(sampleUpsertFlags.detailsJSON), &in.Details); err != nil {
			return fmt.Errorf("parsing --details: %w", err)
		}
	}

	cli, cleanup, err := openWarehouse()
	if err != nil {
		return err
	}
	defer cleanup()

	return session.RetryTransaction(cmd.Context(), cli.sess, 3, func(tx session.Session) error {
		sample, status, err := cli.wh.UpsertSample(cmd.Context(), tx, in)
		if err != nil {
			return err
		}
		fmt.Printf("%s sample %d\n", status, sample.ID)
		return nil
	})
}
