package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

var identifierCmd = &cobra.Command{
	Use:   "identifier",
	Short: "Manage identifiers and barcodes",
}

var mintQuiet bool

var identifierMintCmd = &cobra.Command{
	Use:   "mint <set name> <count>",
	Short: "Mint new identifiers",
	Long: `Mint new identifiers in an existing identifier set.

<set name> is an existing identifier set, e.g. as output by the
"specimenhub identifier set ls" command.

<count> is the number of new identifiers to mint.`,
	Args: cobra.ExactArgs(2),
	RunE: runIdentifierMint,
}

var identifierSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Manage identifier sets",
}

var identifierSetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List identifier sets",
	Args:  cobra.NoArgs,
	RunE:  runIdentifierSetLs,
}

var identifierLookupCmd = &cobra.Command{
	Use:   "lookup <barcode>",
	Short: "Look up the identifier behind a barcode",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentifierLookup,
}

func init() {
	identifierMintCmd.Flags().BoolVarP(&mintQuiet, "quiet", "q", false,
		"Suppress printing of new identifiers to stdout")

	identifierCmd.AddCommand(identifierMintCmd)
	identifierCmd.AddCommand(identifierLookupCmd)
	identifierSetCmd.AddCommand(identifierSetLsCmd)
	identifierCmd.AddCommand(identifierSetCmd)
}

func runIdentifierMint(cmd *cobra.Command, args []string) error {
	setName := args[0]
	count, err := strconv.Atoi(args[1])
	if err != nil || count < 1 {
		return fmt.Errorf("<count> must be a positive integer, got %q", args[1])
	}

	cli, cleanup, err := openWarehouse()
	if err != nil {
		return err
	}
	defer cleanup()

	return cli.sess.Transaction(cmd.Context(), func(tx session.Session) error {
		minted, err := cli.wh.MintIdentifiers(cmd.Context(), tx, setName, count)
		if err != nil {
			return err
		}
		if !mintQuiet {
			for _, id := range minted {
				fmt.Printf("%s\t%s\n", id.Barcode, id.UUID)
			}
		}
		return nil
	})
}

func runIdentifierSetLs(cmd *cobra.Command, args []string) error {
	cli, cleanup, err := openWarehouse()
	if err != nil {
		return err
	}
	defer cleanup()

	sets, err := cli.wh.ListIdentifierSets(cmd.Context(), cli.sess)
	if err != nil {
		return err
	}

	// Line up names into a column.
	width := 0
	for _, s := range sets {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}
	for _, s := range sets {
		fmt.Printf("%-*s%s\n", width+3, s.Name, s.Use)
	}
	return nil
}

func runIdentifierLookup(cmd *cobra.Command, args []string) error {
	cli, cleanup, err := openWarehouse()
	if err != nil {
		return err
	}
	defer cleanup()

	record, err := cli.wh.FindIdentifier(cmd.Context(), cli.sess, args[0])
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("no identifier with barcode %q", args[0])
	}
	fmt.Printf("%s\t%s\t%s\n", record.Barcode, record.UUID, record.SetName)
	return nil
}
