package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/domain"
)

func newIdentitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "identities",
		Aliases: []string{"id"},
		Short:   "List and import enrolled identities",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every readable identity and its sample count",
		Args:  cobra.NoArgs,
		RunE:  run(runIdentitiesList),
	}
	list.Flags().Bool("descriptors", false, "Include descriptors in JSON output")

	importCmd := &cobra.Command{
		Use:   "import <label> <descriptors.json>",
		Short: "Append client-computed descriptors to an identity",
		Long: `Reads a JSON array of descriptors (arrays of numbers) and appends them
to the identity's record, creating it if needed.

Example:
  galleryctl identities import alice alice.json`,
		Args: cobra.ExactArgs(2),
		RunE: run(runIdentitiesImport),
	}

	cmd.AddCommand(list, importCmd)
	return cmd
}

type identitySummary struct {
	Label       string             `json:"label"`
	Samples     int                `json:"samples"`
	Descriptors []domain.Embedding `json:"descriptors,omitempty"`
}

func runIdentitiesList(ctx context.Context, cmd *cobra.Command, _ []string, e *env) error {
	identities, err := e.service.ListIdentities(ctx)
	if err != nil {
		return err
	}

	withDescriptors := mustGetBool(cmd, "descriptors")
	summaries := make([]identitySummary, 0, len(identities))
	for _, id := range identities {
		s := identitySummary{Label: id.Label, Samples: len(id.Embeddings)}
		if withDescriptors {
			s.Descriptors = id.Embeddings
		}
		summaries = append(summaries, s)
	}

	if mustGetBool(cmd, "json") {
		return printJSON(cmd, summaries)
	}

	w := tabwriter.NewWriter(out(cmd), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tSAMPLES")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\n", s.Label, s.Samples)
	}
	return w.Flush()
}

func runIdentitiesImport(ctx context.Context, cmd *cobra.Command, args []string, e *env) error {
	label, path := args[0], args[1]

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read descriptors: %w", err)
	}
	var descriptors []domain.Embedding
	if err := json.Unmarshal(raw, &descriptors); err != nil {
		return fmt.Errorf("parse descriptors: %w", err)
	}

	enrollment, err := e.service.ImportDescriptors(ctx, label, descriptors)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(cmd, enrollment)
	}
	fmt.Fprintf(out(cmd), "imported %d descriptors for %s (%d samples total)\n",
		len(descriptors), enrollment.Label, enrollment.Samples)
	return nil
}
