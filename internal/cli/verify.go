package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/rollcall/internal/imagesource"
)

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Identify the first face in an image file against the gallery",
		Long: `Runs the configured face provider on the image and prints the closest
enrolled identity within MATCH_THRESHOLD. Attendance is not recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: run(runVerify),
	}
}

func runVerify(ctx context.Context, cmd *cobra.Command, args []string, e *env) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	data, err = imagesource.Normalize(data, e.cfg.ImageMaxSide)
	if err != nil {
		return err
	}

	verification, err := e.service.Verify(ctx, data)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return printJSON(cmd, verification)
	}
	fmt.Fprintf(out(cmd), "%s (distance %.4f, %d candidates)\n",
		verification.Label, verification.Distance, verification.Candidates)
	return nil
}
