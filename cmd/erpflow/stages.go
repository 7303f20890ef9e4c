package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/services"
	"github.com/Lllllllleong/erpdocumentflow/internal/stage"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the objects held in every configured stage location",
	Long:  "Lists each stage bucket named in the environment. Objects in the processing location are decoded into document name and ERP job id.",
	RunE:  runStages,
}

var stagesPrefix string

// openStore is replaced in tests.
var openStore = services.OpenStore

func init() {
	stagesCmd.Flags().StringVarP(&stagesPrefix, "prefix", "p", "", "Only list objects whose name starts with this prefix")

	rootCmd.AddCommand(stagesCmd)
}

func runStages(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return err
	}
	locations := cfg.Buckets.Configured()
	if len(locations) == 0 {
		return fmt.Errorf("no stage buckets configured, set JSON_INBOUND_BUCKET, ZIP_INBOUND_BUCKET, PROCESSING_BUCKET, SUCCEEDED_BUCKET or FAILED_BUCKET")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	router := stage.NewRouter(store, cfg.Buckets)

	listings := make([][]storage.ObjectInfo, len(locations))
	eg, gctx := errgroup.WithContext(ctx)
	for i, loc := range locations {
		eg.Go(func() error {
			objects, err := router.List(gctx, loc, stagesPrefix)
			if err != nil {
				return fmt.Errorf("listing %s: %w", loc, err)
			}
			listings[i] = objects
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, loc := range locations {
		printStage(out, cfg.Buckets, loc, listings[i])
	}
	return nil
}

func printStage(out io.Writer, buckets stage.Buckets, loc stage.Location, objects []storage.ObjectInfo) {
	bucket, _ := buckets.Bucket(loc)
	fmt.Fprintf(out, "%s (%s): %d object(s)\n", loc, bucket, len(objects))
	for _, obj := range objects {
		if loc != stage.Processing && !loc.Terminal() {
			fmt.Fprintf(out, "  %s\t%d bytes\n", obj.Name, obj.Size)
			continue
		}
		tag, err := stage.ParseJobTaggedName(obj.Name)
		if err != nil {
			fmt.Fprintf(out, "  %s\t%d bytes\t(not job-tagged)\n", obj.Name, obj.Size)
			continue
		}
		fmt.Fprintf(out, "  %s\t%d bytes\tdocument=%s job=%s\n", obj.Name, obj.Size, tag.Name, tag.JobID)
	}
}
