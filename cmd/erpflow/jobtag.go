package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/erpdocumentflow/internal/stage"
)

var jobtagCmd = &cobra.Command{
	Use:   "jobtag <object-name>",
	Short: "Decode a job-tagged object name",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobtag,
}

func init() {
	rootCmd.AddCommand(jobtagCmd)
}

func runJobtag(cmd *cobra.Command, args []string) error {
	tag, err := stage.ParseJobTaggedName(args[0])
	if err != nil {
		return fmt.Errorf("%s is not a pipeline-owned object: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "document: %s\njob id:   %s\n", tag.Name, tag.JobID)
	return nil
}
