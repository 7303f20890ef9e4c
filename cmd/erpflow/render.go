package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/erpdocumentflow/internal/invoice"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render an inbound invoice JSON file into the ERP import archive",
	Long:  "Runs the transform stage offline: validates the invoice JSON, renders the header and line CSVs and writes the zip archive.",
	RunE:  runRender,
}

var (
	renderInput          string
	renderOutput         string
	renderHeaderTemplate string
	renderLineTemplate   string
)

func init() {
	renderCmd.Flags().StringVarP(&renderInput, "input", "i", "", "Path to inbound invoice JSON file (required)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Path to output zip archive (defaults to the input name with .zip)")
	renderCmd.Flags().StringVar(&renderHeaderTemplate, "header-template", "", "Header template file (defaults to the embedded AP invoice template)")
	renderCmd.Flags().StringVar(&renderLineTemplate, "line-template", "", "Line template file (defaults to the embedded AP invoice lines template)")

	if err := renderCmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(renderInput)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	builder, err := cliBuilder(renderHeaderTemplate, renderLineTemplate)
	if err != nil {
		return err
	}

	artifact, err := builder.Build(data)
	if err != nil {
		return err
	}

	output := renderOutput
	if output == "" {
		output = invoice.ArchiveName(renderInput)
	}
	if err := os.WriteFile(output, artifact.Archive, 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d invoices, %d lines)\n", output, artifact.InvoiceCount, artifact.LineCount)
	return nil
}

func cliBuilder(headerPath, linePath string) (*invoice.Builder, error) {
	switch {
	case headerPath == "" && linePath == "":
		return invoice.DefaultBuilder()
	case headerPath == "" || linePath == "":
		return nil, fmt.Errorf("--header-template and --line-template must be given together")
	default:
		return invoice.LoadBuilder(headerPath, linePath)
	}
}
