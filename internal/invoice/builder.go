// Package invoice turns inbound invoice documents into the zipped CSV pair
// accepted by the ERP bulk import.
package invoice

import (
	"archive/zip"
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/templating"
)

const (
	// HeaderEntryName and LinesEntryName are the archive entries the ERP import expects.
	HeaderEntryName = "ApInvoicesInterface.csv"
	LinesEntryName  = "ApInvoiceLinesInterface.csv"

	linesKey         = "INVOICELINES"
	lineNumberField  = "INVOICELINENUM"
	accountingDateIn = "accountingDate"
	invoiceIDIn      = "invoiceId"
)

//go:embed templates/*.template
var templateFS embed.FS

// Artifact is the rendered output for one inbound document. It is not modified after Build returns.
type Artifact struct {
	Header       string
	Lines        string
	Archive      []byte
	InvoiceCount int
	LineCount    int
}

// Builder renders invoices with a header template and a line template.
type Builder struct {
	header *templating.Template
	line   *templating.Template
}

// NewBuilder parses the two template bodies.
func NewBuilder(headerTemplate, lineTemplate string) *Builder {
	return &Builder{
		header: templating.Parse(headerTemplate),
		line:   templating.Parse(lineTemplate),
	}
}

// DefaultBuilder uses the AP invoice templates embedded in the binary.
func DefaultBuilder() (*Builder, error) {
	header, err := templateFS.ReadFile("templates/APInvoiceTemplate.csv.template")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded header template: %w", err)
	}
	line, err := templateFS.ReadFile("templates/APInvoiceLinesTemplate.csv.template")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded line template: %w", err)
	}
	return NewBuilder(string(header), string(line)), nil
}

// LoadBuilder reads templates from disk, falling back to the embedded
// template for any path left empty.
func LoadBuilder(headerPath, linePath string) (*Builder, error) {
	def, err := DefaultBuilder()
	if err != nil {
		return nil, err
	}
	b := &Builder{header: def.header, line: def.line}
	if headerPath != "" {
		body, err := os.ReadFile(headerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read header template %s: %w", headerPath, err)
		}
		b.header = templating.Parse(string(body))
	}
	if linePath != "" {
		body, err := os.ReadFile(linePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read line template %s: %w", linePath, err)
		}
		b.line = templating.Parse(string(body))
	}
	return b, nil
}

// Build decodes, validates and renders a raw inbound document. Any shape
// problem is reported as a DataShapeError; rows are never silently dropped.
func (b *Builder) Build(data []byte) (*Artifact, error) {
	violations, err := validateShape(data)
	if err != nil {
		return nil, models.DataShapeError("JSON Decode Exception parsing input data file", err)
	}
	if len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.String()
		}
		return nil, models.DataShapeError("input document does not match the invoice schema: "+strings.Join(msgs, "; "), nil).
			WithDetails(violations)
	}

	var doc struct {
		Invoices []map[string]any `json:"invoices"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, models.DataShapeError("JSON Decode Exception parsing input data file", err)
	}
	return b.BuildInvoices(doc.Invoices)
}

// BuildInvoices renders already-decoded invoices.
func (b *Builder) BuildInvoices(invoices []map[string]any) (*Artifact, error) {
	var header, lines strings.Builder
	artifact := &Artifact{InvoiceCount: len(invoices)}

	for i, inv := range invoices {
		invoiceLines, err := linesOf(inv)
		if err != nil {
			return nil, models.DataShapeError(fmt.Sprintf("invoice %d: %v", i, err), nil)
		}

		header.WriteString(b.header.Render(scalarFields(inv, linesKey)))

		parent := templating.Fields{
			accountingDateIn: inv[accountingDateIn],
			invoiceIDIn:      inv[invoiceIDIn],
		}
		for n, line := range invoiceLines {
			pinned := templating.Fields{lineNumberField: n + 1}
			lines.WriteString(b.line.Render(pinned, parent, scalarFields(line, "")))
			artifact.LineCount++
		}
	}

	artifact.Header = header.String()
	artifact.Lines = lines.String()

	archive, err := Package(artifact.Header, artifact.Lines)
	if err != nil {
		return nil, err
	}
	artifact.Archive = archive
	return artifact, nil
}

// linesOf returns the invoice's lines collection, matched case-insensitively.
func linesOf(inv map[string]any) ([]map[string]any, error) {
	for k, v := range inv {
		if strings.ToUpper(k) != linesKey {
			continue
		}
		raw, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s must be a list, got %T", k, v)
		}
		out := make([]map[string]any, len(raw))
		for i, item := range raw {
			line, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be an object, got %T", k, i, item)
			}
			out[i] = line
		}
		return out, nil
	}
	return nil, fmt.Errorf("missing invoiceLines collection")
}

// scalarFields copies the non-container fields of record, skipping exclude
// (compared upper-cased).
func scalarFields(record map[string]any, exclude string) templating.Fields {
	fields := make(templating.Fields, len(record))
	for k, v := range record {
		if exclude != "" && strings.ToUpper(k) == exclude {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		fields[k] = v
	}
	return fields
}

// Package writes the header and line streams as two deflated entries of one zip archive.
// Entries carry no timestamps so equal input yields equal bytes.
func Package(header, lines string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range []struct {
		name string
		body string
	}{
		{HeaderEntryName, header},
		{LinesEntryName, lines},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry.name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry %s: %w", entry.name, err)
		}
		if _, err := w.Write([]byte(entry.body)); err != nil {
			return nil, fmt.Errorf("failed to write zip entry %s: %w", entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize zip archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ArchiveName maps an inbound JSON object name to the name of its archive.
func ArchiveName(jsonName string) string {
	if strings.HasSuffix(strings.ToLower(jsonName), ".json") {
		return jsonName[:len(jsonName)-len(".json")] + ".zip"
	}
	return jsonName + ".zip"
}
