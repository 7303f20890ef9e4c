package invoice

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// inboundSchema describes the minimum shape of an inbound invoice document.
// The lines collection is checked separately because its key is matched
// case-insensitively.
const inboundSchema = `{
  "type": "object",
  "required": ["invoices"],
  "properties": {
    "invoices": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["invoiceId", "accountingDate"],
        "properties": {
          "invoiceId": {"type": ["string", "number"]},
          "accountingDate": {"type": "string"}
        }
      }
    }
  }
}`

var compiledSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(inboundSchema))
	if err != nil {
		panic(fmt.Sprintf("invoice: invalid inbound schema: %v", err))
	}
	compiledSchema = schema
}

// FieldError is a single shape violation at a JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validateShape checks raw JSON against the inbound schema. It returns the
// violations found, or an error if the document could not be read at all.
func validateShape(data []byte) ([]FieldError, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}
	violations := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return violations, nil
}
