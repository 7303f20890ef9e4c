package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JobID is an external job identifier. The endpoint sends it either as a
// JSON string or as a bare number depending on the operation.
type JobID string

func (id *JobID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = JobID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("job id must be a string or a number, got %s", data)
	}
	*id = JobID(n.String())
	return nil
}

// jobIDFromValue converts a value decoded with json.Decoder.UseNumber.
func jobIDFromValue(v any) (JobID, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return JobID(x), nil
	case json.Number:
		return JobID(x.String()), nil
	}
	return "", fmt.Errorf("job id must be a string or a number, got %T", v)
}

func (id JobID) String() string {
	return string(id)
}
