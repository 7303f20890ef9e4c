package erp

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
)

// ResultMessageElement is the callback element whose text is the job result JSON.
const ResultMessageElement = "resultMessage"

var controlChars = regexp.MustCompile(`[\n\r\t]`)

// CallbackJob is one entry of the JOBS collection in a callback.
type CallbackJob struct {
	Status       string `json:"STATUS"`
	RequestID    JobID  `json:"REQUESTID"`
	DocumentName string `json:"DOCUMENTNAME"`
}

// CallbackNotice is a parsed completion callback.
type CallbackNotice struct {
	Jobs []CallbackJob `json:"JOBS"`
}

// Outcome returns the outcome of the first job. Later entries are not consulted.
func (n *CallbackNotice) Outcome() models.JobOutcome {
	job := n.Jobs[0]
	return models.JobOutcome{
		JobID:        job.RequestID.String(),
		DocumentName: job.DocumentName,
		Status:       job.Status,
	}
}

// ParseCallback extracts the job results carried by a callback XML document.
// When several resultMessage elements are present the last one wins.
func ParseCallback(body []byte) (*CallbackNotice, error) {
	message, err := resultMessage(body)
	if err != nil {
		return nil, models.CallbackParseError("invalid callback XML", err)
	}

	normalized := controlChars.ReplaceAllString(message, " ")
	var notice CallbackNotice
	if err := json.Unmarshal([]byte(normalized), &notice); err != nil {
		return nil, models.CallbackParseError("invalid job result JSON", err)
	}
	if len(notice.Jobs) == 0 {
		return nil, models.CallbackParseError("job result has no JOBS entries", nil)
	}

	job := notice.Jobs[0]
	switch {
	case job.Status == "":
		return nil, models.CallbackParseError("first job has no STATUS", nil)
	case job.RequestID == "":
		return nil, models.CallbackParseError("first job has no REQUESTID", nil)
	case job.DocumentName == "":
		return nil, models.CallbackParseError("first job has no DOCUMENTNAME", nil)
	}
	return &notice, nil
}

func resultMessage(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	var (
		message string
		found   bool
		sawRoot bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != ResultMessageElement {
			continue
		}
		var element struct {
			Text string `xml:",chardata"`
		}
		if err := decoder.DecodeElement(&element, &start); err != nil {
			return "", err
		}
		message, found = element.Text, true
	}
	if !sawRoot {
		return "", errors.New("no XML elements found")
	}
	if !found {
		return "", fmt.Errorf("no %s element found", ResultMessageElement)
	}
	return message, nil
}
