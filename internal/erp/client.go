// Package erp talks to the external ERP bulk import endpoint: it submits
// packaged invoice archives and parses the completion callbacks it sends back.
package erp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
)

const (
	OperationImportBulkData = "importBulkData"
	ContentTypeZip          = "zip"
	// NotificationCode asks the endpoint to call back on completion.
	NotificationCode = "10"

	DefaultHTTPTimeout = 60 * time.Second
)

// ClientConfig holds the job settings sent with every submission.
type ClientConfig struct {
	URL         string
	Username    string
	JobName     string
	ParamList   string
	CallbackURL string
	HTTPTimeout time.Duration
}

// ImportRequest is the importBulkData request envelope.
type ImportRequest struct {
	OperationName    string `json:"OperationName"`
	DocumentContent  string `json:"DocumentContent"`
	ContentType      string `json:"ContentType"`
	FileName         string `json:"FileName"`
	JobName          string `json:"JobName"`
	ParameterList    string `json:"ParameterList"`
	CallbackURL      string `json:"CallbackURL"`
	NotificationCode string `json:"NotificationCode"`
}

// Submission is the accepted import. Response holds the decoded response
// body so it can be forwarded to operators.
type Submission struct {
	JobID    string
	Response map[string]any
}

type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewClientWithHTTP uses hc instead of a fresh http.Client.
func NewClientWithHTTP(cfg ClientConfig, hc *http.Client) *Client {
	return &Client{config: cfg, httpClient: hc}
}

// NewImportRequest builds the request envelope for content stored as fileName.
func (c *Client) NewImportRequest(fileName string, content []byte) ImportRequest {
	return ImportRequest{
		OperationName:    OperationImportBulkData,
		DocumentContent:  base64.StdEncoding.EncodeToString(content),
		ContentType:      ContentTypeZip,
		FileName:         fileName,
		JobName:          c.config.JobName,
		ParameterList:    c.config.ParamList,
		CallbackURL:      c.config.CallbackURL,
		NotificationCode: NotificationCode,
	}
}

// Submit posts content to the bulk import endpoint with basic auth and
// returns the job id. Any status other than 201 Created is a SubmissionError
// carrying the status and the body as received.
func (c *Client) Submit(ctx context.Context, password, fileName string, content []byte) (*Submission, error) {
	logCtx := slog.With("fileName", fileName, "jobName", c.config.JobName)

	jsonData, err := json.Marshal(c.NewImportRequest(fileName, content))
	if err != nil {
		return nil, models.SubmissionError("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, models.SubmissionError("failed to create request", err)
	}
	req.SetBasicAuth(c.config.Username, password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logCtx.Info("Submitting file to ERP.", "bytes", len(content))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.SubmissionError("failed to send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.SubmissionError("failed to read response", err)
	}

	if resp.StatusCode != http.StatusCreated {
		logCtx.Error("ERP rejected submission", "status", resp.StatusCode)
		return nil, models.SubmissionError(
			fmt.Sprintf("Error %d occurred during upload. Message=%s", resp.StatusCode, body), nil,
		).WithDetails(map[string]any{
			"statusCode": resp.StatusCode,
			"body":       string(body),
		})
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	err = dec.Decode(&raw)
	if err == nil && raw == nil {
		err = fmt.Errorf("response is not a JSON object")
	}
	if err != nil {
		return nil, models.SubmissionError(fmt.Sprintf("failed to parse response, body: %s", body), err).
			WithDetails(map[string]any{"statusCode": resp.StatusCode, "body": string(body)})
	}
	jobID, err := jobIDFromValue(raw["ReqstId"])
	if err != nil {
		return nil, models.SubmissionError(fmt.Sprintf("failed to parse ReqstId, body: %s", body), err).
			WithDetails(map[string]any{"statusCode": resp.StatusCode, "body": string(body)})
	}
	if jobID == "" {
		return nil, models.SubmissionError(fmt.Sprintf("response has no ReqstId, body: %s", body), nil).
			WithDetails(map[string]any{"statusCode": resp.StatusCode, "body": string(body)})
	}

	logCtx.Info("ERP job submitted.", "erpJobId", jobID)
	return &Submission{JobID: jobID.String(), Response: raw}, nil
}
