package models

import "strings"

// JobStatusSucceeded is the only external job status routed to the success location.
const JobStatusSucceeded = "SUCCEEDED"

// JobOutcome is the result of one external batch job, taken from its callback.
type JobOutcome struct {
	JobID        string
	DocumentName string
	Status       string
}

// Succeeded compares the status case-insensitively against SUCCEEDED.
func (o JobOutcome) Succeeded() bool {
	return strings.EqualFold(o.Status, JobStatusSucceeded)
}
