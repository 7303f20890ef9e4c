package stage

import (
	"errors"
	"fmt"
	"strings"
)

// JobMarker separates an object name from the external job id it is tagged with.
const JobMarker = "_ERPJOBID_"

var (
	// ErrNotJobTagged is returned when a name carries no job marker.
	ErrNotJobTagged = errors.New("object name is not job-tagged")
	// ErrAmbiguousJobTag is returned when the marker appears more than once.
	ErrAmbiguousJobTag = errors.New("object name contains the job marker more than once")
)

// JobTag is the correlation between a stored object and its external job.
type JobTag struct {
	Name  string
	JobID string
}

// NewJobTag validates name and jobID so that the tagged form round-trips.
func NewJobTag(name, jobID string) (JobTag, error) {
	switch {
	case name == "":
		return JobTag{}, errors.New("job tag: empty object name")
	case jobID == "":
		return JobTag{}, errors.New("job tag: empty job id")
	case strings.Contains(name, JobMarker):
		return JobTag{}, fmt.Errorf("job tag: object name %q already contains %s", name, JobMarker)
	case strings.Contains(jobID, JobMarker):
		return JobTag{}, fmt.Errorf("job tag: job id %q contains %s", jobID, JobMarker)
	}
	return JobTag{Name: name, JobID: jobID}, nil
}

// String returns the tagged object name, <name>_ERPJOBID_<jobId>.
func (t JobTag) String() string {
	return t.Name + JobMarker + t.JobID
}

// DeriveJobTaggedName builds the processing name for name submitted as jobID.
func DeriveJobTaggedName(name, jobID string) (string, error) {
	tag, err := NewJobTag(name, jobID)
	if err != nil {
		return "", err
	}
	return tag.String(), nil
}

// ParseJobTaggedName splits a tagged name back into its parts. Names without
// exactly one marker, or with nothing on either side of it, are rejected.
func ParseJobTaggedName(tagged string) (JobTag, error) {
	switch strings.Count(tagged, JobMarker) {
	case 0:
		return JobTag{}, fmt.Errorf("%q: %w", tagged, ErrNotJobTagged)
	case 1:
	default:
		return JobTag{}, fmt.Errorf("%q: %w", tagged, ErrAmbiguousJobTag)
	}
	name, jobID, _ := strings.Cut(tagged, JobMarker)
	return NewJobTag(name, jobID)
}
