// Package stage encodes pipeline state in object locations and names, and
// moves objects between stage locations.
package stage

import "fmt"

// Location is one storage area of the pipeline.
type Location int

const (
	// Inbound holds JSON records waiting to be transformed.
	Inbound Location = iota
	// Ready holds ZIP artifacts waiting to be submitted.
	Ready
	// Processing holds job-tagged artifacts while the external job runs.
	Processing
	Succeeded
	Failed
)

var locationNames = map[Location]string{
	Inbound:    "inbound",
	Ready:      "ready",
	Processing: "processing",
	Succeeded:  "succeeded",
	Failed:     "failed",
}

// Locations lists every location in pipeline order.
func Locations() []Location {
	return []Location{Inbound, Ready, Processing, Succeeded, Failed}
}

func (l Location) String() string {
	if name, ok := locationNames[l]; ok {
		return name
	}
	return fmt.Sprintf("location(%d)", int(l))
}

// Terminal reports whether no further transition happens after l.
func (l Location) Terminal() bool {
	return l == Succeeded || l == Failed
}

// Buckets maps each location to its bucket name. A stage only needs the
// buckets it touches, so unset fields are allowed until Bucket is called.
type Buckets struct {
	Inbound    string
	Ready      string
	Processing string
	Succeeded  string
	Failed     string
}

// Bucket returns the bucket configured for l.
func (b Buckets) Bucket(l Location) (string, error) {
	var name string
	switch l {
	case Inbound:
		name = b.Inbound
	case Ready:
		name = b.Ready
	case Processing:
		name = b.Processing
	case Succeeded:
		name = b.Succeeded
	case Failed:
		name = b.Failed
	default:
		return "", fmt.Errorf("unknown stage location %d", int(l))
	}
	if name == "" {
		return "", fmt.Errorf("no bucket configured for %s location", l)
	}
	return name, nil
}

// Configured returns the locations that have a bucket, in pipeline order.
func (b Buckets) Configured() []Location {
	var out []Location
	for _, l := range Locations() {
		if _, err := b.Bucket(l); err == nil {
			out = append(out, l)
		}
	}
	return out
}

// Terminal picks the terminal location for a job outcome.
func Terminal(succeeded bool) Location {
	if succeeded {
		return Succeeded
	}
	return Failed
}
