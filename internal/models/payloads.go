package models

// These structs define the JSON envelopes consumed and produced by the stage functions.

// EventTypeCreateObject is the only event type that triggers a pipeline stage.
const EventTypeCreateObject = "com.oraclecloud.objectstorage.createobject"

// ObjectEvent is the "object created" notice delivered to the transform and load stages.
type ObjectEvent struct {
	EventType string          `json:"eventType"`
	Data      ObjectEventData `json:"data"`
}

// ObjectEventData carries the name of the created object.
type ObjectEventData struct {
	ResourceName      string                 `json:"resourceName"`
	AdditionalDetails map[string]interface{} `json:"additionalDetails,omitempty"`
}

// IsCreateObject reports whether the event is a pipeline trigger.
func (e ObjectEvent) IsCreateObject() bool {
	return e.EventType == EventTypeCreateObject
}

// StageResponse is what every stage returns to its caller. Success responses
// populate Status/Header/Message; failure responses populate ErrorMessage.
type StageResponse struct {
	Status            string      `json:"status,omitempty"`
	Header            string      `json:"header,omitempty"`
	Message           interface{} `json:"message,omitempty"`
	AdditionalDetails interface{} `json:"additionalDetails,omitempty"`

	ErrorMessage   string      `json:"errorMessage,omitempty"`
	AdditionalData interface{} `json:"additionalData,omitempty"`
}

// Failed reports whether the response describes a failure.
func (r *StageResponse) Failed() bool {
	return r.ErrorMessage != ""
}

// ErrorResponse builds the failure response for err.
func ErrorResponse(message string, additional interface{}) *StageResponse {
	if additional == nil {
		additional = "None"
	}
	return &StageResponse{
		ErrorMessage:   message,
		AdditionalData: additional,
	}
}
