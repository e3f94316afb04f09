package feedback

import "github.com/movein/feedback-pipeline/schema"

// EventSchema is the JSON Schema for Event, used by both the ingestion
// handler and the worker's parse step so "validation_error" means the same
// thing in both places.
var EventSchema = schema.Object(map[string]schema.JSON{
	"feedback_id": schema.StringWithDesc("client-generated idempotency key"),
	"driver_id":   schema.Int(),
	"entity_type": schema.Enum(
		string(EntityDriver), string(EntityTrip), string(EntityApp), string(EntityMarshal),
	),
	"text":      schema.StringWithDesc("raw feedback text to score"),
	"timestamp": schema.JSON{Type: "string", Format: "date-time"},
}, "feedback_id", "driver_id", "entity_type", "text", "timestamp")

// Validate checks e against EventSchema. The schema validator marshals e
// through its json tags before checking fields, so Timestamp is compared
// as the RFC 3339 string it serializes to.
func (e Event) Validate() error {
	return EventSchema.Validate(e)
}
