package logging

// Standardized attribute keys shared by every component so log consumers can
// filter without guessing at spellings.
const (
	FieldComponent  = "component"
	FieldJobID      = "job_id"
	FieldScheduleID = "schedule_id"
	FieldItemID     = "item_id"
	FieldTrigger    = "trigger"
	FieldStatus     = "status"
	FieldEventType  = "event_type"
	FieldErrorHint  = "error_hint"
)
