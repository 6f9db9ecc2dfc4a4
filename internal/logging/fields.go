package logging

// Standardized attribute keys used across logvault log records.
const (
	FieldComponent = "component"
	FieldSource    = "source"
	FieldDest      = "destination"
	FieldCycle     = "cycle"
	FieldOffset    = "offset"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
)
