package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the scrape job ID issued by the dataset service
	FieldJobID = "job_id"

	// FieldDocumentID is the index document ID
	FieldDocumentID = "document_id"

	// FieldSourceURL is the profile URL being ingested
	FieldSourceURL = "source_url"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSource is the catalog source identifier
	FieldSource = "source"
)

// Metric fields, used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldAttempts is the number of poll attempts made for a job
	FieldAttempts = "attempts"
)
