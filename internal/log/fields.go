package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldCategoryID    = "category_id"
	FieldAccountID     = "account_id"
	FieldAccountCode   = "account_code"
	FieldTransactionID = "transaction_id"
	FieldStartDate     = "start_date"
	FieldEndDate       = "end_date"
	FieldSheetsRef     = "sheets_ref"
	FieldVersion       = "version"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentHTTP   = "http"
	ComponentWorker = "worker"
)

// Operations defines standard operation names
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpSync   = "sync"
	OpExport = "export"
)
