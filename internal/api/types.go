package api

import "encoding/json"

// ProgressSnapshot is the shared processing-progress resource returned by
// GET /api/processing-progress. Absent optional members decode to their zero
// value; ProgressPercentage stays nil when the server omitted it.
type ProgressSnapshot struct {
	IsProcessing           bool     `json:"is_processing"`
	CurrentStep            string   `json:"current_step"`
	CurrentFile            string   `json:"current_file,omitempty"`
	ProgressPercentage     *float64 `json:"progress_percentage,omitempty"`
	ElapsedTimeFormatted   string   `json:"elapsed_time_formatted,omitempty"`
	RemainingTimeFormatted string   `json:"remaining_time_formatted,omitempty"`
	TotalTimeFormatted     string   `json:"total_time_formatted,omitempty"`
}

// ErrorBody is the undifferentiated error shape the backend returns with
// non-2xx statuses.
type ErrorBody struct {
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Text returns the first non-empty message in the body.
func (b ErrorBody) Text() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case b.Message != "":
		return b.Message
	default:
		return b.Error
	}
}

// StatusResponse is the minimal {success, message} envelope shared by most
// endpoints.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// UploadResponse answers POST /api/upload.
type UploadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Detail       string `json:"detail,omitempty"`
	FileID       string `json:"file_id,omitempty"`
	DetectedDate string `json:"detected_date,omitempty"`
	RowCount     *int   `json:"row_count,omitempty"`
}

// UploadedFile is one accepted entry of a batch upload.
type UploadedFile struct {
	Filename  string      `json:"filename"`
	Message   string      `json:"message,omitempty"`
	RowCount  int         `json:"row_count,omitempty"`
	DateRange *DateBounds `json:"date_range,omitempty"`
}

// FailedFile is one rejected entry of a batch upload.
type FailedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BatchUploadResponse answers POST /api/upload/batch.
type BatchUploadResponse struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	SuccessFiles     []UploadedFile `json:"success_files"`
	FailedFiles      []FailedFile   `json:"failed_files"`
	OverallDateRange *DateBounds    `json:"overall_date_range,omitempty"`
	FarmIDs          []string       `json:"farm_ids,omitempty"`
}

// FileInfo describes an uploaded file known to the backend.
type FileInfo struct {
	FileID       string `json:"file_id"`
	Filename     string `json:"filename"`
	UploadTime   string `json:"upload_time"`
	DetectedDate string `json:"detected_date,omitempty"`
	RowCount     *int   `json:"row_count,omitempty"`
}

// FilesResponse answers GET /api/files.
type FilesResponse struct {
	Success bool       `json:"success"`
	Files   []FileInfo `json:"files"`
}

// FarmIDsResponse answers GET /api/farm-ids.
type FarmIDsResponse struct {
	Success bool     `json:"success"`
	FarmIDs []string `json:"farm_ids"`
}

// DateBounds is a {min, max} pair of ISO dates. Some endpoints use
// start/end instead; both spellings decode.
type DateBounds struct {
	Min   string `json:"min,omitempty"`
	Max   string `json:"max,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Lower returns the earliest date regardless of spelling.
func (d DateBounds) Lower() string {
	if d.Min != "" {
		return d.Min
	}
	return d.Start
}

// Upper returns the latest date regardless of spelling.
func (d DateBounds) Upper() string {
	if d.Max != "" {
		return d.Max
	}
	return d.End
}

// NumberRange is a numeric {min, max} pair.
type NumberRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// DataStatistics answers GET /api/data-statistics.
type DataStatistics struct {
	Success      bool         `json:"success"`
	DateRange    *DateBounds  `json:"date_range,omitempty"`
	ProteinRange *NumberRange `json:"protein_range,omitempty"`
	ParityRange  *NumberRange `json:"parity_range,omitempty"`
	FarmIDs      []string     `json:"farm_ids,omitempty"`
}

// FilterDefinition is one server-declared filter.
type FilterDefinition struct {
	Field              string   `json:"field,omitempty"`
	Label              string   `json:"label,omitempty"`
	Enabled            bool     `json:"enabled"`
	Required           bool     `json:"required"`
	Min                *float64 `json:"min,omitempty"`
	Max                *float64 `json:"max,omitempty"`
	Allowed            []string `json:"allowed,omitempty"`
	DefaultStart       string   `json:"default_start,omitempty"`
	DefaultEnd         string   `json:"default_end,omitempty"`
	IncludeNullAsMatch bool     `json:"include_null_as_match,omitempty"`
}

// FiltersResponse answers GET /api/filters.
type FiltersResponse struct {
	Success bool                        `json:"success"`
	Filters map[string]FilterDefinition `json:"filters"`
}

// FilterRequest is the JSON body of POST /api/filter.
type FilterRequest struct {
	FileID  string          `json:"file_id"`
	Filters json.RawMessage `json:"filters"`
}

// CloseSignal is the body of POST /api/close-signal.
type CloseSignal struct {
	Action string `json:"action"`
}
