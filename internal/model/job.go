package model

// ExportJob is one (sheet, format) unit of work within a batch.
type ExportJob struct {
	JobID       string `json:"job_id"`
	Index       int    `json:"index"`
	SheetID     string `json:"sheet_id"`
	SheetNumber string `json:"sheet_number"`
	SheetName   string `json:"sheet_name,omitempty"`
	Format      string `json:"format"`
	BaseName    string `json:"base_name"`
	OutputDir   string `json:"output_dir"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	FinalPath   string `json:"final_path,omitempty"`
	Diagnostic  string `json:"diagnostic,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	FinishedAt  string `json:"finished_at,omitempty"`
}

func (j ExportJob) Succeeded() bool {
	return j.Status == StatusRenamed
}

func (j ExportJob) Label() string {
	return Sheet{Number: j.SheetNumber, Name: j.SheetName}.Label()
}

// ExportResult is the aggregate outcome of one batch invocation.
type ExportResult struct {
	BatchID      string      `json:"batch_id"`
	Profile      string      `json:"profile"`
	TotalSheets  int         `json:"total_sheets"`
	TotalFormats int         `json:"total_formats"`
	Jobs         []ExportJob `json:"jobs"`
	Succeeded    int         `json:"succeeded"`
	Failed       int         `json:"failed"`
	Cancelled    int         `json:"cancelled"`
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	StartedAt    string      `json:"started_at"`
	FinishedAt   string      `json:"finished_at"`
}

// BatchManifest is the checkpoint file rewritten after every job.
type BatchManifest struct {
	SchemaVersion int         `json:"schema_version"`
	GeneratedAt   string      `json:"generated_at"`
	BatchID       string      `json:"batch_id"`
	Profile       string      `json:"profile"`
	OutputDir     string      `json:"output_dir"`
	Formats       FormatSet   `json:"formats"`
	Total         int         `json:"total"`
	Pending       int         `json:"pending"`
	Running       int         `json:"running"`
	Renamed       int         `json:"renamed"`
	NotFound      int         `json:"not_found"`
	Failed        int         `json:"failed"`
	Cancelled     int         `json:"cancelled"`
	Jobs          []ExportJob `json:"jobs"`
}

func (m *BatchManifest) Recount() {
	m.Total = len(m.Jobs)
	m.Pending, m.Running, m.Renamed, m.NotFound, m.Failed, m.Cancelled = 0, 0, 0, 0, 0, 0
	for _, j := range m.Jobs {
		switch j.Status {
		case StatusPending:
			m.Pending++
		case StatusPreSnapshot, StatusHostWriteInvoked, StatusPostSnapshotDiff:
			m.Running++
		case StatusRenamed:
			m.Renamed++
		case StatusNotFound:
			m.NotFound++
		case StatusFailed:
			m.Failed++
		case StatusCancelled:
			m.Cancelled++
		}
	}
}
