package dto

// ResendResponse lists the fresh pending logs queued by a resend, and the
// errored logs retired without a new ticket because their item was voided.
type ResendResponse struct {
	Logs    []PrintLogResponse `json:"logs"`
	Retired []PrintLogResponse `json:"retired"`
}

// DLQEntryResponse mirrors a dead-lettered dispatch job.
type DLQEntryResponse struct {
	OriginalQueue string `json:"original_queue"`
	JobType       string `json:"job_type"`
	Payload       string `json:"payload"`
	Reason        string `json:"reason"`
	FailedAt      string `json:"failed_at"`
	Attempts      int    `json:"attempts"`
}
