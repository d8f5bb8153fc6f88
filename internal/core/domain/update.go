package domain

import "time"

type UpdateState string

const (
	UpdateIdle           UpdateState = "idle"
	UpdateChecking       UpdateState = "checking"
	UpdateNone           UpdateState = "no_update"
	UpdateAvailable      UpdateState = "update_available"
	UpdateDownloading    UpdateState = "downloading"
	UpdateInstalling     UpdateState = "installing"
	UpdateRestartPending UpdateState = "restart_pending"
	UpdateFailed         UpdateState = "failed"
)

type UpdateManifest struct {
	Version     string    `json:"version"`
	URL         string    `json:"url"`
	Size        int64     `json:"size,omitempty"`
	SHA256      string    `json:"sha256,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	PublishedAt time.Time `json:"pub_date,omitempty"`
}

type DownloadProgress struct {
	Downloaded int64 `json:"downloaded"`
	// Total is zero when the server did not announce a length.
	Total int64 `json:"total"`
}

type UpdateOutcome struct {
	SessionID string      `json:"session_id"`
	State     UpdateState `json:"state"`
	Version   string      `json:"version,omitempty"`
}
