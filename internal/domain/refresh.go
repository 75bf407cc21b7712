package domain

import "time"

// RefreshEvent announces that new source files were downloaded.
type RefreshEvent struct {
	Commit       string    `json:"commit"`
	Files        []string  `json:"files"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// NewRefreshEvent stamps a refresh of files at commit with the current time.
func NewRefreshEvent(commit string, files []string) RefreshEvent {
	return RefreshEvent{Commit: commit, Files: files, DownloadedAt: clock.Now().UTC()}
}
