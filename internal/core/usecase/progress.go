package usecase

import "github.com/kirillkom/invoice-agent/internal/core/domain"

// ProgressTracker accumulates downloaded bytes for exactly one update session.
// It is not safe for concurrent use and must never be shared between sessions.
type ProgressTracker struct {
	progress domain.DownloadProgress
	finished bool

	onProgress func(domain.DownloadProgress)
	onFinish   func(domain.DownloadProgress)
}

func NewProgressTracker(onProgress, onFinish func(domain.DownloadProgress)) *ProgressTracker {
	return &ProgressTracker{onProgress: onProgress, onFinish: onFinish}
}

// Chunk records one received chunk. total is the expected package size, or 0
// when unknown.
func (p *ProgressTracker) Chunk(chunkLen int, total int64) {
	if p.finished || chunkLen < 0 {
		return
	}
	p.progress.Downloaded += int64(chunkLen)
	if total > 0 {
		p.progress.Total = total
	}
	if p.onProgress != nil {
		p.onProgress(p.progress)
	}
}

// Finish fires the completion callback once; later calls and chunks are ignored.
func (p *ProgressTracker) Finish() {
	if p.finished {
		return
	}
	p.finished = true
	if p.progress.Total == 0 {
		p.progress.Total = p.progress.Downloaded
	}
	if p.onFinish != nil {
		p.onFinish(p.progress)
	}
}

func (p *ProgressTracker) Progress() domain.DownloadProgress {
	return p.progress
}
