package metrics

import "github.com/kirillkom/invoice-agent/internal/core/domain"

func (m *Metrics) UpdateStateChanged(_ string, state domain.UpdateState) {
	m.updateStateTotal.WithLabelValues(m.service, string(state)).Inc()
	if state == domain.UpdateDownloading {
		m.updateDownloaded.Set(0)
		m.updateRatio.Set(0)
	}
}

func (m *Metrics) DownloadProgressed(_ string, progress domain.DownloadProgress) {
	m.updateDownloaded.Set(float64(progress.Downloaded))
	if progress.Total > 0 {
		m.updateRatio.Set(float64(progress.Downloaded) / float64(progress.Total))
	}
}

func (m *Metrics) DownloadFinished(_ string, progress domain.DownloadProgress) {
	m.updateBytesTotal.Add(float64(progress.Downloaded))
	m.updateLastSession.Set(float64(progress.Downloaded))
	m.updateDownloaded.Set(float64(progress.Downloaded))
	m.updateRatio.Set(1)
}
