package server

import (
	"sync"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Download metrics
	downloadsTotal        int64
	downloadBytesTotal    int64
	downloadErrorsTotal   int64
	downloadDurationTotal time.Duration

	// Owner query metrics
	queriesTotal     int64
	queryErrorsTotal int64

	// Backup mirror metrics
	backupsTotal      int64
	backupErrorsTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordUpload records a successful blob write
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records a failed blob write
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordDownload records a successful blob read
func (m *Metrics) RecordDownload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
	m.downloadDurationTotal += duration
}

// RecordDownloadError records a failed blob read
func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

// RecordQuery records a successful owner query
func (m *Metrics) RecordQuery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queriesTotal++
}

// RecordQueryError records a failed owner query
func (m *Metrics) RecordQueryError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErrorsTotal++
}

// RecordBackup records one blob mirror attempt
func (m *Metrics) RecordBackup(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.backupsTotal++
	} else {
		m.backupErrorsTotal++
	}
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:          m.uploadsTotal,
		UploadBytesTotal:      m.uploadBytesTotal,
		UploadErrorsTotal:     m.uploadErrorsTotal,
		UploadAvgDurationMs:   avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		DownloadsTotal:        m.downloadsTotal,
		DownloadBytesTotal:    m.downloadBytesTotal,
		DownloadErrorsTotal:   m.downloadErrorsTotal,
		DownloadAvgDurationMs: avgDuration(m.downloadDurationTotal, m.downloadsTotal),
		QueriesTotal:          m.queriesTotal,
		QueryErrorsTotal:      m.queryErrorsTotal,
		BackupsTotal:          m.backupsTotal,
		BackupErrorsTotal:     m.backupErrorsTotal,
		RequestsTotal:         m.requestsTotal,
		RequestErrors5xx:      m.requestErrors5xx,
		RequestErrors4xx:      m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	// Upload metrics
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	// Download metrics
	DownloadsTotal        int64   `json:"downloads_total"`
	DownloadBytesTotal    int64   `json:"download_bytes_total"`
	DownloadErrorsTotal   int64   `json:"download_errors_total"`
	DownloadAvgDurationMs float64 `json:"download_avg_duration_ms"`

	// Owner query metrics
	QueriesTotal     int64 `json:"queries_total"`
	QueryErrorsTotal int64 `json:"query_errors_total"`

	// Backup mirror metrics
	BackupsTotal      int64 `json:"backups_total"`
	BackupErrorsTotal int64 `json:"backup_errors_total"`

	// System metrics
	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
