// prometheus.go - Prometheus metrics exporter
package server

import (
	"fmt"
	"net/http"
	"strings"
)

// PrometheusExporter converts internal metrics to Prometheus text format
type PrometheusExporter struct{}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter() *PrometheusExporter {
	return &PrometheusExporter{}
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		snapshot := GetMetrics().Snapshot()

		var output strings.Builder

		counter := func(name, help string, value int64) {
			fmt.Fprintf(&output, "# HELP %s %s\n", name, help)
			fmt.Fprintf(&output, "# TYPE %s counter\n", name)
			fmt.Fprintf(&output, "%s %d\n\n", name, value)
		}
		gauge := func(name, help string, value float64) {
			fmt.Fprintf(&output, "# HELP %s %s\n", name, help)
			fmt.Fprintf(&output, "# TYPE %s gauge\n", name)
			fmt.Fprintf(&output, "%s %g\n\n", name, value)
		}

		counter("seo_uploads_total", "Total successful blob writes", snapshot.UploadsTotal)
		counter("seo_upload_bytes_total", "Total bytes written to the blob store", snapshot.UploadBytesTotal)
		counter("seo_upload_errors_total", "Total failed blob writes", snapshot.UploadErrorsTotal)
		gauge("seo_upload_avg_duration_ms", "Average blob write duration in milliseconds", snapshot.UploadAvgDurationMs)

		counter("seo_downloads_total", "Total successful blob reads", snapshot.DownloadsTotal)
		counter("seo_download_bytes_total", "Total bytes streamed from the blob store", snapshot.DownloadBytesTotal)
		counter("seo_download_errors_total", "Total failed blob reads", snapshot.DownloadErrorsTotal)
		gauge("seo_download_avg_duration_ms", "Average blob read duration in milliseconds", snapshot.DownloadAvgDurationMs)

		counter("seo_queries_total", "Total successful owner queries", snapshot.QueriesTotal)
		counter("seo_query_errors_total", "Total failed owner queries", snapshot.QueryErrorsTotal)

		counter("seo_backups_total", "Total blobs mirrored to object storage", snapshot.BackupsTotal)
		counter("seo_backup_errors_total", "Total failed blob mirror attempts", snapshot.BackupErrorsTotal)

		counter("seo_requests_total", "Total HTTP requests", snapshot.RequestsTotal)
		counter("seo_request_errors_4xx_total", "Total HTTP requests answered 4xx", snapshot.RequestErrors4xx)
		counter("seo_request_errors_5xx_total", "Total HTTP requests answered 5xx", snapshot.RequestErrors5xx)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(output.String()))
	}
}
