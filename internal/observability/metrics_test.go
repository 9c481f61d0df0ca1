package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMEND09/ID-Scanner/internal/decoder"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

func TestHandlerExposesApplicationMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Scanner.ObserveDetection(decoder.SourceManual, scan.KindNumeric, "accepted")
	m.Sheets.ObserveWrite("append_single", 1, nil, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `idscanner_detections_total{kind="numeric",outcome="accepted",source="manual"} 1`)
	assert.Contains(t, string(body), "idscanner_sheet_rows_written_total")
	assert.Contains(t, string(body), "go_goroutines")
	assert.NotNil(t, m.Registry())
}
