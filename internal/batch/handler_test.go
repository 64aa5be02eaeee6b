package batch

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applelectricals/microjpeg/internal/database"
	"github.com/applelectricals/microjpeg/internal/progress"
	"github.com/applelectricals/microjpeg/internal/queue"
	"github.com/applelectricals/microjpeg/internal/transcode"
	"github.com/applelectricals/microjpeg/internal/utils"
)

// multipartBody builds a multipart request body with the given form values
// and the given number of dummy image files under the "files" field.
func multipartBody(t *testing.T, fields map[string]string, fileCount int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for i := 0; i < fileCount; i++ {
		part, err := writer.CreateFormFile("files", fmt.Sprintf("photo-%d.png", i))
		require.NoError(t, err)
		_, err = part.Write([]byte("not a real png"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name          string
		fields        map[string]string
		fileCount     int
		expectedError string
	}{
		{
			name:          "no files uploaded",
			fileCount:     0,
			expectedError: "no files uploaded",
		},
		{
			name:          "too many files",
			fileCount:     MaxBatchFiles + 1,
			expectedError: fmt.Sprintf("too many files, max is %d", MaxBatchFiles),
		},
		{
			name:          "unknown output format",
			fields:        map[string]string{"output_format": "pdf"},
			fileCount:     1,
			expectedError: "unsupported output format",
		},
		{
			name:          "decode-only output format",
			fields:        map[string]string{"output_format": "webp"},
			fileCount:     1,
			expectedError: "output format webp is not supported",
		},
		{
			name:          "quality not a number",
			fields:        map[string]string{"quality": "high"},
			fileCount:     1,
			expectedError: "quality must be between 1 and 100",
		},
		{
			name:          "quality out of range",
			fields:        map[string]string{"quality": "101"},
			fileCount:     1,
			expectedError: "quality must be between 1 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New(validator.WithRequiredStructEnabled())
			cfg := &utils.Config{
				UploadDir: t.TempDir(),
				OutputDir: t.TempDir(),
			}
			// Every rejection under test happens before the queue or the
			// database is touched, so those stay nil.
			handler := NewHandler(v, nil, nil, progress.NewMemoryTracker(), nil, cfg)

			body, contentType := multipartBody(t, tt.fields, tt.fileCount)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", body)
			req.Header.Set(echo.HeaderContentType, contentType)
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(req, rec)
			c.Set("userID", uuid.New())
			c.Set("userTier", "free")

			err := handler.Create(c)
			assert.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var errorResponse utils.ErrorResponse
			err = json.Unmarshal(rec.Body.Bytes(), &errorResponse)
			assert.NoError(t, err)
			assert.Contains(t, errorResponse.Message, tt.expectedError)
		})
	}
}

func TestStateFromRecord(t *testing.T) {
	tests := []struct {
		status     string
		queueState queue.State
		want       queue.State
	}{
		{"completed", queue.StateWaiting, queue.StateCompleted},
		{"completed_with_errors", queue.StateWaiting, queue.StateCompleted},
		{"failed", queue.StateWaiting, queue.StateFailed},
		{"cancelled", queue.StateWaiting, queue.StateFailed},
		{"processing", queue.StateWaiting, queue.StateActive},
		{"queued", queue.StateWaiting, queue.StateWaiting},
		{"queued", queue.StateActive, queue.StateActive},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, stateFromRecord(tt.status, tt.queueState))
		})
	}
}

func TestFileResultsFromRows(t *testing.T) {
	batchID := uuid.New()
	rows := []database.BatchFile{
		{
			BatchID:          batchID,
			FileID:           "file-0",
			FileName:         "a.png",
			Status:           "success",
			OriginalSize:     sql.NullInt64{Int64: 1000, Valid: true},
			CompressedSize:   sql.NullInt64{Int64: 300, Valid: true},
			CompressionRatio: sql.NullFloat64{Float64: 70, Valid: true},
			ProcessingTime:   sql.NullFloat64{Float64: 1.2, Valid: true},
			DownloadUrl:      sql.NullString{String: "https://cdn.test/a.jpg", Valid: true},
			Position:         0,
		},
		{
			BatchID:  batchID,
			FileID:   "file-1",
			FileName: "b.png",
			Status:   "failed",
			Error:    sql.NullString{String: "decode image: unexpected EOF", Valid: true},
			Position: 1,
		},
	}

	results := fileResultsFromRows(rows)
	assert.Len(t, results, 2)

	assert.Equal(t, progress.StatusSuccess, results[0].Status)
	assert.Equal(t, int64(1000), results[0].OriginalSize)
	assert.Equal(t, int64(300), results[0].CompressedSize)
	assert.Equal(t, float64(70), results[0].CompressionRatio)
	assert.Equal(t, "https://cdn.test/a.jpg", results[0].DownloadURL)
	assert.Empty(t, results[0].Error)

	assert.Equal(t, progress.StatusFailed, results[1].Status)
	assert.Equal(t, "decode image: unexpected EOF", results[1].Error)
	assert.Empty(t, results[1].DownloadURL)
}

func TestOutputFileName(t *testing.T) {
	tests := []struct {
		in     string
		format string
		want   string
	}{
		{"photo.png", "jpeg", "photo.jpg"},
		{"photo.PNG", "jpeg", "photo.jpg"},
		{"archive.tar.gz", "png", "archive.tar.png"},
		{"noext", "jpeg", "noext.jpg"},
		{".hidden", "png", ".hidden.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			format, err := transcode.ParseFormat(tt.format)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, outputFileName(tt.in, format))
		})
	}
}
