package http

import (
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"spendwise/internal/auth"
	"spendwise/internal/log"
	"spendwise/internal/receipt"
)

// multipartOverhead leaves room for part headers and boundaries.
const multipartOverhead = 64 << 10

// handleUploadReceipt reads the multipart "file" part and returns the
// fields guessed from it.
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	logger := log.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "A receipt file is required")
		return
	}
	defer file.Close()
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	contentType := header.Header.Get("Content-Type")
	if !receipt.Accepts(contentType) {
		writeError(w, http.StatusBadRequest, "File must be an image")
		return
	}
	if header.Size > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to read receipt upload", log.FieldUserID, u.ID, log.FieldError, err)
		writeError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	out, err := s.deps.Receipts.Process(r.Context(), u.ID, header.Filename, contentType, data)
	switch {
	case errors.Is(err, receipt.ErrNotImage):
		writeError(w, http.StatusBadRequest, "File must be an image")
		return
	case err != nil:
		atomic.AddInt64(&s.appMetrics.receiptsFailed, 1)
		writeError(w, http.StatusInternalServerError, "Error processing receipt")
		return
	}

	atomic.AddInt64(&s.appMetrics.receiptsProcessed, 1)
	writeJSON(w, http.StatusOK, out)
}
