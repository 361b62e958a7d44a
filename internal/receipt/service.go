package receipt

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/log"
	"spendwise/internal/ocr"
)

var (
	// ErrNotImage rejects uploads that are neither images nor PDFs.
	ErrNotImage = errors.New("file must be an image")
	// ErrProcessing wraps every OCR or decoding failure.
	ErrProcessing = errors.New("error processing receipt")
)

const pdfContentType = "application/pdf"

// Service extracts expense fields from uploaded receipts.
type Service struct {
	recognizer ocr.Recognizer
	archive    Archive
	timeout    time.Duration
	logger     *log.Logger
}

// NewService wires the receipt service. archive may be nil.
func NewService(recognizer ocr.Recognizer, archive Archive, timeout time.Duration, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		recognizer: recognizer,
		archive:    archive,
		timeout:    timeout,
		logger:     logger.WithComponent(log.ComponentReceipt),
	}
}

// Accepts reports whether an upload with this content type can be processed.
func Accepts(contentType string) bool {
	mt := mediaType(contentType)
	return strings.HasPrefix(mt, "image/") || mt == pdfContentType
}

// Process reads the text of the upload and extracts the expense fields.
// When an archive is configured the original is stored and its URL
// returned; archive failures are logged and do not fail the upload.
func (s *Service) Process(ctx context.Context, userID, filename, contentType string, data []byte) (Extraction, error) {
	if !Accepts(contentType) {
		return Extraction{}, ErrNotImage
	}

	text, err := s.readText(ctx, contentType, data)
	if err != nil {
		s.logger.ErrorContext(ctx, "Receipt text extraction failed",
			log.FieldUserID, userID,
			log.FieldError, err,
			"content_type", contentType,
			"size", len(data))
		return Extraction{}, fmt.Errorf("%w: %v", ErrProcessing, err)
	}

	out := Extract(text)
	if s.archive != nil {
		name := objectName(userID, filename, contentType)
		url, err := s.archive.Put(ctx, name, contentType, data)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to archive receipt", log.FieldUserID, userID, log.FieldError, err)
		} else {
			out.ReceiptURL = url
		}
	}

	s.logger.InfoContext(ctx, "Receipt processed",
		log.FieldUserID, userID,
		log.FieldCategory, out.Category,
		"amount_found", out.Amount != nil,
		"merchant_found", out.Merchant != nil)
	return out, nil
}

func (s *Service) readText(ctx context.Context, contentType string, data []byte) (string, error) {
	if mediaType(contentType) == pdfContentType {
		return ocr.PDFText(data)
	}
	if s.recognizer == nil {
		return "", errors.New("no OCR recognizer configured")
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.recognizer.Recognize(ctx, data)
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func objectName(userID, filename, contentType string) string {
	ext := path.Ext(filename)
	if ext == "" {
		if exts, _ := mime.ExtensionsByType(mediaType(contentType)); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("receipts/%s/%s%s", userID, uuid.NewString(), strings.ToLower(ext))
}
