// Package ingestion turns uploaded or mailed files into inline documents
// attached to applications.
package ingestion

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/fmuoria/cv-grader/internal/logging"
	"github.com/fmuoria/cv-grader/internal/models"
)

// DefaultMaxFileSize is the per-file upload limit
const DefaultMaxFileSize = 5 << 20

var (
	// ErrFileTooLarge is returned when an uploaded file exceeds the limit
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidDocument is returned for documents whose data URL cannot be decoded
	ErrInvalidDocument = errors.New("invalid document")
)

// extensionTypes maps the accepted extensions to their MIME types
var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// IsSupported reports whether fileName has an accepted extension
func IsSupported(fileName string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// FileHandler converts uploaded files into inline documents
type FileHandler struct {
	maxFileSize int64
	logger      *logging.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(maxFileSize int64, logger *logging.Logger) *FileHandler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileHandler{
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// MaxFileSize returns the per-file limit in bytes
func (fh *FileHandler) MaxFileSize() int64 {
	return fh.maxFileSize
}

// ReadDocument reads one file into an inline document
func (fh *FileHandler) ReadDocument(fileName string, content io.Reader) (models.Document, error) {
	fileName = filepath.Base(fileName)
	if !IsSupported(fileName) {
		return models.Document{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, fileName)
	}

	data, err := io.ReadAll(io.LimitReader(content, fh.maxFileSize+1))
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	if int64(len(data)) > fh.maxFileSize {
		return models.Document{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, fileName, fh.maxFileSize)
	}

	return models.Document{
		FileName:   fileName,
		InlineData: EncodeInline(DetectMIME(fileName, data), data),
		Size:       int64(len(data)),
	}, nil
}

// DocumentsFromMultipart reads every file posted under field. Files with an
// unsupported extension are skipped with a warning; oversized files fail
// the whole request.
func (fh *FileHandler) DocumentsFromMultipart(form *multipart.Form, field string) ([]models.Document, error) {
	docs := make([]models.Document, 0)
	if form == nil {
		return docs, nil
	}

	for _, header := range form.File[field] {
		if !IsSupported(header.Filename) {
			fh.logger.Warn("skipping unsupported upload", "file", header.Filename)
			continue
		}

		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
		}
		doc, err := fh.ReadDocument(header.Filename, f)
		f.Close()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// RebuildDocuments re-reads documents supplied as data URLs, applying the
// same extension, size and MIME rules as uploads. Size is recomputed.
func (fh *FileHandler) RebuildDocuments(docs []models.Document) ([]models.Document, error) {
	out := make([]models.Document, 0, len(docs))
	for _, doc := range docs {
		data, _, err := DecodeInline(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		rebuilt, err := fh.ReadDocument(doc.FileName, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		out = append(out, rebuilt)
	}
	return out, nil
}

// IsDocumentMIME reports whether mimeType is one of the accepted document types
func IsDocumentMIME(mimeType string) bool {
	for _, t := range extensionTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

// DetectMIME sniffs the content type. Anything other than an accepted
// document type (Word files sniff as zip or octet-stream, text may sniff
// as HTML) falls back to the type of the extension.
func DetectMIME(fileName string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if mediaType, _, err := mime.ParseMediaType(sniffed); err == nil {
		sniffed = mediaType
	}
	if IsDocumentMIME(sniffed) {
		return sniffed
	}

	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return t
	}
	return "application/octet-stream"
}

// EncodeInline builds a data URL
func EncodeInline(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeInline returns the bytes and MIME type of a document's data URL
func DecodeInline(doc models.Document) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(doc.InlineData, "data:")
	if !ok {
		return nil, "", fmt.Errorf("document %s is not a data URL", doc.FileName)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("document %s has a malformed data URL", doc.FileName)
	}

	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("document %s is not base64 encoded", doc.FileName)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode document %s: %w", doc.FileName, err)
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return data, mimeType, nil
}
