package ingestion

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fmuoria/cv-grader/internal/models"
)

const (
	// MinExtractedTextLength is the minimum text length required for successful extraction
	MinExtractedTextLength = 50
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
	// MaxDOCXBodySize caps the decompressed size of word/document.xml
	MaxDOCXBodySize = 32 << 20
)

// ErrUnsupportedFile is returned for documents whose type cannot be read
var ErrUnsupportedFile = errors.New("unsupported file type")

// ExtractText returns the plain text of an inline document
func ExtractText(doc models.Document) (string, error) {
	data, _, err := DecodeInline(doc)
	if err != nil {
		return "", err
	}
	return ExtractBytes(doc.FileName, data)
}

// ExtractBytes extracts text from the content of a PDF, DOCX, DOC or TXT file
func ExtractBytes(fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))

	switch ext {
	case ".txt":
		text := string(data)
		if IsBinaryData(text) {
			return "", fmt.Errorf("text file %s contains binary data", fileName)
		}
		return text, nil
	case ".pdf":
		return withTempFile(ext, data, extractPDF)
	case ".doc":
		return withTempFile(ext, data, extractDOC)
	case ".docx":
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}
}

// withTempFile writes data to a temporary file for the command line extractors
func withTempFile(ext string, data []byte, fn func(path string) (string, error)) (string, error) {
	f, err := os.CreateTemp("", "cv-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return fn(f.Name())
}

// extractPDF extracts text from PDF using pdftotext (poppler-utils)
func extractPDF(filePath string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", filePath, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("PDF extraction requires 'pdftotext' (install poppler-utils): %w", err)
	}

	text := string(output)
	if len(strings.TrimSpace(text)) < MinExtractedTextLength {
		return "", fmt.Errorf("extracted text is too short (likely a scanned PDF)")
	}

	return text, nil
}

// extractDOC extracts text from legacy Word files using antiword
func extractDOC(filePath string) (string, error) {
	cmd := exec.Command("antiword", filePath)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("DOC extraction requires 'antiword': %w", err)
	}
	return string(output), nil
}

// extractDOCX reads the text runs of word/document.xml
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		if f.UncompressedSize64 > MaxDOCXBodySize {
			return "", fmt.Errorf("DOCX body exceeds %d bytes", MaxDOCXBodySize)
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open DOCX body: %w", err)
		}
		defer rc.Close()

		// the header size can lie; bound the stream as well
		body, err := io.ReadAll(io.LimitReader(rc, MaxDOCXBodySize+1))
		if err != nil {
			return "", fmt.Errorf("failed to read DOCX body: %w", err)
		}
		if len(body) > MaxDOCXBodySize {
			return "", fmt.Errorf("DOCX body exceeds %d bytes", MaxDOCXBodySize)
		}
		return docxText(bytes.NewReader(body))
	}

	return "", fmt.Errorf("DOCX archive has no word/document.xml")
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse DOCX body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// ZIP magic number (DOCX files)
	if len(content) >= 2 && content[:2] == "PK" {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
