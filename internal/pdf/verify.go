package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Verification is the outcome of checking a rendered document.
type Verification struct {
	Path    string `json:"path,omitempty"`
	Valid   bool   `json:"valid"`
	Pages   int    `json:"pages"`
	Size    int64  `json:"size"`
	Message string `json:"message,omitempty"`
}

// Verifier checks that generated files are readable PDFs.
type Verifier struct {
	maxFileSize int64
}

// NewVerifier creates a verifier rejecting files larger than maxFileSize bytes.
func NewVerifier(maxFileSize int64) *Verifier {
	return &Verifier{maxFileSize: maxFileSize}
}

// VerifyFile checks the PDF at path. Problems with the document are reported in
// the result; the error is only set when the file cannot be processed at all.
func (v *Verifier) VerifyFile(path string) (*Verification, error) {
	result := &Verification{Path: path}

	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Message = fmt.Sprintf("file does not exist: %s", path)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		result.Message = fmt.Sprintf("path is a directory, not a file: %s", path)
		return result, nil
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		result.Message = fmt.Sprintf("file is not a PDF: %s", path)
		return result, nil
	}
	if v.maxFileSize > 0 && info.Size() > v.maxFileSize {
		result.Size = info.Size()
		result.Message = fmt.Sprintf("file too large: %d bytes (max: %d bytes)", info.Size(), v.maxFileSize)
		return result, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	verified := v.VerifyBytes(data)
	verified.Path = path
	return verified, nil
}

// VerifyBytes validates data with pdfcpu and re-opens it with an independent
// reader to count pages.
func (v *Verifier) VerifyBytes(data []byte) *Verification {
	result := &Verification{Size: int64(len(data))}

	if len(data) == 0 {
		result.Message = "document is empty"
		return result
	}

	if err := api.Validate(bytes.NewReader(data), newConfiguration()); err != nil {
		result.Message = fmt.Sprintf("invalid PDF: %v", err)
		return result
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		result.Message = fmt.Sprintf("unreadable PDF: %v", err)
		return result
	}

	result.Pages = r.NumPage()
	result.Valid = true
	return result
}

// PageCount returns the number of pages reported by pdfcpu.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
