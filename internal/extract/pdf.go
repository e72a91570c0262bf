// Package extract pulls raw text out of source files ahead of chunking.
package extract

import (
	"os"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"ragbot/internal/domain"
)

// SetLicenseKey registers the UniDoc metered key. Must be called once
// before any PDF is opened; without it unipdf refuses to extract.
func SetLicenseKey(key string) error {
	if key == "" {
		return nil
	}
	return license.SetMeteredKey(key)
}

// PDFText extracts text from every page of the PDF at path, pages joined
// by newlines. Failures are wrapped as ExtractionError so the ingestion
// run can skip the file and continue.
func PDFText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
