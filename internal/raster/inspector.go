package raster

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Inspector checks a PDF's structure and reports its page count without rendering it.
type Inspector interface {
	PageCount(pdf []byte) (int, error)
}

// PDFCPUInspector reads PDFs with pdfcpu in relaxed validation mode.
type PDFCPUInspector struct {
	conf *model.Configuration
}

// NewPDFCPUInspector creates an Inspector backed by pdfcpu.
func NewPDFCPUInspector() *PDFCPUInspector {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCPUInspector{conf: conf}
}

func (i *PDFCPUInspector) PageCount(pdf []byte) (int, error) {
	if len(pdf) == 0 {
		return 0, fmt.Errorf("empty pdf")
	}
	n, err := api.PageCount(bytes.NewReader(pdf), i.conf)
	if err != nil {
		return 0, fmt.Errorf("reading pdf: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}
