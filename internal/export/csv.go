package export

import (
	"encoding/csv"
	"io"

	"github.com/wasilisafish/proposal-builder/internal/domain"
)

// BOM is the UTF-8 byte order mark Excel needs to detect the encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes r as CSV prefixed with a BOM.
func WriteCSV(w io.Writer, r *domain.ExtractionResult) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Sheet(r)); err != nil {
		return err
	}
	return cw.Error()
}
