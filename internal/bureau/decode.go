package bureau

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"log/slog"
	"strings"

	"github.com/algolend/kestrel/internal/domain"
)

// ReportAssets holds the files extracted from a bureau payload. The XML
// report is mandatory; the rendered PDF ships alongside it when the
// gateway produced one.
type ReportAssets struct {
	XML     []byte
	XMLName string
	PDF     []byte
	PDFName string
}

// DecodeReportAssets unpacks a retdata payload: base64 text wrapping a
// ZIP archive. The first .xml entry and first .pdf entry win; extra
// entries are logged and skipped.
func DecodeReportAssets(payload string, logger *slog.Logger) (*ReportAssets, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, &domain.DecodeError{Step: "base64", Err: err}
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &domain.DecodeError{Step: "zip", Err: err}
	}

	assets := &ReportAssets{}
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		switch {
		case strings.HasSuffix(name, ".xml") && assets.XML == nil:
			data, err := readZipEntry(f)
			if err != nil {
				return nil, &domain.DecodeError{Step: "zip entry " + f.Name, Err: err}
			}
			assets.XML = data
			assets.XMLName = f.Name
		case strings.HasSuffix(name, ".pdf") && assets.PDF == nil:
			data, err := readZipEntry(f)
			if err != nil {
				return nil, &domain.DecodeError{Step: "zip entry " + f.Name, Err: err}
			}
			assets.PDF = data
			assets.PDFName = f.Name
		default:
			logger.Debug("skipping extra archive entry", "name", f.Name)
		}
	}

	if assets.XML == nil {
		return nil, &domain.MissingAssetError{Asset: "xml report"}
	}
	return assets, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
