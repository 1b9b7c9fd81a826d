package drive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository/objectstore"
	"github.com/andresuchdata/procurement-engine/internal/storage"
)

// Datasets that can be imported, named after the feed folders the engine reads.
var Datasets = []string{objectstore.FeedOrders, objectstore.FeedStock, objectstore.FeedSnapshots}

func validDataset(name string) bool {
	for _, d := range Datasets {
		if d == name {
			return true
		}
	}
	return false
}

// ImportResult lists what one folder import uploaded and skipped.
type ImportResult struct {
	Dataset      string   `json:"dataset"`
	BusinessDate string   `json:"business_date"`
	Uploaded     []string `json:"uploaded"`
	Skipped      []string `json:"skipped"`
}

// Importer copies CSV and XLSX files from a Drive folder into the input feed
// layout of object storage. XLSX files are stored as CSV.
type Importer struct {
	source FileSource
	store  storage.ObjectStorage
	prefix string
}

func NewImporter(source FileSource, store storage.ObjectStorage, inputPrefix string) *Importer {
	return &Importer{source: source, store: store, prefix: inputPrefix}
}

// ImportFolder uploads every supported file of folderID to
// <prefix>/<dataset>/<YYYY-MM-DD>/<name>.csv. Reimporting overwrites.
func (i *Importer) ImportFolder(ctx context.Context, folderID, dataset string, businessDate time.Time) (*ImportResult, error) {
	if !validDataset(dataset) {
		return nil, fmt.Errorf("unknown dataset %q, expected one of %s", dataset, strings.Join(Datasets, ", "))
	}
	date := domain.TruncateDate(businessDate)
	if date.IsZero() {
		return nil, fmt.Errorf("business date is required")
	}

	files, err := i.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		Dataset:      dataset,
		BusinessDate: date.Format(domain.DateLayout),
		Uploaded:     []string{},
		Skipped:      []string{},
	}
	dest := objectstore.FeedPrefix(i.prefix, dataset, date)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(path.Ext(f.Name))
		if ext != ".csv" && ext != ".xlsx" {
			result.Skipped = append(result.Skipped, f.Name)
			continue
		}

		var raw bytes.Buffer
		if err := i.source.DownloadFile(ctx, f.ID, &raw); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}

		data := raw.Bytes()
		if ext == ".xlsx" {
			var converted bytes.Buffer
			if err := convertXLSXToCSV(&raw, &converted); err != nil {
				return nil, fmt.Errorf("failed to convert %s to csv: %w", f.Name, err)
			}
			data = converted.Bytes()
		}

		key := dest + strings.TrimSuffix(path.Base(f.Name), path.Ext(f.Name)) + ".csv"
		if err := i.store.UploadObject(ctx, key, data); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", key, err)
		}
		result.Uploaded = append(result.Uploaded, key)
	}

	log.Info().
		Str("dataset", dataset).
		Str("business_date", result.BusinessDate).
		Int("uploaded", len(result.Uploaded)).
		Int("skipped", len(result.Skipped)).
		Msg("drive folder imported")
	return result, nil
}
