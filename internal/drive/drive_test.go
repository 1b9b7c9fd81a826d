package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/procurement-engine/internal/repository/objectstore"
	"github.com/andresuchdata/procurement-engine/internal/storage"
)

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type fakeBrowser struct {
	files   map[string][]*File
	content map[string][]byte
	folders map[string]string
}

func (f *fakeBrowser) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	files, ok := f.files[folderID]
	if !ok {
		return nil, errors.New("unknown folder")
	}
	return files, nil
}

func (f *fakeBrowser) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	data, ok := f.content[fileID]
	if !ok {
		return errors.New("unknown file")
	}
	_, err := w.Write(data)
	return err
}

func (f *fakeBrowser) FindFolderByPath(ctx context.Context, path string) (string, error) {
	id, ok := f.folders[path]
	if !ok {
		return "", errors.New("folder not found: " + path)
	}
	return id, nil
}

func xlsxBytes(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newFake(t *testing.T) *fakeBrowser {
	return &fakeBrowser{
		files: map[string][]*File{
			"folder-1": {
				{ID: "f1", Name: "orders-north.csv"},
				{ID: "f2", Name: "orders-south.xlsx"},
				{ID: "f3", Name: "readme.pdf"},
			},
		},
		content: map[string][]byte{
			"f1": []byte("order_id,warehouse_code,sku_code,quantity,order_date\nO1,W1,S1,5,2024-03-15\n"),
			"f2": xlsxBytes(t, [][]any{
				{"order_id", "warehouse_code", "sku_code", "quantity", "order_date"},
				{"O2", "W2", "S1", 7, "2024-03-15"},
			}),
		},
		folders: map[string]string{"feeds/orders": "folder-1"},
	}
}

func TestConvertXLSXToCSV(t *testing.T) {
	data := xlsxBytes(t, [][]any{{"a", "b"}, {"1", "x,y"}})
	var out bytes.Buffer
	require.NoError(t, convertXLSXToCSV(bytes.NewReader(data), &out))
	assert.Equal(t, "a,b\n1,\"x,y\"\n", out.String())
}

func TestConvertXLSXToCSVRejectsGarbage(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, convertXLSXToCSV(bytes.NewReader([]byte("not a workbook")), &out))
}

func TestImportFolderFeedsTheOrderReader(t *testing.T) {
	store := storage.NewMemoryStorage()
	importer := NewImporter(newFake(t), store, "input")

	result, err := importer.ImportFolder(context.Background(), "folder-1", objectstore.FeedOrders, day)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"input/orders/2024-03-15/orders-north.csv",
		"input/orders/2024-03-15/orders-south.csv",
	}, result.Uploaded)
	assert.Equal(t, []string{"readme.pdf"}, result.Skipped)

	lines, err := objectstore.NewFeeds(store, "input").ListOrderLines(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "O2", lines[1].OrderID)
	assert.EqualValues(t, 7, lines[1].Quantity)
}

func TestImportFolderValidation(t *testing.T) {
	importer := NewImporter(newFake(t), storage.NewMemoryStorage(), "input")

	_, err := importer.ImportFolder(context.Background(), "folder-1", "invoices", day)
	assert.Error(t, err)

	_, err = importer.ImportFolder(context.Background(), "folder-1", objectstore.FeedStock, time.Time{})
	assert.Error(t, err)

	_, err = importer.ImportFolder(context.Background(), "missing", objectstore.FeedStock, day)
	assert.Error(t, err)
}

func TestHandlerImportByPath(t *testing.T) {
	fake := newFake(t)
	store := storage.NewMemoryStorage()
	router := mux.NewRouter()
	NewHandler(fake, NewImporter(fake, store, "input")).RegisterRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/api/drive/import?dataset=orders&date=2024-03-15&path=feeds/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result ImportResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Uploaded, 2)

	objects, err := store.ListObjects(context.Background(), "input/orders/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestHandlerImportBadRequests(t *testing.T) {
	fake := newFake(t)
	router := mux.NewRouter()
	NewHandler(fake, NewImporter(fake, storage.NewMemoryStorage(), "input")).RegisterRoutes(router)

	for _, target := range []string{
		"/api/drive/import?dataset=bogus&date=2024-03-15&folderId=folder-1",
		"/api/drive/import?dataset=orders&date=15-03-2024&folderId=folder-1",
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, target, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/drive/import?dataset=orders&date=2024-03-15&path=nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerListFiles(t *testing.T) {
	fake := newFake(t)
	router := mux.NewRouter()
	NewHandler(fake, nil).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/drive/files?folderId=folder-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var files []File
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	assert.Len(t, files, 3)
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, `Supplier\'s Orders`, escapeQuery("Supplier's Orders"))
	assert.Equal(t, `a\\b`, escapeQuery(`a\b`))
}
