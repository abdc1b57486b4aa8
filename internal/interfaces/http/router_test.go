package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/inventario-ledger/internal/application/reconciliation"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/ledger"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/spreadsheet"
	apphttp "github.com/jhoicas/inventario-ledger/internal/interfaces/http"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func movement(ref string, kind entity.SourceKind, item string, ts time.Time, in, out string) entity.Movement {
	return entity.Movement{
		ID: "m-" + ref, Timestamp: ts, SourceKind: kind, ReferenceType: string(kind), ReferenceID: ref,
		QuantityIn: dec(in), QuantityOut: dec(out), ItemVariantID: item, LocationID: "loc-1", BusinessID: testBusinessID,
	}
}

// newAPI arma la API completa sobre el almacenamiento en memoria.
// var-1@loc-1: kardex 5 (+10 -3 -2). var-2@loc-1: kardex 100.
func newAPI(t *testing.T) (*fiber.App, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddLocation(entity.Location{ID: "loc-1", BusinessID: testBusinessID, Name: "Bodega Central"})
	store.AddItemVariant(entity.ItemVariant{ID: "var-1", BusinessID: testBusinessID, Code: "SKU-1", Name: "Camisa", UnitCost: dec("10")})
	store.AddItemVariant(entity.ItemVariant{ID: "var-2", BusinessID: testBusinessID, Code: "SKU-2", Name: "Pantalón", UnitCost: dec("10")})
	store.AddEvent("approved", movement("r-1", entity.SourceReceiving, "var-1", t0, "10", "0"))
	store.AddEvent("posted", movement("s-1", entity.SourceSelling, "var-1", t0.Add(time.Hour), "0", "3"))
	store.AddEvent("sent", movement("t-1", entity.SourceTransferOut, "var-1", t0.Add(2*time.Hour), "0", "2"))
	store.AddEvent("approved", movement("r-2", entity.SourceReceiving, "var-2", t0, "100", "0"))
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-1", LocationID: "loc-1", BusinessID: testBusinessID, QuantityAvailable: dec("5")})
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-2", LocationID: "loc-1", BusinessID: testBusinessID, QuantityAvailable: dec("100")})

	log := zerolog.Nop()
	ledgerUC, err := reconciliation.NewLedgerUseCase(log, store.Sources()...)
	require.NoError(t, err)
	variances := reconciliation.NewVarianceUseCase(ledgerUC, store.Balances(), store.Catalog(), ledger.DefaultPolicy(), log)
	guard := reconciliation.NewIdempotencyGuard(memory.NewIdempotencyStore(), time.Hour, time.Minute)
	corrections := reconciliation.NewCorrectionUseCase(memory.NewTxRunner(store), store.Balances(), store.Catalog(), variances, guard,
		memory.NewLocker(), reconciliation.CorrectionConfig{BulkTimeout: time.Minute, SingleTimeout: 10 * time.Second, BatchLockTTL: time.Minute}, log)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AppName:        "inventario-ledger-test",
		Ledger:         ledgerUC,
		Variances:      variances,
		Corrections:    corrections,
		PhysicalCounts: reconciliation.NewPhysicalCountUseCase(spreadsheet.NewExcelReader(), store.Catalog(), corrections, log),
		Reports:        reconciliation.NewReportUseCase(variances, store.Catalog(), pdf.NewVarianceReportGenerator()),
		JWTSecret:      testJWTSecret,
	})
	return app, store
}

func call(t *testing.T, app *fiber.App, method, path, role string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenForRole(t, role))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m), string(raw))
	return m
}

func manualBody(target string) map[string]any {
	return map[string]any{
		"source": "manual",
		"requests": []map[string]any{{
			"item_variant_id": "var-1", "location_id": "loc-1", "target_quantity": target, "reason": "conteo",
		}},
	}
}

func TestHealth(t *testing.T) {
	app, _ := newAPI(t)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetLedger(t *testing.T) {
	app, _ := newAPI(t)
	resp, raw := call(t, app, http.MethodGet, "/api/ledger?item_variant_id=var-1&location_id=loc-1", "auditor", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body := decode(t, raw)
	assert.Equal(t, "5", body["balance"])
	assert.EqualValues(t, 3, body["total"])
	entries := body["entries"].([]any)
	assert.Equal(t, "transfer_out", entries[0].(map[string]any)["source_kind"])
}

func TestGetLedger_VentanaYParametros(t *testing.T) {
	app, _ := newAPI(t)

	resp, raw := call(t, app, http.MethodGet, "/api/ledger?item_variant_id=var-1&location_id=loc-1&to=2024-03-01T09:30:00Z", "auditor", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10", decode(t, raw)["balance"])

	resp, _ = call(t, app, http.MethodGet, "/api/ledger?item_variant_id=var-1", "auditor", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/ledger?item_variant_id=var-1&location_id=loc-1&from=ayer", "auditor", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetLedger_FuenteCaida_Retorna503(t *testing.T) {
	app, store := newAPI(t)
	store.FailSource(entity.SourceSelling, errors.New("réplica caída"))

	resp, raw := call(t, app, http.MethodGet, "/api/ledger?item_variant_id=var-1&location_id=loc-1", "auditor", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "LEDGER_UNAVAILABLE", decode(t, raw)["code"])
}

func TestGetVariance_ErrorInternoNoExponeDetalle(t *testing.T) {
	app, store := newAPI(t)
	store.FailOn("catalog.items", errors.New(`pq: relation "item_variants" does not exist`))

	resp, raw := call(t, app, http.MethodGet, "/api/variances?item_variant_id=var-1&location_id=loc-1", "auditor", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode(t, raw)
	assert.Equal(t, "INTERNAL", body["code"])
	assert.NotContains(t, string(raw), "item_variants")
	assert.NotContains(t, string(raw), "pq:")
}

func TestGetVariance(t *testing.T) {
	app, store := newAPI(t)
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-1", LocationID: "loc-1", BusinessID: testBusinessID, QuantityAvailable: dec("8")})

	resp, raw := call(t, app, http.MethodGet, "/api/variances?item_variant_id=var-1&location_id=loc-1", "auditor", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body := decode(t, raw)
	assert.Equal(t, "8", body["system_balance"])
	assert.Equal(t, "5", body["ledger_balance"])
	assert.NotEqual(t, "match", body["variance_type"])

	resp, _ = call(t, app, http.MethodGet, "/api/variances?item_variant_id=nope&location_id=loc-1", "auditor", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScanLocationYReporte(t *testing.T) {
	app, store := newAPI(t)
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-2", LocationID: "loc-1", BusinessID: testBusinessID, QuantityAvailable: dec("90")})

	resp, raw := call(t, app, http.MethodGet, "/api/locations/loc-1/variances", "auditor", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	scan := decode(t, raw)
	assert.EqualValues(t, 2, scan["total"])
	first := scan["variances"].([]any)[0].(map[string]any)
	assert.Equal(t, "var-2", first["item_variant_id"])
	assert.Equal(t, "-10", first["variance"])

	resp, raw = call(t, app, http.MethodGet, "/api/locations/loc-1/variances/report.pdf", "auditor", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
}

func TestApplyCorrection_IdempotenteYReintento(t *testing.T) {
	app, store := newAPI(t)
	headers := map[string]string{apphttp.HeaderIdempotencyKey: "tok-1"}

	resp, raw := call(t, app, http.MethodPost, "/api/corrections", "bodeguero", manualBody("7"), headers)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	first := decode(t, raw)
	assert.EqualValues(t, 1, first["applied_count"])
	assert.Equal(t, false, first["replayed"])
	assert.True(t, store.Quantity(entity.StockKey{ItemVariantID: "var-1", LocationID: "loc-1"}).Equal(dec("7")))

	resp, raw = call(t, app, http.MethodPost, "/api/corrections", "bodeguero", manualBody("7"), headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, raw)["replayed"])
	assert.Len(t, store.Movements(), 1)

	resp, raw = call(t, app, http.MethodPost, "/api/corrections", "bodeguero", manualBody("9"), headers)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "IDEMPOTENCY_MISMATCH", decode(t, raw)["code"])
}

func TestApplyCorrection_SinLlave_Retorna422(t *testing.T) {
	app, store := newAPI(t)

	resp, raw := call(t, app, http.MethodPost, "/api/corrections", "admin", manualBody("7"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, decode(t, raw)["rows"])
	assert.Empty(t, store.Movements())
}

func TestApplyCorrection_FilasInvalidas(t *testing.T) {
	app, store := newAPI(t)
	body := map[string]any{
		"source": "manual",
		"requests": []map[string]any{
			{"row": "A", "item_variant_id": "var-1", "location_id": "loc-1", "target_quantity": "-1", "reason": "x"},
			{"row": "B", "item_variant_id": "var-2", "location_id": "loc-1", "target_quantity": "3", "reason": ""},
		},
	}

	resp, raw := call(t, app, http.MethodPost, "/api/corrections", "admin", body, map[string]string{apphttp.HeaderIdempotencyKey: "tok-2"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	rows := decode(t, raw)["rows"].([]any)
	assert.Len(t, rows, 2)
	assert.Empty(t, store.Movements())
}

func TestApplyCorrection_AuditorNoEscribe(t *testing.T) {
	app, _ := newAPI(t)

	resp, _ := call(t, app, http.MethodPost, "/api/corrections", "auditor", manualBody("7"), map[string]string{apphttp.HeaderIdempotencyKey: "tok-3"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw := call(t, app, http.MethodPost, "/api/corrections/preview", "auditor", manualBody("7"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, true, decode(t, raw)["preview"])
}

func TestAutoFix_VarianzaGrande_Retorna409(t *testing.T) {
	app, store := newAPI(t)
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-2", LocationID: "loc-1", BusinessID: testBusinessID, QuantityAvailable: dec("200")})
	body := map[string]any{"keys": []map[string]string{{"item_variant_id": "var-2", "location_id": "loc-1"}}}

	resp, raw := call(t, app, http.MethodPost, "/api/corrections/auto-fix", "admin", body, map[string]string{apphttp.HeaderIdempotencyKey: "fix-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "POLICY_VIOLATION", decode(t, raw)["code"])
	assert.True(t, store.Quantity(entity.StockKey{ItemVariantID: "var-2", LocationID: "loc-1"}).Equal(dec("200")))
}

func TestAutoFix_VarianzaPequena(t *testing.T) {
	app, store := newAPI(t)
	store.SetBalance(entity.BalanceRecord{ItemVariantID: "var-2", LocationID: "loc-1", BusinessID: testBusinessID, QuantityAvailable: dec("102")})
	body := map[string]any{"keys": []map[string]string{{"item_variant_id": "var-2", "location_id": "loc-1"}}}

	resp, raw := call(t, app, http.MethodPost, "/api/corrections/auto-fix", "admin", body, map[string]string{apphttp.HeaderIdempotencyKey: "fix-2"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.EqualValues(t, 1, decode(t, raw)["applied_count"])
	assert.True(t, store.Quantity(entity.StockKey{ItemVariantID: "var-2", LocationID: "loc-1"}).Equal(dec("100")))
}

func countWorkbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func uploadCount(t *testing.T, app *fiber.App, path, token string, file []byte) (*http.Response, []byte) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "conteo.xlsx")
	require.NoError(t, err)
	_, err = part.Write(file)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", tokenForRole(t, "bodeguero"))
	if token != "" {
		req.Header.Set(apphttp.HeaderIdempotencyKey, token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestImportPhysicalCount(t *testing.T) {
	app, store := newAPI(t)
	file := countWorkbook(t,
		[]any{"Fecha", "Bodega", "SKU", "Producto", "Cantidad"},
		[]any{"2024-03-02", "bodega central", "sku-1", "Camisa", 4},
		[]any{"2024-03-02", "Bodega Central", "SKU-2", "Pantalón", 100},
	)

	resp, raw := uploadCount(t, app, "/api/physical-counts?preview=true", "", file)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	preview := decode(t, raw)
	assert.Equal(t, true, preview["preview"])
	assert.Empty(t, store.Movements())

	resp, raw = uploadCount(t, app, "/api/physical-counts", "count-1", file)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	body := decode(t, raw)
	assert.EqualValues(t, 1, body["applied_count"])
	assert.EqualValues(t, 1, body["skipped_count"])
	assert.True(t, store.Quantity(entity.StockKey{ItemVariantID: "var-1", LocationID: "loc-1"}).Equal(dec("4")))
}

func TestImportPhysicalCount_CodigoDesconocido(t *testing.T) {
	app, _ := newAPI(t)
	file := countWorkbook(t,
		[]any{"Fecha", "Bodega", "SKU", "Cantidad"},
		[]any{"2024-03-02", "Bodega Central", "SKU-404", 4},
	)

	resp, raw := uploadCount(t, app, "/api/physical-counts", "count-2", file)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	rows := decode(t, raw)["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].(map[string]any)["row"])
}
