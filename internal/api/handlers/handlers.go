package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anayak/bank2tally/internal/api/middleware"
	"github.com/anayak/bank2tally/internal/archive"
	"github.com/anayak/bank2tally/internal/pipeline"
	"github.com/anayak/bank2tally/internal/statement"
	"github.com/anayak/bank2tally/internal/tallyxml"
	"github.com/anayak/bank2tally/internal/voucher"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxUploadBytes caps statement uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// StatementsHandler serves the preview phase: statement upload in, resolved
// preview rows out.
type StatementsHandler struct {
	pipeline *pipeline.Pipeline
	archiver archive.Archiver // nil when archival is disabled
	log      zerolog.Logger
}

// NewStatementsHandler creates a statements handler. archiver may be nil.
func NewStatementsHandler(p *pipeline.Pipeline, archiver archive.Archiver, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		pipeline: p,
		archiver: archiver,
		log:      log,
	}
}

// Preview handles POST /api/preview. The statement arrives as multipart form
// field "bankfile" (XLSX or CSV).
func (h *StatementsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("bankfile")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Form file \"bankfile\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	table, err := statement.ReadTable(bytes.NewReader(data), header.Filename)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Could not read statement: %v", err))
		return
	}

	result, err := h.pipeline.Preview(ctx, table)
	if err != nil {
		var schemaErr *statement.SchemaError
		if errors.As(err, &schemaErr) {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":           schemaErr.Error(),
				"missing_columns": schemaErr.Missing,
			})
			return
		}
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Preview batch failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process statement")
		return
	}

	h.archiveUpload(header.Filename, header.Header.Get("Content-Type"), data)

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rows":    result.Rows,
		"skipped": result.Skipped,
		"flagged": result.Flagged,
		"count":   len(result.Rows),
	})
}

// archiveUpload stores a copy of the statement in the background. Best
// effort: failures are logged, the preview response is already on its way.
func (h *StatementsHandler) archiveUpload(filename, contentType string, data []byte) {
	if h.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		uri, err := h.archiver.Archive(ctx, filename, contentType, data)
		if err != nil {
			h.log.Warn().Err(err).Str("filename", filename).Msg("Statement archival failed")
			return
		}
		h.log.Info().Str("filename", filename).Str("uri", uri).Msg("Statement archived")
	}()
}

// VouchersHandler serves the XML-generation phase.
type VouchersHandler struct {
	log zerolog.Logger
}

// NewVouchersHandler creates a vouchers handler.
func NewVouchersHandler(log zerolog.Logger) *VouchersHandler {
	return &VouchersHandler{log: log}
}

type voucherInput struct {
	Date      string  `json:"date"`
	Narration string  `json:"narration"`
	Amount    float64 `json:"amount"`
	VType     string  `json:"vtype"`
	Ledger    string  `json:"ledger"`
}

type generateXMLRequest struct {
	Vouchers   []voucherInput `json:"vouchers"`
	BankLedger string         `json:"bankLedger"`
}

// GenerateXML handles POST /api/generate-xml. Vouchers are encoded in request
// order; clients may have edited ledgers between preview and generation.
func (h *VouchersHandler) GenerateXML(w http.ResponseWriter, r *http.Request) {
	var req generateXMLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	bankLedger := strings.TrimSpace(req.BankLedger)
	if bankLedger == "" {
		bankLedger = voucher.DefaultBankLedger
	}

	vouchers := make([]voucher.Voucher, 0, len(req.Vouchers))
	for i, in := range req.Vouchers {
		v, err := buildVoucher(in, bankLedger)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, fmt.Sprintf("voucher %d: %v", i, err))
			return
		}
		vouchers = append(vouchers, v)
	}

	xmlText, err := tallyxml.Encode(vouchers)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode voucher XML")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate XML")
		return
	}

	h.log.Info().Int("vouchers", len(vouchers)).Str("bank_ledger", bankLedger).Msg("Voucher XML generated")

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"xml":   xmlText,
		"count": len(vouchers),
	})
}

func buildVoucher(in voucherInput, bankLedger string) (voucher.Voucher, error) {
	date, err := time.Parse("2006-01-02", in.Date)
	if err != nil {
		return voucher.Voucher{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", in.Date)
	}

	kind, err := statement.ParseKind(in.VType)
	if err != nil {
		return voucher.Voucher{}, err
	}

	amount := decimal.NewFromFloat(in.Amount)
	if !amount.IsPositive() {
		return voucher.Voucher{}, fmt.Errorf("amount must be positive, got %v", in.Amount)
	}

	rec := statement.Record{
		Date:      date,
		Narration: strings.TrimSpace(in.Narration),
		Amount:    amount,
		Kind:      kind,
	}
	return voucher.FromRecord(rec, strings.TrimSpace(in.Ledger), bankLedger)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
