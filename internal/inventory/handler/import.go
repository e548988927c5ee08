package handler

import (
	stderrors "errors"
	"mime"
	"net/http"

	"github.com/stockflow/stockflow-backend/internal/inventory/importer"
	"github.com/stockflow/stockflow-backend/internal/inventory/service"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stockflow/stockflow-backend/pkg/logger"
)

const maxImportBytes = 20 << 20

// ImportHandler accepts product and transaction history imports, either
// as a JSON document or as a text/csv body
type ImportHandler struct {
	reconciler *service.Reconciler
	logger     *logger.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(reconciler *service.Reconciler, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		reconciler: reconciler,
		logger:     log,
	}
}

type importRequest struct {
	Rows []service.RowInput `json:"rows"`
}

type historyRequest struct {
	Rows []service.HistoryRow `json:"rows"`
}

// Products imports product rows and their quantities
func (h *ImportHandler) Products(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var (
		rows     []service.RowInput
		failures []service.RowError
	)
	if isCSV(r) {
		rows, failures, err = importer.DecodeRows(r.Body)
		if err != nil {
			httputil.Error(w, csvError(err))
			return
		}
	} else {
		var req importRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		rows = req.Rows
	}

	res, err := h.reconciler.ImportBatch(r.Context(), tid, rows)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	res.AddFailures(failures)

	h.logger.Info().
		Str("tenant_id", tid).
		Int("success", res.Success).
		Int("failed", res.Failed).
		Msg("product import finished")

	httputil.JSON(w, http.StatusOK, res)
}

// History replays recorded stock movements
func (h *ImportHandler) History(w http.ResponseWriter, r *http.Request) {
	tid, err := tenantID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var (
		rows     []service.HistoryRow
		failures []service.RowError
	)
	if isCSV(r) {
		rows, failures, err = importer.DecodeHistory(r.Body)
		if err != nil {
			httputil.Error(w, csvError(err))
			return
		}
	} else {
		var req historyRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		rows = req.Rows
	}

	res, err := h.reconciler.ImportHistory(r.Context(), tid, rows)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	res.AddFailures(failures)

	h.logger.Info().
		Str("tenant_id", tid).
		Int("success", res.Success).
		Int("failed", res.Failed).
		Msg("history import finished")

	httputil.JSON(w, http.StatusOK, res)
}

func isCSV(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "text/csv"
}

func csvError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.BadRequest("import body is too large")
	}
	if stderrors.Is(err, importer.ErrMissingHeader) {
		return errors.BadRequest("csv body has no header row")
	}
	return errors.BadRequest(err.Error())
}
