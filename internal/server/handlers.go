package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/quicksheet-ai/quicksheet/constants"
	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/entity"
	"github.com/quicksheet-ai/quicksheet/internal/pipeline"
)

const defaultMaxUploadBytes = 50 << 20 // high-resolution phone photos

type identifierBody struct {
	Identifier string `json:"identifier"`
}

func (s *Server) decodeIdentifier(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body identifierBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid json body")
		return "", false
	}
	id := strings.TrimSpace(body.Identifier)
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "identifier is required")
		return "", false
	}
	return id, true
}

// handleSignIn gets or creates the account row. First sign-in seeds zero
// usage on the free tier.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIdentifier(w, r)
	if !ok {
		return
	}
	account, err := s.accounts.GetOrCreate(r.Context(), id)
	if err != nil {
		s.logger.Error("signin.failed", "identifier", id, "error", err)
		s.writeTaxonomyError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("identifier"))
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "identifier is required")
		return
	}
	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

// handleExtract accepts a multipart upload ("identifier", optional "note",
// one or more "images" files), runs the pipeline and streams the workbook
// back as an attachment. Per-image warnings travel in the
// X-Quicksheet-Warnings header as base64-encoded JSON (labels may be
// non-ASCII, which raw header values cannot carry).
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid multipart form")
		return
	}

	id := strings.TrimSpace(r.FormValue("identifier"))
	if id == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "identifier is required")
		return
	}
	note := r.FormValue("note")

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "at least one image is required")
		return
	}

	images := make([]entity.ImagePart, 0, len(files))
	for _, fh := range files {
		format := constants.ImageFormat(filepath.Ext(fh.Filename))
		if format == "" {
			s.writeError(w, http.StatusBadRequest, "INVALID_INPUT",
				fmt.Sprintf("unsupported image type: %s", fh.Filename))
			return
		}
		src, err := fh.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "unreadable upload")
			return
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "unreadable upload")
			return
		}
		images = append(images, entity.ImagePart{
			Data:        data,
			Format:      format,
			SourceLabel: fh.Filename,
		})
	}

	ctx := common.WithUserID(r.Context(), id)
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	req := entity.ExtractionRequest{
		Images:         images,
		Note:           note,
		MergeRequested: pipeline.DetectMergeDirective(note),
	}
	res, err := s.processor.Run(ctx, account, req)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}

	if len(res.Tables) == 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":     "NO_DATA",
			"message":  "no tabular data could be extracted from the uploaded images",
			"warnings": res.Warnings,
		})
		return
	}

	w.Header().Set("X-Quicksheet-Warning-Count", strconv.Itoa(len(res.Warnings)))
	if len(res.Warnings) > 0 {
		if b, err := json.Marshal(res.Warnings); err == nil {
			w.Header().Set("X-Quicksheet-Warnings", base64.StdEncoding.EncodeToString(b))
		}
	}
	w.Header().Set("X-Quicksheet-Ledger-Updated", strconv.FormatBool(res.LedgerUpdated))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", constants.WorkbookFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Workbook)))
	if _, err := w.Write(res.Workbook); err != nil {
		s.logger.Warn("extract.stream_error", "identifier", id, "error", err)
	}
}

// handlePaymentConfirm is the trust-based "I already paid" path: the tier
// flips immediately with a SELF_REPORTED receipt status. There is no
// verified payment callback; this is a recorded policy decision, not an
// oversight.
func (s *Server) handlePaymentConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIdentifier(w, r)
	if !ok {
		return
	}
	if err := s.accounts.SetTier(r.Context(), id, constants.TierPremium, constants.ReceiptStatusSelfReported); err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.logger.Info("payment.self_reported", "identifier", id)
	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

// handlePaymentReceipt queues the account for admin receipt review.
func (s *Server) handlePaymentReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIdentifier(w, r)
	if !ok {
		return
	}
	if err := s.accounts.SetReceiptStatus(r.Context(), id, constants.ReceiptStatusPending); err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.logger.Info("payment.receipt_pending", "identifier", id)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": string(constants.ReceiptStatusPending)})
}

func (s *Server) handleListPendingReceipts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.ListPendingReceipts(r.Context())
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleApproveReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := s.decodeIdentifier(w, r)
	if !ok {
		return
	}
	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	if account.ReceiptStatus != constants.ReceiptStatusPending {
		s.writeError(w, http.StatusConflict, "NOT_PENDING",
			fmt.Sprintf("account receipt status is %s", account.ReceiptStatus))
		return
	}
	if err := s.accounts.SetTier(r.Context(), id, constants.TierPremium, constants.ReceiptStatusApproved); err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.logger.Info("payment.receipt_approved", "identifier", id)
	account, err = s.accounts.Get(r.Context(), id)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

type tableEditBody struct {
	Table       entity.NamedTable `json:"table"`
	Instruction string            `json:"instruction"`
}

// handleTableEdit applies one natural-language edit through the constrained
// vocabulary. The model selects an instruction; host logic executes it.
func (s *Server) handleTableEdit(w http.ResponseWriter, r *http.Request) {
	var body tableEditBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid json body")
		return
	}
	if strings.TrimSpace(body.Instruction) == "" {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "instruction is required")
		return
	}
	if len(body.Table.Columns) == 0 {
		s.writeError(w, http.StatusBadRequest, "INVALID_INPUT", "table has no columns")
		return
	}
	edited, err := s.editAgent.ApplyEdit(r.Context(), body.Table, body.Instruction)
	if err != nil {
		s.writeTaxonomyError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"table": edited})
}
