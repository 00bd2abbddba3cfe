package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"finances/internal/amqp"
	"finances/internal/core"
	"finances/internal/log"
	"finances/internal/middleware/trace"
	"finances/internal/services"
	"finances/internal/uploads"
)

const uploadFormField = "file"

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ts, err := s.ledger.Transactions(ctx)
	if err != nil {
		s.internalError(w, r, "List transactions failed", log.OpList, err)
		return
	}
	b, err := s.ledger.Balance(ctx)
	if err != nil {
		s.internalError(w, r, "Compute balance failed", log.OpBalance, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Transactions: toTransactionResponses(ts),
		Balance:      toBalanceResponse(b),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.Balance(r.Context())
	if err != nil {
		s.internalError(w, r, "Compute balance failed", log.OpBalance, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceResponse(b))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, err := req.toNewTransaction()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	t, err := s.ledger.Create(r.Context(), in)
	if err != nil {
		var insufficient *core.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:     err.Error(),
				Requested: insufficient.Requested.StringFixed(2),
				Available: insufficient.Available.StringFixed(2),
			})
		case isValidationError(err):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.internalError(w, r, "Create transaction failed", log.OpCreate, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(t))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := uploads.NewName(header.Filename)
	if err := s.uploads.Save(ctx, name, file); err != nil {
		s.internalError(w, r, "Saving upload failed", log.OpUpload, err)
		return
	}

	if s.publisher != nil {
		s.queueImport(w, r, name)
		return
	}

	res, err := s.importer.Import(ctx, name)
	if err != nil {
		if errors.Is(err, services.ErrStreamFailure) {
			logger.WarnContext(ctx, "Import rejected", log.FieldFileName, name, log.FieldError, err)
			writeError(w, http.StatusUnprocessableEntity, "could not read CSV file")
			return
		}
		s.internalError(w, r, "Import failed", log.OpImport, err)
		return
	}

	writeJSON(w, http.StatusCreated, importResponse{
		Transactions:      toTransactionResponses(res.Transactions),
		Dropped:           res.Dropped,
		CategoriesCreated: res.CategoriesCreated,
	})
}

func (s *Server) queueImport(w http.ResponseWriter, r *http.Request, name string) {
	ctx := r.Context()
	requestID := trace.GetRequestID(ctx)

	if err := s.publisher.PublishImportRequested(ctx, amqp.NewImportRequestedMessage(name, requestID)); err != nil {
		log.FromContext(ctx).LogError(ctx, "Queueing import failed", err, log.OpPublish,
			log.NewFields().WithComponent(log.ComponentHTTP))
		if delErr := s.uploads.Delete(ctx, name); delErr != nil {
			slog.WarnContext(ctx, "Failed to delete unqueued upload", log.FieldFileName, name, log.FieldError, delErr)
		}
		writeError(w, http.StatusServiceUnavailable, "import queue unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, queuedResponse{FileName: name, RequestID: requestID, Status: "queued"})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg, op string, err error) {
	log.FromContext(r.Context()).LogError(r.Context(), msg, err, op, nil)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrEmptyTitle) ||
		errors.Is(err, core.ErrTitleTooLong) ||
		errors.Is(err, core.ErrEmptyCategory) ||
		errors.Is(err, core.ErrInvalidType) ||
		errors.Is(err, core.ErrInvalidValue)
}
