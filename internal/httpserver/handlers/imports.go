package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/matjip/internal/domain"
	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/matjip/internal/httpserver/mw"
	"github.com/MrSnakeDoc/matjip/internal/importer"
	"github.com/MrSnakeDoc/matjip/internal/lifecycle"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/sources/naver"
)

type undoResponse struct {
	ID      string `json:"id"`
	Deleted int    `json:"deleted"`
}

// ImportNaver saves a Naver shared-folder export and starts enrichment.
// 202 carries the new batch; 200 means nothing new was saved.
func ImportNaver(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mw.UserID(r.Context())
		body := http.MaxBytesReader(w, r.Body, d.MaxBodySize)

		bookmarks, invalid, err := naver.Parse(body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, d.Logger, http.StatusRequestEntityTooLarge, "payload too large")
				return
			}
			writeError(w, d.Logger, http.StatusBadRequest, "invalid naver payload")
			return
		}

		batch, err := d.Importer.Import(r.Context(), userID, naver.Source, bookmarks, invalid)
		if errors.Is(err, domain.ErrDuplicate) {
			// another import of the same user won the race; nothing was kept
			writeError(w, d.Logger, http.StatusConflict, "concurrent import, retry")
			return
		}
		if err != nil {
			d.Logger.Error("import failed",
				logger.String("user_id", userID),
				logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "import failed")
			return
		}

		if batch.ID == "" {
			writeJSON(w, d.Logger, http.StatusOK, batch)
			return
		}

		// A spawn failure leaves the batch pending for startup recovery
		if err := d.Runner.Spawn(r.Context(), batch.ID); err != nil {
			d.Logger.Error("failed to start enrichment",
				logger.String("batch_id", batch.ID),
				logger.Error(err))
		} else {
			batch.EnrichmentStatus = domain.StatusRunning
		}
		writeJSON(w, d.Logger, http.StatusAccepted, batch)
	}
}

// ListImports returns the caller's batches, newest first.
func ListImports(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mw.UserID(r.Context())

		batches, err := d.Store.ListBatches(r.Context(), userID)
		if err != nil {
			d.Logger.Error("failed to list imports",
				logger.String("user_id", userID),
				logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "failed to list imports")
			return
		}
		if batches == nil {
			batches = []*domain.ImportBatch{}
		}
		writeJSON(w, d.Logger, http.StatusOK, lifecycle.HistoryResponse{Batches: batches})
	}
}

// UndoImport deletes a batch and its unrated places. Batches of other
// users answer 404.
func UndoImport(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mw.UserID(r.Context())
		id := chi.URLParam(r, "id")

		deleted, err := d.Importer.Undo(r.Context(), userID, id)
		switch {
		case err == nil:
			writeJSON(w, d.Logger, http.StatusOK, undoResponse{ID: id, Deleted: deleted})
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, importer.ErrForbidden):
			writeError(w, d.Logger, http.StatusNotFound, "import not found")
		default:
			d.Logger.Error("undo failed",
				logger.String("batch_id", id),
				logger.Error(err))
			writeError(w, d.Logger, http.StatusInternalServerError, "undo failed")
		}
	}
}
