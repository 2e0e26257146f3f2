package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/domain/trie"
	"github.com/aymericbeaumet/loupe/infrastructure/index"
	apperrors "github.com/aymericbeaumet/loupe/pkg/errors"
	"github.com/aymericbeaumet/loupe/pkg/validation"
)

const maxBodyBytes = 8 << 20

// IndexHandler exposes the development record index.
type IndexHandler struct {
	index  *index.Index
	errors *apperrors.ErrorHandler
	logger *zap.Logger
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(ix *index.Index, errs *apperrors.ErrorHandler, logger *zap.Logger) *IndexHandler {
	return &IndexHandler{index: ix, errors: errs, logger: logger}
}

// QueryRequest is the body of POST /records/query.
type QueryRequest struct {
	Query string `json:"query" validate:"max=1024"`
}

// AddRecordsResponse is returned by POST /records.
type AddRecordsResponse struct {
	Count   int           `json:"count"`
	Records []trie.Record `json:"records"`
}

// DebugNodes handles GET /debug/nodes. It serves the word mapping for the
// query, or the subtree at the query when rooted is true.
func (h *IndexHandler) DebugNodes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if err := validation.Var("query", query, "max=1024"); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	rooted := false
	if v := r.URL.Query().Get("rooted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.errors.Handle(w, r, apperrors.NewValidationError("rooted must be a boolean"))
			return
		}
		rooted = b
	}

	var payload *trie.Payload
	if rooted {
		payload = h.index.Root(query)
	} else {
		payload = h.index.Nodes(query)
	}

	data, err := payload.MarshalJSON()
	if err != nil {
		h.errors.Handle(w, r, apperrors.Wrap(err, "encode payload"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// AddRecords handles POST /records. The body is one record object or an
// array of them; records without an id get a generated one.
func (h *IndexHandler) AddRecords(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errors.Handle(w, r, apperrors.NewValidationError("request body too large"))
			return
		}
		h.errors.Handle(w, r, apperrors.NewValidationError("unreadable request body"))
		return
	}

	raws, err := splitRecords(body)
	if err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("body must be a JSON object or array of objects"))
		return
	}

	records := make([]trie.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := index.PrepareRecord(raw)
		if err != nil {
			h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()).
				WithDetails(map[string]interface{}{"index": i}))
			return
		}
		records = append(records, rec)
	}

	if err := h.index.Add(r.Context(), records...); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Records indexed",
		zap.Int("count", len(records)),
		zap.Int("total", h.index.Len()),
	)
	respondJSON(w, h.logger, http.StatusCreated, AddRecordsResponse{Count: len(records), Records: records})
}

// QueryRecords handles GET and POST /records/query.
func (h *IndexHandler) QueryRecords(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			h.errors.Handle(w, r, apperrors.NewValidationError("invalid request body"))
			return
		}
	} else {
		req.Query = r.URL.Query().Get("query")
	}
	if err := validation.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError(err.Error()))
		return
	}

	respondJSON(w, h.logger, http.StatusOK, h.index.Records(req.Query))
}

func splitRecords(body []byte) ([]json.RawMessage, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err == nil {
		return raws, nil
	}
	var single map[string]json.RawMessage
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []json.RawMessage{body}, nil
}
