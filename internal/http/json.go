package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finances/internal/core"
	"finances/internal/services"
)

const maxJSONBodyBytes = 64 << 10

type categoryResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type transactionResponse struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Value     string           `json:"value"`
	Type      string           `json:"type"`
	Category  categoryResponse `json:"category"`
	CreatedAt time.Time        `json:"created_at"`
}

type balanceResponse struct {
	Income  string `json:"income"`
	Outcome string `json:"outcome"`
	Total   string `json:"total"`
}

type listResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Balance      balanceResponse       `json:"balance"`
}

type importResponse struct {
	Transactions      []transactionResponse `json:"transactions"`
	Dropped           int                   `json:"dropped"`
	CategoriesCreated int                   `json:"categories_created"`
}

type queuedResponse struct {
	FileName  string `json:"file_name"`
	RequestID string `json:"request_id,omitempty"`
	Status    string `json:"status"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Requested string `json:"requested,omitempty"`
	Available string `json:"available,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID,
		Title:     t.Title,
		Value:     t.Value.StringFixed(2),
		Type:      t.Type.String(),
		Category:  categoryResponse{ID: t.Category.ID, Title: t.Category.Title},
		CreatedAt: t.CreatedAt,
	}
}

func toTransactionResponses(ts []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(ts))
	for i, t := range ts {
		out[i] = toTransactionResponse(t)
	}
	return out
}

func toBalanceResponse(b core.Balance) balanceResponse {
	return balanceResponse{
		Income:  b.Income.StringFixed(2),
		Outcome: b.Outcome.StringFixed(2),
		Total:   b.Total.StringFixed(2),
	}
}

// amount accepts a JSON number or a string using either decimal separator.
type amount string

func (a *amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value must be a number or a string")
	}
	*a = amount(n.String())
	return nil
}

type createTransactionRequest struct {
	Title    string `json:"title"`
	Value    amount `json:"value"`
	Type     string `json:"type"`
	Category string `json:"category"`
}

// toNewTransaction converts the request, reporting field errors with the
// core sentinel errors.
func (req createTransactionRequest) toNewTransaction() (services.NewTransaction, error) {
	typ, err := core.ParseTransactionType(strings.TrimSpace(req.Type))
	if err != nil {
		return services.NewTransaction{}, err
	}
	value, err := core.ParseValue(string(req.Value))
	if err != nil {
		return services.NewTransaction{}, err
	}
	return services.NewTransaction{
		Title:         sanitizeInput(req.Title),
		Value:         value,
		Type:          typ,
		CategoryTitle: sanitizeInput(req.Category),
	}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}
