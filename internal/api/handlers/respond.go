package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/pkg/config"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInvalidParam), errors.Is(err, models.ErrModelNotFound):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrDataQuality):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondErr(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func queryCode(r *http.Request, key, def string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		v = def
	}
	return contracts.NormalizeCode(v)
}

func queryDate(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	d, err := contracts.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &paramError{key: key, value: v}
	}
	return n, nil
}

func queryTimeframe(r *http.Request, def contracts.Timeframe) (contracts.Timeframe, error) {
	v := r.URL.Query().Get("timeframe")
	if v == "" {
		return def, nil
	}
	return contracts.ParseTimeframe(v)
}

// quoteList parses a CSV of quotes, falling back to defaults when empty
func quoteList(csv string, defaults []string) []string {
	if q := config.SplitCodes(csv); len(q) > 0 {
		return q
	}
	return append([]string(nil), defaults...)
}

type paramError struct {
	key, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.key + ": " + strings.TrimSpace(e.value)
}

func (e *paramError) Is(target error) bool { return target == contracts.ErrInvalidParam }
