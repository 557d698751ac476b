package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-inventory-orders/internal/orders"
)

type errorBody struct {
	Message string `json:"message"`
}

type validationBody struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Errors     FieldErrors `json:"errors"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Message: msg})
}

func writeValidation(w http.ResponseWriter, fe FieldErrors) {
	writeJSON(w, http.StatusBadRequest, validationBody{
		StatusCode: http.StatusBadRequest,
		Message:    "One or more errors occurred!",
		Errors:     fe,
	})
}

func statusFor(k orders.Kind) int {
	switch k {
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindConflict:
		return http.StatusConflict
	case orders.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps an orders error onto a status; internal errors are
// logged and never leak their text.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := orders.KindOf(err)
	if kind == orders.KindInternal {
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeError(w, statusFor(kind), err.Error())
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json")
	}
	return nil
}
