package http

import (
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// DecodeJSON reads a single JSON document and rejects unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("Request body is empty")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.TooLarge(tooLarge.Limit)
		}
		return apperrors.InvalidInput("Invalid request body: " + err.Error())
	}
	return nil
}

// ExtractDate reads the required ?date=YYYY-MM-DD query parameter.
func ExtractDate(r *http.Request) (string, error) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return "", apperrors.InvalidInput("query parameter 'date' is required")
	}
	if _, err := model.ParseDate(date); err != nil {
		return "", apperrors.InvalidInput("query parameter 'date' must be YYYY-MM-DD")
	}
	return date, nil
}
