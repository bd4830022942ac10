package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"solestore/internal/params"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1_048_576 // 1mb

var Validate *validator.Validate

var shoeSizePattern = regexp.MustCompile(`^[0-9]{1,2}(\.5)?$`)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	// shoe sizes are whole or half numbers, e.g. "9" or "10.5"
	Validate.RegisterValidation("shoesize", func(fl validator.FieldLevel) bool {
		size := fl.Field().String()
		if !shoeSizePattern.MatchString(size) {
			return false
		}
		n, err := strconv.ParseFloat(size, 64)
		return err == nil && n > 0 && n <= 20
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// it parses body into Go struct.
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(data); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body must not be empty")
		}
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// readPatch decodes a JSON object for a partial update. Numbers are kept as
// json.Number so large integers survive the merge.
func readPatch(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	patch := map[string]any{}
	if err := decoder.Decode(&patch); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	if decoder.More() {
		return nil, errors.New("request body must contain a single JSON object")
	}
	if len(patch) == 0 {
		return nil, errors.New("patch must contain at least one field")
	}
	return patch, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	type envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}

	return writeJSON(w, status, &envelope{
		Success: false,
		Message: message,
		Status:  status,
	})
}

func (app *application) jsonResponse(w http.ResponseWriter, status int, data any) error {
	type envelope struct {
		Data any `json:"data"`
	}
	return writeJSON(w, status, &envelope{Data: data})
}

// listResponse is the body of every paginated listing.
type listResponse[T any] struct {
	Items      []T               `json:"items"`
	Pagination params.Pagination `json:"pagination"`
}
