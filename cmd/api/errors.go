package main

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"solestore/internal/domain/carts"
	"solestore/internal/domain/orders"
	"solestore/internal/domain/products"
	"solestore/internal/domain/users"
	"solestore/internal/images"
	"solestore/internal/recordstore"

	"github.com/go-playground/validator/v10"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("service unavailable", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusServiceUnavailable, err.Error())
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, validationMessage(err))
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, err.Error())
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path, "retry_after", seconds)

	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+fmt.Sprintf("%ds", seconds))
}

// domainErrorResponse maps errors returned by the repositories to a status.
func (app *application) domainErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recordstore.ErrNotFound),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, products.ErrNotFound),
		errors.Is(err, products.ErrCategoryNotFound),
		errors.Is(err, carts.ErrItemNotFound),
		errors.Is(err, orders.ErrNotFound):
		app.notFoundResponse(w, r, err)

	case errors.Is(err, users.ErrDuplicateEmail),
		errors.Is(err, users.ErrLastAdmin),
		errors.Is(err, products.ErrDuplicateSlug),
		errors.Is(err, products.ErrCategoryInUse),
		errors.Is(err, products.ErrInsufficientStock),
		errors.Is(err, carts.ErrExceedsStock),
		errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, orders.ErrInvalidTransition):
		app.conflictResponse(w, r, err)

	case errors.Is(err, recordstore.ErrInvalidPatch),
		errors.Is(err, products.ErrInvalidParent),
		errors.Is(err, products.ErrInvalidProduct),
		errors.Is(err, products.ErrInvalidCategory),
		errors.Is(err, products.ErrInvalidFilter),
		errors.Is(err, carts.ErrInvalidQuantity),
		errors.Is(err, carts.ErrInvalidOption),
		errors.Is(err, carts.ErrProductUnavailable),
		errors.Is(err, orders.ErrInvalidPaymentMethod),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, images.ErrUnsupportedType):
		app.badRequestResponse(w, r, err)

	case errors.Is(err, recordstore.ErrUnreadable):
		app.serviceUnavailableResponse(w, r, errors.New("data store is unavailable, try again later"))

	default:
		app.internalServerError(w, r, err)
	}
}

// validationMessage turns validator errors into a readable sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min", "max", "gte", "lte":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "shoesize":
		return fmt.Sprintf("%s must be a shoe size like 9 or 10.5", fe.Field())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
