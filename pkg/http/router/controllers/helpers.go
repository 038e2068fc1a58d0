package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type envelope map[string]interface{}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestValidator validator with english error messages.
type requestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newRequestValidator() *requestValidator {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)
	return &requestValidator{validate: validate, trans: trans}
}

// Struct returns a single ErrBadParamInput error listing every failed field.
func (rv *requestValidator) Struct(s interface{}) error {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}
	vv := translateError(err, rv.trans)
	msgs := make([]string, 0, len(vv))
	for _, v := range vv {
		msgs = append(msgs, v.Error())
	}
	return util.WrapErrorf(nil, util.ErrBadParamInput, "validation error: %s", strings.Join(msgs, "; "))
}

func translateError(err error, trans ut.Translator) (errs []error) {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}

func writeJSON(w http.ResponseWriter, status int, data envelope, headers http.Header) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	js = append(js, '\n')
	for key, value := range headers {
		w.Header()[key] = value
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// readJSON decodes a single json object, rejecting unknown fields and trailing data.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return util.WrapErrorf(err, util.ErrBadParamInput, "malformed json body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "body must contain a single json object")
	}
	return nil
}

type errorResponder struct {
	log *zap.Logger
}

func (er errorResponder) errorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if err := writeJSON(w, status, envelope{"error": errorBody{Code: code, Message: message}}, nil); err != nil {
		er.log.Error("write error response", zap.String("path", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (er errorResponder) BadRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	er.errorResponse(w, r, http.StatusBadRequest, "bad_request", err.Error())
}

func (er errorResponder) ServerErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	er.log.Error("internal server error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	er.errorResponse(w, r, http.StatusInternalServerError, "internal_error",
		"the server encountered a problem and could not process your request")
}

// getStatusCode maps domain errors to http statuses and writes the error response.
func (er errorResponder) getStatusCode(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, util.ErrNotFound):
		er.errorResponse(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, util.ErrNoPath):
		er.errorResponse(w, r, http.StatusUnprocessableEntity, "no_path", err.Error())
	case errors.Is(err, util.ErrBadParamInput), errors.Is(err, util.ErrInvalidConfig):
		er.BadRequestResponse(w, r, err)
	case errors.Is(err, util.ErrCancelled):
		er.errorResponse(w, r, http.StatusGatewayTimeout, "timeout",
			fmt.Sprintf("request did not finish in time: %v", err))
	default:
		er.ServerErrorResponse(w, r, err)
	}
}
