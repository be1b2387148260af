package server

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pders01/repour/internal/models"
)

// namePattern matches tag names a request may ask for. A trailing .git is
// rejected separately.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_.][a-zA-Z0-9_.-]*$`)

var noBlank = regexp.MustCompile(`^\S+$`)

// Validation error types
const (
	errTypeRequired = "required"
	errTypeFormat   = "format"
	errTypeValue    = "value"
	errTypeJSON     = "json"
)

type validator struct {
	errs []models.ValidationError
}

func (v *validator) add(errType, message string, path ...string) {
	v.errs = append(v.errs, models.ValidationError{
		ErrorMessage: message,
		Path:         path,
		ErrorType:    errType,
	})
}

func (v *validator) nonEmpty(value string, path ...string) {
	if value == "" {
		v.add(errTypeRequired, "length of value must be at least 1", path...)
	}
}

func (v *validator) name(value string, path ...string) {
	if !namePattern.MatchString(value) || strings.HasSuffix(value, ".git") {
		v.add(errTypeFormat, "does not match regular expression", path...)
	}
}

func (v *validator) url(value string, path ...string) {
	u, err := url.Parse(value)
	if value == "" || err != nil || u.Scheme == "" || u.Host == "" {
		v.add(errTypeFormat, "expected a URL", path...)
	}
}

func (v *validator) callbackID(value string) {
	if value != "" && !noBlank.MatchString(value) {
		v.add(errTypeFormat, "must not contain whitespace", "callback_id")
	}
}

func validateCapture(req *models.CaptureRequest) []models.ValidationError {
	var v validator
	v.nonEmpty(req.Dir, "dir")
	if _, err := models.ParseOperation(string(req.Operation)); err != nil {
		v.add(errTypeValue, err.Error(), "operation")
	}
	v.nonEmpty(req.Description, "description")
	v.url(req.URL.ReadWrite, "url", "readwrite")
	v.url(req.URL.ReadOnly, "url", "readonly")
	if req.TagName != "" {
		v.name(req.TagName, "tag_name")
	}
	v.callbackID(req.CallbackID)
	return v.errs
}

func validateFlatten(req *models.FlattenRequest) []models.ValidationError {
	var v validator
	v.nonEmpty(req.Dir, "dir")
	v.callbackID(req.CallbackID)
	return v.errs
}

func validateTranslate(req *models.TranslateRequest) []models.ValidationError {
	var v validator
	v.nonEmpty(req.ExternalURL, "external_url")
	return v.errs
}
