package server

import (
	"errors"
	"net/http"

	"github.com/pders01/repour/internal/config"
	"github.com/pders01/repour/internal/git"
	"github.com/pders01/repour/internal/models"
	"github.com/pders01/repour/internal/scm"
	"github.com/pders01/repour/internal/urltranslate"
)

var kindStatus = map[scm.Kind]int{
	scm.KindNoChange:        http.StatusConflict,
	scm.KindAlreadyCaptured: http.StatusConflict,
	scm.KindTagConflict:     http.StatusConflict,
	scm.KindIntegrity:       http.StatusUnprocessableEntity,
	scm.KindTransport:       http.StatusBadGateway,
}

// describe maps err to a status code and response body
func describe(err error) (int, models.ErrorResponse) {
	body := models.ErrorResponse{ErrorMessage: err.Error()}
	if code, ok := scm.ExitCode(err); ok {
		body.ExitCode = code
	}

	var scmErr *scm.Error
	var cmdErr *git.CommandError
	switch {
	case errors.As(err, &scmErr):
		body.ErrorType = string(scmErr.Kind)
		return kindStatus[scmErr.Kind], body
	case errors.Is(err, urltranslate.ErrInvalidURL),
		errors.Is(err, urltranslate.ErrEmptyScheme),
		errors.Is(err, urltranslate.ErrScheme),
		errors.Is(err, urltranslate.ErrNoRepository):
		body.ErrorType = "translation"
		return http.StatusBadRequest, body
	case errors.Is(err, config.ErrMissingSetting), errors.Is(err, config.ErrInvalidConfig):
		body.ErrorType = "config"
		return http.StatusInternalServerError, body
	case errors.As(err, &cmdErr):
		body.ErrorType = "command"
		return http.StatusInternalServerError, body
	default:
		body.ErrorType = "internal"
		return http.StatusInternalServerError, body
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := describe(err)
	writeJSON(w, status, body)
}
