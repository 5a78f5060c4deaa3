package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"gospc/domain/core"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"shape", core.NewShapeMismatchError(3, 2), CodeInvalidInput, http.StatusBadRequest},
		{"insufficient", core.NewInsufficientDataError(3, 30), CodeInvalidInput, http.StatusBadRequest},
		{"date", core.NewDateParseError(1, "x", stderrors.New("bad")), CodeInvalidInput, http.StatusBadRequest},
		{"parameter", core.NewValidationError("sample_size", "must be positive"), CodeValidationError, http.StatusBadRequest},
		{"degenerate", core.NewDegenerateWindowError(0, 1), CodeUnprocessable, http.StatusUnprocessableEntity},
		{"not found", core.NewNotFoundError("analysis", "abc"), CodeNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", core.ErrDatasetNotFound), CodeNotFound, http.StatusNotFound},
		{"not solved", core.ErrNotSolved, CodeNotSolved, http.StatusConflict},
		{"other", stderrors.New("disk on fire"), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := FromDomain(tt.err)
			assert.Equal(t, tt.code, GetCode(classified))
			assert.ErrorIs(t, classified, tt.err)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}

	assert.Nil(t, FromDomain(nil))
}

func TestWrapPreservesCode(t *testing.T) {
	base := DatabaseError("insert failed", stderrors.New("connection reset"))
	wrapped := Wrapf(base, "save analysis %s", "abc")

	assert.Equal(t, CodeDatabaseError, GetCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(wrapped))
	assert.Contains(t, wrapped.Error(), "save analysis abc")

	domain := Wrap(core.ErrAnalysisNotFound, "lookup")
	assert.Equal(t, CodeNotFound, GetCode(domain))
	assert.True(t, core.IsNotFoundError(domain))

	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeConfigInvalid, stderrors.New("PORT missing"))
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.True(t, IsAppError(fmt.Errorf("outer: %w", err)))
}
