package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestAppError_UnwrapKeepsChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewStoreUnavailable(fmt.Errorf("dial: %w", errSentinel)))

	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, HasCode(err, CodeStoreUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, GetHTTPStatus(err))
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(NewValidation("bad")))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(NewInvalidDocumentType("vessel", nil)))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewConflict("busy")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestAppError_ErrorString(t *testing.T) {
	err := NewInvalidDocumentType("vessel", errSentinel).WithDetail("hint", "see /document-types")

	assert.Equal(t, `INVALID_DOCUMENT_TYPE: unknown document type "vessel" (caused by: sentinel)`, err.Error())
	assert.Equal(t, "vessel", err.Details["documentType"])
	assert.Equal(t, "see /document-types", err.Details["hint"])
	assert.True(t, IsConflict(NewConflict("x")))
	assert.False(t, IsConflict(NewValidation("x")))
}
