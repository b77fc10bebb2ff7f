package http

import (
	"fmt"
	"net/http"
	"testing"

	"exam-delivery-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.Invalid("name", "is required"): http.StatusUnprocessableEntity,
		domain.ErrSetNotFound:                 http.StatusNotFound,
		domain.ErrAttemptInProgress:           http.StatusConflict,
		domain.ErrSaveInProgress:              http.StatusConflict,
		domain.ErrReviewLocked:                http.StatusForbidden,
		domain.ErrInvalidCredentials:          http.StatusUnauthorized,
		fmt.Errorf("boom"):                    http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(fmt.Errorf("%w: timeout", domain.ErrPersistFailed)))
}
