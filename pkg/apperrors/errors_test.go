package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid argument", fmt.Errorf("get token: %w", ErrInvalidArgument), http.StatusBadRequest},
		{"invalid install request", ErrInvalidInstallRequest, http.StatusBadRequest},
		{"company token missing", fmt.Errorf("reinstall C1: %w", ErrCompanyTokenNotFound), http.StatusNotFound},
		{"bad token response", ErrInvalidTokenResponse, http.StatusBadGateway},
		{"upstream", fmt.Errorf("oauth: %w", ErrUpstream), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
