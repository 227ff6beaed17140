package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/secureboat/recipe-api/internal/auth"
	"github.com/secureboat/recipe-api/internal/datastore"
	"github.com/secureboat/recipe-api/internal/models"
	"github.com/secureboat/recipe-api/internal/relations"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&models.ValidationError{Fields: []string{"name"}}, http.StatusBadRequest},
		{datastore.ErrBadCursor, http.StatusBadRequest},
		{auth.ErrNoCredential, http.StatusUnauthorized},
		{auth.ErrCredentialRejected, http.StatusUnauthorized},
		{auth.ErrForbidden, http.StatusForbidden},
		{relations.ErrAlreadyLinked, http.StatusForbidden},
		{datastore.ErrNotFound, http.StatusNotFound},
		{relations.ErrNotLinked, http.StatusNotFound},
		{datastore.ErrUnavailable, http.StatusInternalServerError},
		{&relations.PartialError{}, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusFor(tc.err), "error: %v", tc.err)
	}
}

func TestStatusFor_WrappedErrors(t *testing.T) {
	err := fmt.Errorf("recipe 5: %w", auth.ErrForbidden)
	require.Equal(t, http.StatusForbidden, statusFor(err))

	err = fmt.Errorf("search for recipes: %w", fmt.Errorf("%w: junk", datastore.ErrBadCursor))
	require.Equal(t, http.StatusBadRequest, statusFor(err))
}

func TestSelfLink(t *testing.T) {
	require.Equal(t, "http://api.test/recipes/7", selfLink("http://api.test", "recipes", 7))
}
