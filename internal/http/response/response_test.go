package response

import (
	"net/http"
	"testing"

	domainagg "github.com/prismbi/prism-backend/internal/domain/aggregates"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		code domainagg.ErrorCode
		want int
	}{
		{domainagg.CodeValidation, http.StatusBadRequest},
		{domainagg.CodeNotFound, http.StatusNotFound},
		{domainagg.CodeForbidden, http.StatusForbidden},
		{domainagg.CodeConflict, http.StatusConflict},
		{domainagg.CodePreconditionFailed, http.StatusUnprocessableEntity},
		{domainagg.CodeInternal, http.StatusInternalServerError},
		{domainagg.CodeRetryable, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusOf(tc.code); got != tc.want {
			t.Fatalf("code %q: got=%d want=%d", tc.code, got, tc.want)
		}
	}
}
