package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Idea_Portal/internal/pkg"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
		msg    string
	}{
		{pkg.Invalid("title", "title is required"), http.StatusBadRequest, "validation_error", "title is required"},
		{pkg.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", ""},
		{pkg.ErrForbidden, http.StatusForbidden, "forbidden", ""},
		{errors.Wrap(pkg.ErrNotFound, "idea.find"), http.StatusNotFound, "not_found", ""},
		{pkg.ErrAlreadyVoted, http.StatusConflict, "already_voted", ""},
		{pkg.ErrNotVoted, http.StatusConflict, "not_voted", ""},
		{pkg.ErrAlreadyUsed, http.StatusConflict, "already_used", ""},
		{pkg.ErrInvalidTransition, http.StatusConflict, "invalid_transition", ""},
		{pkg.ErrEmailTaken, http.StatusConflict, "email_taken", ""},
		{pkg.ErrExpired, http.StatusGone, "expired", ""},
		{pkg.Upstream("db.query", errors.New("connection refused")), http.StatusBadGateway, "upstream_error", "upstream service unavailable"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body["code"])
		if tc.msg != "" {
			assert.Equal(t, tc.msg, body["msg"])
		}
	}
}
