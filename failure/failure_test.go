package failure_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shortlink-org/bank-saga/failure"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestKindOfWrappedError(t *testing.T) {
	err := failure.Conflict("account.create", "client %s already has an account", "c-1")
	wrapped := fmt.Errorf("handle: %w", err)

	assert.Equal(t, failure.KindConflict, failure.KindOf(wrapped))
	assert.Equal(t, http.StatusConflict, failure.StatusCode(failure.KindOf(wrapped)))
	assert.Equal(t, "account.create: client c-1 already has an account", err.Error())
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, failure.KindInternal, failure.KindOf(errors.New("disk full")))
	assert.Equal(t, http.StatusInternalServerError, failure.StatusCode(failure.KindInternal))
}

func TestStatusCodes(t *testing.T) {
	cases := map[failure.Kind]int{
		failure.KindValidation: http.StatusBadRequest,
		failure.KindNotFound:   http.StatusNotFound,
		failure.KindConflict:   http.StatusConflict,
		failure.KindInternal:   http.StatusInternalServerError,
		failure.KindTimeout:    http.StatusGatewayTimeout,
	}

	for kind, status := range cases {
		assert.Equal(t, status, failure.StatusCode(kind), kind)
	}
}

func TestUnwrapAndDetails(t *testing.T) {
	cause := errors.New("constraint failed")
	err := &failure.Error{Kind: failure.KindInternal, Op: "insert", Err: cause, Details: "accounts"}

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "insert: constraint failed (accounts)", err.Error())
	require.NoError(t, failure.New(failure.KindInternal, "noop", nil))
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, failure.KindNotFound, failure.ParseKind("not_found"))
	assert.Equal(t, failure.KindInternal, failure.ParseKind("weird"))
}
