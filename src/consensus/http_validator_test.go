package consensus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fractis/node/src/config"
	"github.com/stretchr/testify/require"
)

func TestHTTPValidator(t *testing.T) {
	var received Transaction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ConfirmPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(ConfirmResponse{Confirmed: true})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	v := NewHTTPValidator("v1", addr, srv.Client())
	require.Equal(t, "v1", v.ID())

	tx := newSignedTx(t, time.Now())
	ok, err := v.Confirm(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tx.Signature, received.Signature)
	require.Equal(t, tx.Origin, received.Origin)
}

func TestHTTPValidatorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewHTTPValidator("v1", strings.TrimPrefix(srv.URL, "http://"), nil)
	ok, err := v.Confirm(context.Background(), newSignedTx(t, time.Now()))
	require.Error(t, err)
	require.False(t, ok)

	srv.Close()
	_, err = v.Confirm(context.Background(), newSignedTx(t, time.Now()))
	require.Error(t, err)
}

func TestValidatorsFromConfig(t *testing.T) {
	validators := ValidatorsFromConfig([]config.ValidatorConfig{
		{ID: "a", Addr: "10.0.0.1:8080"},
		{ID: "b", Addr: "10.0.0.2:8080"},
	}, nil)

	require.Len(t, validators, 2)
	require.Equal(t, "a", validators[0].ID())
	require.Equal(t, "http://10.0.0.2:8080/confirm", validators[1].(*HTTPValidator).url)
}
