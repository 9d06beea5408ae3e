package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamp15/elpatio-appCajeros/internal/backend"
	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

func newServer(t *testing.T, h http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.New(backend.Config{BaseURL: srv.URL + "/"})
}

func TestLogin(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cajeros/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "caja@elpatio.com", body["email"])
		assert.Equal(t, "secreto", body["password"])

		_, _ = io.WriteString(w, `{"token":"tok-1","cajero":{"_id":"c1","email":"caja@elpatio.com","nombreCompleto":"Caja Uno"}}`)
	})

	res, err := c.Login(context.Background(), "caja@elpatio.com", "secreto")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "c1", res.Cashier.ID)
	assert.Equal(t, "Caja Uno", res.Cashier.NombreCompleto)
}

func TestLogin_BadCredentials(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"mensaje":"Credenciales inválidas"}`)
	})

	_, err := c.Login(context.Background(), "a", "b")
	var reqErr *backend.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, "Credenciales inválidas", reqErr.Message)
	assert.False(t, errors.Is(err, backend.ErrUnauthorized))
}

func TestPendingTransactions(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transacciones/cajero/pendientes", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"transacciones":[
			{"_id":"tx1","tipo":"deposito","estado":"pendiente","monto":5000,"jugadorId":{"_id":"p1","nickname":"ana"}},
			{"_id":"tx2","tipo":"retiro","estado":"en_proceso","monto":2500,"jugadorId":{"_id":"p2"}}
		]}`)
	})

	list, err := c.PendingTransactions(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "tx1", list[0].ID)
	assert.Equal(t, protocol.Minor(5000), list[0].Monto)
	assert.Equal(t, "ana", list[0].Jugador.Nickname)
}

func TestPendingTransactions_Unauthorized(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Token expirado"}`)
	})

	_, err := c.PendingTransactions(context.Background(), "old")
	assert.ErrorIs(t, err, backend.ErrUnauthorized)
	assert.Contains(t, err.Error(), "Token expirado")
}

func TestTransactionDetail(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transacciones/tx1", r.URL.Path)
		_, _ = io.WriteString(w, `{"transaccion":{"_id":"tx1","monto":5000,"jugadorId":{"nombre":"Ana"},"infoPago":{"banco":"Banesco","referencia":"123"}}}`)
	})

	d, err := c.TransactionDetail(context.Background(), "tok-1", "tx1")
	require.NoError(t, err)
	req := d.VerifyRequest()
	assert.Equal(t, "tx1", req.TransaccionID)
	assert.Equal(t, protocol.Minor(5000), req.Monto)
	assert.Equal(t, "Ana", req.Jugador.Nombre)
}

func TestMinimumDeposit(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/config/depositos", r.URL.Path)
		_, _ = io.WriteString(w, `{"configuracion":{"deposito_monto_minimo":25.5}}`)
	})

	m, err := c.MinimumDeposit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, protocol.Minor(2550), m)
}

func TestMinimumDeposit_Missing(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"configuracion":{}}`)
	})

	_, err := c.MinimumDeposit(context.Background())
	assert.Error(t, err)
}

func TestUploadEvidence(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/upload/imagen-rechazo", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, hdr, err := r.FormFile("imagen")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "comprobante.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte("png-bytes"), data)

		_, _ = io.WriteString(w, `{"imagen":{"url":"https://cdn.example/r/1.png"}}`)
	})

	url, err := c.UploadEvidence(context.Background(), "tok-1", protocol.Evidence{
		Filename:    "comprobante.png",
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/r/1.png", url)
}

func TestUploadEvidence_ErrorBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		_, _ = io.WriteString(w, `{"error":"Archivo demasiado grande"}`)
	})

	_, err := c.UploadEvidence(context.Background(), "tok-1", protocol.Evidence{Filename: "a.png", ContentType: "image/png", Data: []byte("x")})
	var reqErr *backend.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Archivo demasiado grande", reqErr.Message)
}
