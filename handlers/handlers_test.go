package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/handlers"
	"github.com/ferreirogomes/imovelnft/models"
)

// MockRegistry é uma implementação mock de handlers.Registry para testes de unidade
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) MintProperty(ctx context.Context, to solana.PublicKey, location string, price uint32, document string) (uint32, error) {
	args := m.Called(ctx, to, location, price, document)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *MockRegistry) GetProperty(ctx context.Context, id uint32) (models.Property, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Property), args.Error(1)
}

func (m *MockRegistry) ListProperties(ctx context.Context, filter models.PropertyFilter) ([]models.Property, models.Pagination, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Property), args.Get(1).(models.Pagination), args.Error(2)
}

func (m *MockRegistry) Collection(ctx context.Context) (models.CollectionInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.CollectionInfo), args.Error(1)
}

func (m *MockRegistry) OwnerOf(ctx context.Context, id uint32) (solana.PublicKey, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

func (m *MockRegistry) Balance(ctx context.Context, owner solana.PublicKey) (uint32, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *MockRegistry) TokensOf(ctx context.Context, owner solana.PublicKey) ([]uint32, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]uint32), args.Error(1)
}

func (m *MockRegistry) Events(ctx context.Context, id uint32) ([]models.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockRegistry) Transfer(ctx context.Context, from, to solana.PublicKey, id uint32) error {
	return m.Called(ctx, from, to, id).Error(0)
}

func (m *MockRegistry) TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, id uint32) error {
	return m.Called(ctx, spender, from, to, id).Error(0)
}

func (m *MockRegistry) Approve(ctx context.Context, approver, spender solana.PublicKey, id uint32) error {
	return m.Called(ctx, approver, spender, id).Error(0)
}

func (m *MockRegistry) Burn(ctx context.Context, from solana.PublicKey, id uint32) error {
	return m.Called(ctx, from, id).Error(0)
}

func (m *MockRegistry) BurnFrom(ctx context.Context, spender, from solana.PublicKey, id uint32) error {
	return m.Called(ctx, spender, from, id).Error(0)
}

func newRouter(reg handlers.Registry) http.Handler {
	return handlers.NewRouter(reg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
}

func jsonBody(t *testing.T, v interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

// signedRequest monta uma requisição assinada pela chave informada.
func signedRequest(t *testing.T, key solana.PrivateKey, method, path string, body []byte) *http.Request {
	t.Helper()
	return signedRequestAt(t, key, time.Now(), method, path, body)
}

func signedRequestAt(t *testing.T, key solana.PrivateKey, at time.Time, method, path string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	timestamp := auth.Timestamp(at)
	sig, err := auth.Sign(key, auth.SigningPayload(method, path, timestamp, body))
	require.NoError(t, err)
	req.Header.Set(auth.HeaderSigner, key.PublicKey().String())
	req.Header.Set(auth.HeaderSignature, sig)
	req.Header.Set(auth.HeaderTimestamp, timestamp)
	return req
}

func hasSigner(pub solana.PublicKey) interface{} {
	return mock.MatchedBy(func(ctx context.Context) bool {
		caller, ok := auth.Caller(ctx)
		return ok && caller.Equals(pub)
	})
}

func TestMintProperty(t *testing.T) {
	reg := new(MockRegistry)
	key := solana.NewWallet().PrivateKey
	to := key.PublicKey()

	reg.On("MintProperty", hasSigner(to), to, "Mumbai", uint32(1000), "Doc1").Return(uint32(0), nil).Once()

	body := jsonBody(t, handlers.MintPropertyRequest{To: to.String(), Location: "Mumbai", Price: 1000, Document: "Doc1"})
	rr := httptest.NewRecorder()
	newRouter(reg).ServeHTTP(rr, signedRequest(t, key, http.MethodPost, "/properties", body))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp handlers.MintPropertyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, uint32(0), resp.ID)

	reg.AssertExpectations(t)
}

func TestMintProperty_TamperedBody(t *testing.T) {
	reg := new(MockRegistry)
	key := solana.NewWallet().PrivateKey

	body := jsonBody(t, handlers.MintPropertyRequest{To: key.PublicKey().String(), Location: "Mumbai", Price: 1000})
	req := signedRequest(t, key, http.MethodPost, "/properties", body)
	tampered := jsonBody(t, handlers.MintPropertyRequest{To: key.PublicKey().String(), Location: "Mumbai", Price: 1})
	req.Body = io.NopCloser(bytes.NewReader(tampered))

	rr := httptest.NewRecorder()
	newRouter(reg).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	reg.AssertNotCalled(t, "MintProperty", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMintProperty_ReplayedSignature(t *testing.T) {
	reg := new(MockRegistry)
	key := solana.NewWallet().PrivateKey
	to := key.PublicKey()
	reg.On("MintProperty", hasSigner(to), to, "Mumbai", uint32(1000), "Doc1").Return(uint32(0), nil).Once()
	router := newRouter(reg)

	body := jsonBody(t, handlers.MintPropertyRequest{To: to.String(), Location: "Mumbai", Price: 1000, Document: "Doc1"})
	original := signedRequest(t, key, http.MethodPost, "/properties", body)
	replayed := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewReader(body))
	replayed.Header = original.Header.Clone()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, original)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, replayed)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	reg.AssertNumberOfCalls(t, "MintProperty", 1)
}

func TestMintProperty_SignatureTimestamp(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	body := jsonBody(t, handlers.MintPropertyRequest{To: key.PublicKey().String(), Location: "Mumbai", Price: 1000})

	cases := []struct {
		name string
		req  func() *http.Request
	}{
		{"expired", func() *http.Request {
			return signedRequestAt(t, key, time.Now().Add(-auth.DefaultSignatureWindow-time.Minute), http.MethodPost, "/properties", body)
		}},
		{"from the future", func() *http.Request {
			return signedRequestAt(t, key, time.Now().Add(auth.DefaultSignatureWindow+time.Minute), http.MethodPost, "/properties", body)
		}},
		{"missing header", func() *http.Request {
			req := signedRequest(t, key, http.MethodPost, "/properties", body)
			req.Header.Del(auth.HeaderTimestamp)
			return req
		}},
		{"header changed after signing", func() *http.Request {
			req := signedRequestAt(t, key, time.Now().Add(-auth.DefaultSignatureWindow-time.Minute), http.MethodPost, "/properties", body)
			req.Header.Set(auth.HeaderTimestamp, auth.Timestamp(time.Now()))
			return req
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := new(MockRegistry)
			rr := httptest.NewRecorder()
			newRouter(reg).ServeHTTP(rr, tc.req())

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			reg.AssertNotCalled(t, "MintProperty", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestMintProperty_BadRequests(t *testing.T) {
	reg := new(MockRegistry)
	router := newRouter(reg)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"to":`},
		{"missing recipient", `{"location":"Mumbai","price":1000}`},
		{"invalid recipient", `{"to":"não-é-base58","location":"Mumbai"}`},
		{"negative price", fmt.Sprintf(`{"to":%q,"price":-1}`, solana.NewWallet().PublicKey())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/properties", bytes.NewBufferString(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestMintProperty_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{models.ErrUnauthorized, http.StatusUnauthorized},
		{models.ErrNotInitialized, http.StatusConflict},
		{models.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("%w: disco cheio", models.ErrStorageWriteFailed), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			reg := new(MockRegistry)
			to := solana.NewWallet().PublicKey()
			reg.On("MintProperty", mock.Anything, to, "Mumbai", uint32(1000), "Doc1").Return(uint32(0), tc.err).Once()

			body := jsonBody(t, handlers.MintPropertyRequest{To: to.String(), Location: "Mumbai", Price: 1000, Document: "Doc1"})
			rr := httptest.NewRecorder()
			newRouter(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/properties", bytes.NewReader(body)))

			assert.Equal(t, tc.status, rr.Code)
			reg.AssertExpectations(t)
		})
	}
}

func TestGetProperty(t *testing.T) {
	reg := new(MockRegistry)
	owner := solana.NewWallet().PublicKey()
	prop := models.Property{ID: 1, Owner: owner, Location: "Bangalore", Price: 1500, Document: "DocB"}

	reg.On("GetProperty", mock.Anything, uint32(1)).Return(prop, nil).Once()
	reg.On("GetProperty", mock.Anything, uint32(7)).Return(models.Property{}, models.ErrNotFound).Once()
	router := newRouter(reg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/properties/1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	var got models.Property
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, prop, got)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/properties/7", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/properties/4294967296", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "id fora de 32 bits")

	reg.AssertExpectations(t)
}

func TestListProperties(t *testing.T) {
	reg := new(MockRegistry)
	owner := solana.NewWallet().PublicKey()
	minPrice := uint32(1000)
	filter := models.PropertyFilter{Owner: owner, Location: "mumbai", MinPrice: &minPrice, Page: 2, Limit: 5}
	page := models.Pagination{CurrentPage: 2, TotalPages: 2, TotalItems: 6, ItemsPerPage: 5}
	props := []models.Property{{ID: 0, Owner: owner, Location: "Mumbai", Price: 1000}}

	reg.On("ListProperties", mock.Anything, filter).Return(props, page, nil).Once()

	url := fmt.Sprintf("/properties?owner=%s&location=mumbai&min_price=1000&page=2&limit=5", owner)
	rr := httptest.NewRecorder()
	newRouter(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, url, nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got handlers.PropertyPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, props, got.Data)
	assert.Equal(t, page, got.Pagination)

	reg.AssertExpectations(t)
}

func TestCollection(t *testing.T) {
	reg := new(MockRegistry)
	info := models.CollectionInfo{Collection: models.DefaultCollection(), Admin: solana.NewWallet().PublicKey(), TotalMinted: 3}
	reg.On("Collection", mock.Anything).Return(info, nil).Once()

	rr := httptest.NewRecorder()
	newRouter(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/collection", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got models.CollectionInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, info, got)
}

func TestTokenRoutes(t *testing.T) {
	alice := solana.NewWallet().PrivateKey
	bob := solana.NewWallet().PrivateKey
	carol := solana.NewWallet().PublicKey()

	t.Run("owner", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("OwnerOf", mock.Anything, uint32(3)).Return(alice.PublicKey(), nil).Once()

		rr := httptest.NewRecorder()
		newRouter(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tokens/3/owner", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got handlers.OwnerResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, alice.PublicKey(), got.Owner)
	})

	t.Run("transfer", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("Transfer", hasSigner(alice.PublicKey()), alice.PublicKey(), carol, uint32(3)).Return(nil).Once()

		body := jsonBody(t, handlers.TransferRequest{From: alice.PublicKey().String(), To: carol.String()})
		rr := httptest.NewRecorder()
		newRouter(reg).ServeHTTP(rr, signedRequest(t, alice, http.MethodPost, "/tokens/3/transfer", body))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		reg.AssertExpectations(t)
	})

	t.Run("transfer by spender", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("TransferFrom", hasSigner(bob.PublicKey()), bob.PublicKey(), alice.PublicKey(), carol, uint32(3)).Return(nil).Once()

		body := jsonBody(t, handlers.TransferRequest{From: alice.PublicKey().String(), To: carol.String(), Spender: bob.PublicKey().String()})
		rr := httptest.NewRecorder()
		newRouter(reg).ServeHTTP(rr, signedRequest(t, bob, http.MethodPost, "/tokens/3/transfer", body))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		reg.AssertExpectations(t)
	})

	t.Run("transfer by wrong owner", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("Transfer", mock.Anything, bob.PublicKey(), carol, uint32(3)).Return(models.ErrIncorrectOwner).Once()

		body := jsonBody(t, handlers.TransferRequest{From: bob.PublicKey().String(), To: carol.String()})
		rr := httptest.NewRecorder()
		newRouter(reg).ServeHTTP(rr, signedRequest(t, bob, http.MethodPost, "/tokens/3/transfer", body))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("approve", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("Approve", hasSigner(alice.PublicKey()), alice.PublicKey(), bob.PublicKey(), uint32(3)).Return(nil).Once()

		body := jsonBody(t, handlers.ApproveRequest{Approver: alice.PublicKey().String(), Spender: bob.PublicKey().String()})
		rr := httptest.NewRecorder()
		newRouter(reg).ServeHTTP(rr, signedRequest(t, alice, http.MethodPost, "/tokens/3/approve", body))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		reg.AssertExpectations(t)
	})

	t.Run("burn", func(t *testing.T) {
		reg := new(MockRegistry)
		reg.On("Burn", mock.Anything, alice.PublicKey(), uint32(3)).Return(nil).Once()
		reg.On("BurnFrom", mock.Anything, bob.PublicKey(), alice.PublicKey(), uint32(4)).Return(nil).Once()
		router := newRouter(reg)

		body := jsonBody(t, handlers.BurnRequest{From: alice.PublicKey().String()})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, signedRequest(t, alice, http.MethodPost, "/tokens/3/burn", body))
		assert.Equal(t, http.StatusNoContent, rr.Code)

		body = jsonBody(t, handlers.BurnRequest{From: alice.PublicKey().String(), Spender: bob.PublicKey().String()})
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, signedRequest(t, bob, http.MethodPost, "/tokens/4/burn", body))
		assert.Equal(t, http.StatusNoContent, rr.Code)

		reg.AssertExpectations(t)
	})

	t.Run("events", func(t *testing.T) {
		reg := new(MockRegistry)
		events := []models.Event{{ID: "e1", Kind: models.EventMint, TokenID: 3, To: alice.PublicKey()}}
		reg.On("Events", mock.Anything, uint32(3)).Return(events, nil).Once()

		rr := httptest.NewRecorder()
		newRouter(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tokens/3/events", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []models.Event
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, models.EventMint, got[0].Kind)
	})
}

func TestBalance(t *testing.T) {
	reg := new(MockRegistry)
	owner := solana.NewWallet().PublicKey()
	reg.On("Balance", mock.Anything, owner).Return(uint32(2), nil).Once()
	router := newRouter(reg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts/"+owner.String()+"/balance", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	var got handlers.BalanceResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, uint32(2), got.Balance)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts/xyz0/balance", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTokensOf(t *testing.T) {
	reg := new(MockRegistry)
	owner := solana.NewWallet().PublicKey()
	empty := solana.NewWallet().PublicKey()
	reg.On("TokensOf", mock.Anything, owner).Return([]uint32{0, 3}, nil).Once()
	reg.On("TokensOf", mock.Anything, empty).Return([]uint32(nil), nil).Once()
	router := newRouter(reg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts/"+owner.String()+"/tokens", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	var got handlers.TokensResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, owner, got.Address)
	assert.Equal(t, []uint32{0, 3}, got.Tokens)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts/"+empty.String()+"/tokens", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"address":%q,"tokens":[]}`, empty.String()), rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/accounts/xyz0/tokens", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	reg.AssertExpectations(t)
}

func TestMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(new(MockRegistry)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
