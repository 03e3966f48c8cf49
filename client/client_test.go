package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/client"
	"github.com/ferreirogomes/imovelnft/handlers"
	"github.com/ferreirogomes/imovelnft/ledger"
	"github.com/ferreirogomes/imovelnft/models"
	"github.com/ferreirogomes/imovelnft/services"
	"github.com/ferreirogomes/imovelnft/storage"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := services.NewRegistryService(storage.NewMemoryStore(), ledger.New(auth.SignerAuthorizer{}), services.WithLogger(logger))
	require.NoError(t, svc.Initialize(context.Background(), solana.NewWallet().PublicKey(), models.Collection{}))

	srv := httptest.NewServer(handlers.NewRouter(svc, logger, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_MintAndQuery(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	key := solana.NewWallet().PrivateKey
	user := key.PublicKey()
	c := client.New(srv.URL, client.WithKey(key))

	signer, ok := c.Signer()
	require.True(t, ok)
	assert.Equal(t, user, signer)

	id, err := c.MintProperty(ctx, user, "Mumbai", 1000, "Doc1")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)

	id, err = c.MintProperty(ctx, user, "Bangalore", 1500, "DocB")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	prop, err := c.GetProperty(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.Property{ID: 1, Owner: user, Location: "Bangalore", Price: 1500, Document: "DocB"}, prop)

	_, err = c.GetProperty(ctx, 5)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	info, err := c.Collection(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), info.TotalMinted)
	assert.Equal(t, "PROP", info.Symbol)

	props, page, err := c.ListProperties(ctx, models.PropertyFilter{Owner: user, Location: "bang"})
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, uint32(1), props[0].ID)
	assert.Equal(t, 1, page.TotalItems)

	balance, err := c.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), balance)
}

func TestClient_UnsignedMintIsRejected(t *testing.T) {
	srv := newServer(t)
	c := client.New(srv.URL)

	_, ok := c.Signer()
	assert.False(t, ok)

	_, err := c.MintProperty(context.Background(), solana.NewWallet().PublicKey(), "Mumbai", 1000, "Doc1")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestClient_MintForSomeoneElseIsRejected(t *testing.T) {
	srv := newServer(t)
	c := client.New(srv.URL, client.WithKey(solana.NewWallet().PrivateKey))

	_, err := c.MintProperty(context.Background(), solana.NewWallet().PublicKey(), "Mumbai", 1000, "Doc1")
	assert.True(t, errors.Is(err, models.ErrUnauthorized))
}

func TestClient_TokenLifecycle(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	aliceKey := solana.NewWallet().PrivateKey
	bobKey := solana.NewWallet().PrivateKey
	alice := client.New(srv.URL, client.WithKey(aliceKey))
	bob := client.New(srv.URL, client.WithKey(bobKey))
	carol := solana.NewWallet().PublicKey()

	id, err := alice.MintProperty(ctx, aliceKey.PublicKey(), "Mumbai", 1000, "Doc1")
	require.NoError(t, err)

	err = bob.Transfer(ctx, aliceKey.PublicKey(), carol, id)
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	err = bob.Transfer(ctx, bobKey.PublicKey(), carol, id)
	assert.True(t, errors.Is(err, models.ErrIncorrectOwner))

	require.NoError(t, alice.Approve(ctx, aliceKey.PublicKey(), bobKey.PublicKey(), id))
	require.NoError(t, bob.TransferFrom(ctx, bobKey.PublicKey(), aliceKey.PublicKey(), bobKey.PublicKey(), id))

	owner, err := alice.OwnerOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, bobKey.PublicKey(), owner)

	held, err := alice.TokensOf(ctx, bobKey.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, []uint32{id}, held)
	held, err = alice.TokensOf(ctx, aliceKey.PublicKey())
	require.NoError(t, err)
	assert.Empty(t, held)

	require.NoError(t, bob.Burn(ctx, bobKey.PublicKey(), id))

	_, err = alice.GetProperty(ctx, id)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	events, err := alice.Events(ctx, id)
	require.NoError(t, err)
	kinds := make([]models.EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []models.EventKind{models.EventMint, models.EventApprove, models.EventTransfer, models.EventBurn}, kinds)
}
