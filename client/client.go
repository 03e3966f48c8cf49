// Package client fala com a API HTTP do registro, assinando as requisições
// com uma chave solana.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/handlers"
	"github.com/ferreirogomes/imovelnft/models"
)

const defaultTimeout = 10 * time.Second

// Client chama o servidor do registro. Sem chave as requisições vão sem
// assinatura e só as consultas funcionam.
type Client struct {
	client *http.Client
	server string
	key    solana.PrivateKey
}

type Option func(c *Client)

// WithKey assina todas as requisições com a chave informada.
func WithKey(key solana.PrivateKey) Option {
	return func(c *Client) {
		c.key = key
	}
}

// WithHTTPClient troca o http.Client usado nas chamadas.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func New(server string, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{Timeout: defaultTimeout},
		server: strings.TrimRight(server, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signer retorna a identidade que assina as requisições, se houver chave.
func (c *Client) Signer() (solana.PublicKey, bool) {
	if len(c.key) == 0 {
		return solana.PublicKey{}, false
	}
	return c.key.PublicKey(), true
}

func (c *Client) MintProperty(ctx context.Context, to solana.PublicKey, location string, price uint32, document string) (uint32, error) {
	var resp handlers.MintPropertyResponse
	err := c.do(ctx, http.MethodPost, "/properties", nil, handlers.MintPropertyRequest{
		To:       to.String(),
		Location: location,
		Price:    price,
		Document: document,
	}, &resp)
	return resp.ID, err
}

func (c *Client) GetProperty(ctx context.Context, id uint32) (models.Property, error) {
	var prop models.Property
	err := c.do(ctx, http.MethodGet, "/properties/"+formatID(id), nil, nil, &prop)
	return prop, err
}

func (c *Client) ListProperties(ctx context.Context, filter models.PropertyFilter) ([]models.Property, models.Pagination, error) {
	q := url.Values{}
	if !filter.Owner.IsZero() {
		q.Set("owner", filter.Owner.String())
	}
	if filter.Location != "" {
		q.Set("location", filter.Location)
	}
	if filter.MinPrice != nil {
		q.Set("min_price", formatID(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		q.Set("max_price", formatID(*filter.MaxPrice))
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var page handlers.PropertyPage
	err := c.do(ctx, http.MethodGet, "/properties", q, nil, &page)
	return page.Data, page.Pagination, err
}

func (c *Client) Collection(ctx context.Context) (models.CollectionInfo, error) {
	var info models.CollectionInfo
	err := c.do(ctx, http.MethodGet, "/collection", nil, nil, &info)
	return info, err
}

func (c *Client) OwnerOf(ctx context.Context, id uint32) (solana.PublicKey, error) {
	var resp handlers.OwnerResponse
	err := c.do(ctx, http.MethodGet, "/tokens/"+formatID(id)+"/owner", nil, nil, &resp)
	return resp.Owner, err
}

func (c *Client) Balance(ctx context.Context, owner solana.PublicKey) (uint32, error) {
	var resp handlers.BalanceResponse
	err := c.do(ctx, http.MethodGet, "/accounts/"+owner.String()+"/balance", nil, nil, &resp)
	return resp.Balance, err
}

func (c *Client) TokensOf(ctx context.Context, owner solana.PublicKey) ([]uint32, error) {
	var resp handlers.TokensResponse
	err := c.do(ctx, http.MethodGet, "/accounts/"+owner.String()+"/tokens", nil, nil, &resp)
	return resp.Tokens, err
}

func (c *Client) Events(ctx context.Context, id uint32) ([]models.Event, error) {
	var events []models.Event
	err := c.do(ctx, http.MethodGet, "/tokens/"+formatID(id)+"/events", nil, nil, &events)
	return events, err
}

func (c *Client) Transfer(ctx context.Context, from, to solana.PublicKey, id uint32) error {
	return c.do(ctx, http.MethodPost, "/tokens/"+formatID(id)+"/transfer", nil, handlers.TransferRequest{
		From: from.String(),
		To:   to.String(),
	}, nil)
}

func (c *Client) TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, id uint32) error {
	return c.do(ctx, http.MethodPost, "/tokens/"+formatID(id)+"/transfer", nil, handlers.TransferRequest{
		From:    from.String(),
		To:      to.String(),
		Spender: spender.String(),
	}, nil)
}

func (c *Client) Approve(ctx context.Context, approver, spender solana.PublicKey, id uint32) error {
	return c.do(ctx, http.MethodPost, "/tokens/"+formatID(id)+"/approve", nil, handlers.ApproveRequest{
		Approver: approver.String(),
		Spender:  spender.String(),
	}, nil)
}

func (c *Client) Burn(ctx context.Context, from solana.PublicKey, id uint32) error {
	return c.do(ctx, http.MethodPost, "/tokens/"+formatID(id)+"/burn", nil, handlers.BurnRequest{
		From: from.String(),
	}, nil)
}

func (c *Client) BurnFrom(ctx context.Context, spender, from solana.PublicKey, id uint32) error {
	return c.do(ctx, http.MethodPost, "/tokens/"+formatID(id)+"/burn", nil, handlers.BurnRequest{
		From:    from.String(),
		Spender: spender.String(),
	}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("falha ao serializar requisição: %w", err)
		}
	}

	target := c.server + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(c.key) > 0 {
		timestamp := auth.Timestamp(time.Now())
		sig, err := auth.Sign(c.key, auth.SigningPayload(method, path, timestamp, body))
		if err != nil {
			return err
		}
		req.Header.Set(auth.HeaderSigner, c.key.PublicKey().String())
		req.Header.Set(auth.HeaderSignature, sig)
		req.Header.Set(auth.HeaderTimestamp, timestamp)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("falha ao chamar %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errorForStatus(resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("resposta inválida de %s %s: %w", method, path, err)
	}
	return nil
}

// errorForStatus reconstrói o erro do registro a partir do código HTTP.
func errorForStatus(status int, msg string) error {
	var kind error
	switch status {
	case http.StatusNotFound:
		kind = models.ErrNotFound
	case http.StatusUnauthorized:
		kind = models.ErrUnauthorized
	case http.StatusForbidden:
		kind = models.ErrIncorrectOwner
	case http.StatusBadRequest:
		kind = models.ErrInvalidInput
	case http.StatusConflict:
		if strings.Contains(msg, models.ErrAlreadyInitialized.Error()) {
			kind = models.ErrAlreadyInitialized
		} else {
			kind = models.ErrNotInitialized
		}
	default:
		if status >= 500 {
			kind = models.ErrStorageWriteFailed
		} else {
			return fmt.Errorf("status inesperado %d: %s", status, msg)
		}
	}
	return fmt.Errorf("%w (HTTP %d): %s", kind, status, msg)
}

func formatID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
