package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/iamp15/elpatio-appCajeros/internal/protocol"
)

// ErrUnauthorized is what FakeBackend returns for an unknown token.
var ErrUnauthorized = errors.New("fake backend: unauthorized")

// FakeBackend is an in-memory stand-in for the HTTP backend.
//
// Thread-safety: safe for concurrent use; its methods run on loop.Go
// goroutines.
type FakeBackend struct {
	mu sync.Mutex

	Minimum      protocol.Minor
	MinimumErr   error
	UploadURL    string
	UploadErr    error
	LoginResult  protocol.LoginResult
	LoginErr     error
	Pending      []protocol.TransactionSummary
	PendingErr   error
	Details      map[string]protocol.TransactionDetail

	uploads      []protocol.Evidence
	listCalls    int
	minimumCalls int
}

func (b *FakeBackend) Login(_ context.Context, _, _ string) (protocol.LoginResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LoginResult, b.LoginErr
}

func (b *FakeBackend) PendingTransactions(_ context.Context, _ string) ([]protocol.TransactionSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	return append([]protocol.TransactionSummary(nil), b.Pending...), b.PendingErr
}

func (b *FakeBackend) TransactionDetail(_ context.Context, _, id string) (protocol.TransactionDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.Details[id]
	if !ok {
		return protocol.TransactionDetail{}, errors.New("fake backend: not found")
	}
	return d, nil
}

func (b *FakeBackend) MinimumDeposit(_ context.Context) (protocol.Minor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumCalls++
	return b.Minimum, b.MinimumErr
}

func (b *FakeBackend) UploadEvidence(_ context.Context, _ string, ev protocol.Evidence) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, ev)
	if b.UploadErr != nil {
		return "", b.UploadErr
	}
	return b.UploadURL, nil
}

// Uploads returns the evidence received.
func (b *FakeBackend) Uploads() []protocol.Evidence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Evidence(nil), b.uploads...)
}

// ListCalls returns how many times the pending list was requested.
func (b *FakeBackend) ListCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

// MinimumCalls returns how many times the minimum deposit was requested.
func (b *FakeBackend) MinimumCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.minimumCalls
}

// Set mutates the backend under its lock.
func (b *FakeBackend) Set(fn func(b *FakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}
