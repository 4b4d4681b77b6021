// Package index keeps track of which peers share which files.
//
// A file may be shared by any number of peers, a peer shares a given file at
// most once. The package provides the Index contract consumed by peers, an in
// memory Store, an HTTP server exposing a Store and a Client for that server.
package index

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("file is not shared by any peer")
	ErrAlreadyShared = errors.New("file is already shared by the peer")
	ErrNotShared     = errors.New("file is not shared by the peer")
)

// Index resolves file names to the address of a peer sharing them.
type Index interface {
	// Lookup returns the address of a peer sharing the file, ErrNotFound if none does.
	Lookup(ctx context.Context, fileName string) (string, error)
	// Register records the peer as sharing the file, ErrAlreadyShared if it already does.
	Register(ctx context.Context, fileName, peerAddr string) error
	// Deregister removes the record, ErrNotShared if there is none.
	Deregister(ctx context.Context, fileName, peerAddr string) error
}

// Store is an Index that can also affirm a single record.
type Store interface {
	Index
	// Check returns ErrNotShared if the peer does not share the file.
	Check(ctx context.Context, fileName, peerAddr string) error
}

// FileMessage is the JSON representation of a sharing record.
type FileMessage struct {
	FileName    string `json:"fileName"`
	HostAddress string `json:"hostAddress"`
}

// ErrorMessage is the JSON body of every failed index request.
type ErrorMessage struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Client)(nil)
)
