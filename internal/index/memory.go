package index

import (
	"context"
	"sync"

	"golang.org/x/exp/slices"
)

// Memory is a Store holding its records in memory. Peers are kept in
// registration order and lookups return the earliest registered peer.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]string
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]string)}
}

func (m *Memory) Lookup(_ context.Context, fileName string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	peers := m.files[fileName]
	if len(peers) == 0 {
		return "", ErrNotFound
	}
	return peers[0], nil
}

func (m *Memory) Register(_ context.Context, fileName, peerAddr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.files[fileName], peerAddr) {
		return ErrAlreadyShared
	}
	m.files[fileName] = append(m.files[fileName], peerAddr)
	return nil
}

func (m *Memory) Deregister(_ context.Context, fileName, peerAddr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	peers := m.files[fileName]
	i := slices.Index(peers, peerAddr)
	if i < 0 {
		return ErrNotShared
	}
	peers = slices.Delete(peers, i, i+1)
	if len(peers) == 0 {
		delete(m.files, fileName)
		return nil
	}
	m.files[fileName] = peers
	return nil
}

func (m *Memory) Check(_ context.Context, fileName, peerAddr string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !slices.Contains(m.files[fileName], peerAddr) {
		return ErrNotShared
	}
	return nil
}

// Files returns the names of every shared file, sorted.
func (m *Memory) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
