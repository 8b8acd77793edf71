package repo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitraverify/verify-engine/internal/utils"
)

// HashRegistry tracks perceptual hashes of previously seen images in an
// append-only `hash:filename` flat file. Appends are synchronous and
// serialized under a mutex so concurrent writers cannot interleave lines.
type HashRegistry struct {
	path string

	mu     sync.Mutex
	hashes map[string]string
}

// NewHashRegistry loads the registry file; a missing file starts empty.
func NewHashRegistry(path string) (*HashRegistry, error) {
	r := &HashRegistry{
		path:   path,
		hashes: make(map[string]string),
	}

	if path == "" {
		return r, nil
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, utils.NewAppError("hashes.load", "open hash registry", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Hash strings may themselves contain a colon, so split on the last one.
		sep := strings.LastIndex(line, ":")
		if sep <= 0 {
			continue
		}
		r.hashes[line[:sep]] = line[sep+1:]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read hash registry: %w", err)
	}

	return r, nil
}

// Lookup reports whether the hash was seen before and the original filename.
func (r *HashRegistry) Lookup(hash string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	source, ok := r.hashes[hash]
	return source, ok
}

// Append records a new hash and writes it through to the registry file.
func (r *HashRegistry) Append(hash, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.hashes[hash]; exists {
		return nil
	}
	r.hashes[hash] = filename

	if r.path == "" {
		return nil
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create registry dir: %w", err)
		}
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open hash registry for append: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%s:%s\n", hash, filename); err != nil {
		return fmt.Errorf("append hash: %w", err)
	}
	return nil
}

// Count returns the number of known hashes.
func (r *HashRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hashes)
}
