package recording

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/solocast/backend/internal/metrics"
)

var (
	ErrMissingUploadID = fmt.Errorf("missing uploadId")
	ErrEmptyChunk      = fmt.Errorf("empty recording chunk")
)

// chunkSession tracks one in-flight chunked upload. nextIndex is
// bookkeeping only: fragments are appended in arrival order, and the
// caller's index is compared against it purely for diagnostics.
type chunkSession struct {
	mu        sync.Mutex
	filePath  string
	fileName  string
	kind      string
	nextIndex int
}

// ChunkResult is the outcome of one Append call.
type ChunkResult struct {
	Finalized bool
	FileName  string
	FilePath  string
	FileURL   string
	Index     int
}

// Assembler reassembles chunked uploads into files under the store.
// Sessions are keyed by caller-supplied upload id; appending after a
// finalize under the same id starts a fresh session, so callers must
// never reuse ids.
type Assembler struct {
	store   *Store
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*chunkSession
}

// NewAssembler creates an assembler over the store. m may be nil.
func NewAssembler(store *Store, m *metrics.Metrics) *Assembler {
	return &Assembler{
		store:    store,
		metrics:  m,
		sessions: make(map[string]*chunkSession),
	}
}

// Append writes one fragment. The first fragment for an upload id
// creates the backing file; later fragments are appended in arrival
// order. isLast finalizes the file and removes the session.
func (a *Assembler) Append(kind, uploadID, label, originalName string, index int, isLast bool, data []byte) (*ChunkResult, error) {
	if uploadID == "" {
		return nil, ErrMissingUploadID
	}
	if len(data) == 0 {
		return nil, ErrEmptyChunk
	}

	sess, created, err := a.session(kind, uploadID, label, originalName)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if created {
		err = os.WriteFile(sess.filePath, data, 0o644)
	} else {
		err = appendFile(sess.filePath, data)
	}
	if err != nil {
		sess.mu.Unlock()
		return nil, fmt.Errorf("write chunk: %w", err)
	}

	if index >= 0 && index != sess.nextIndex {
		log.Printf("Chunk index mismatch for upload %s: got %d, expected %d", uploadID, index, sess.nextIndex)
		if a.metrics != nil {
			a.metrics.IncChunkMismatch()
		}
		sess.nextIndex = index + 1
	} else {
		sess.nextIndex++
	}
	sess.mu.Unlock()

	if isLast {
		a.mu.Lock()
		delete(a.sessions, uploadID)
		a.mu.Unlock()
		return &ChunkResult{
			Finalized: true,
			FileName:  sess.fileName,
			FilePath:  sess.filePath,
			FileURL:   a.store.FileURL(sess.kind, sess.fileName),
			Index:     index,
		}, nil
	}

	return &ChunkResult{Index: index}, nil
}

// session returns the tracked session for uploadID, creating one on
// first use.
func (a *Assembler) session(kind, uploadID, label, originalName string) (*chunkSession, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if sess, ok := a.sessions[uploadID]; ok {
		return sess, false, nil
	}

	dir, err := a.store.KindDir(kind)
	if err != nil {
		return nil, false, err
	}

	name := a.store.FileName(label, originalName)
	sess := &chunkSession{
		filePath: filepath.Join(dir, name),
		fileName: name,
		kind:     kind,
	}
	a.sessions[uploadID] = sess
	return sess, true, nil
}

// ActiveSessions returns the number of in-flight chunked uploads.
func (a *Assembler) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
