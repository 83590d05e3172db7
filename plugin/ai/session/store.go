package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

const (
	snapshotPrefix = "historial_"
	snapshotSuffix = ".json"

	idLength      = 8
	maxIDAttempts = 16
)

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Dir is where snapshots are written.
	Dir string
	// URLPrefix is the public path Dir is served under, e.g. /static/historial.
	URLPrefix string
	// Welcome is the content of the first assistant turn of every session.
	Welcome string
}

// FileStore implements SessionService with an in-memory map and one JSON
// snapshot per session. Turns on the same session are serialized; different
// sessions never block each other except for the brief map lookup.
type FileStore struct {
	dir       string
	urlPrefix string
	welcome   string

	now   func() time.Time
	newID func() string

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	session *Session
	deleted bool
}

// NewFileStore creates the snapshot directory and returns an empty store.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("session snapshot directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create snapshot directory %s", cfg.Dir)
	}

	return &FileStore{
		dir:       cfg.Dir,
		urlPrefix: strings.TrimRight(cfg.URLPrefix, "/"),
		welcome:   cfg.Welcome,
		now:       time.Now,
		newID:     func() string { return shortuuid.New()[:idLength] },
		sessions:  make(map[string]*entry),
	}, nil
}

// CreateSession starts a new transcript.
func (s *FileStore) CreateSession(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	e := &entry{}

	s.mu.Lock()
	id, err := s.reserveID()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	e.session = &Session{
		ID:        id,
		CreatedAt: now,
		Turns: []Turn{{
			Role:      RoleAssistant,
			Content:   s.welcome,
			Timestamp: now,
		}},
	}
	// Lock the entry before publishing it so no turn can land before the
	// first snapshot is written.
	e.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()
	defer e.mu.Unlock()

	if err := s.persist(e.session); err != nil {
		e.deleted = true
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, err
	}

	slog.Info("session created", "session_id", id)
	return e.session.Clone(), nil
}

// reserveID must be called with s.mu held.
func (s *FileStore) reserveID() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if _, taken := s.sessions[id]; taken {
			continue
		}
		if _, err := os.Stat(s.snapshotPath(id)); err == nil {
			continue
		}
		return id, nil
	}
	return "", errors.Errorf("could not allocate a unique session id after %d attempts", maxIDAttempts)
}

// AppendTurn appends a turn and rewrites the snapshot.
func (s *FileStore) AppendTurn(ctx context.Context, sessionID string, role Role, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := s.lookup(sessionID)
	if e == nil {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return ErrSessionNotFound
	}

	e.session.Turns = append(e.session.Turns, Turn{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})

	return s.persist(e.session)
}

// GetSession returns a copy of the transcript.
func (s *FileStore) GetSession(_ context.Context, sessionID string) (*Session, error) {
	e := s.lookup(sessionID)
	if e == nil {
		return nil, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return nil, ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// ListTranscripts lists snapshot files sorted by name.
func (s *FileStore) ListTranscripts(_ context.Context) ([]TranscriptInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptInfo{}, nil
		}
		return nil, errors.Wrap(err, "failed to read snapshot directory")
	}

	infos := make([]TranscriptInfo, 0, len(entries))
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, snapshotSuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		infos = append(infos, TranscriptInfo{
			File: path.Join(s.urlPrefix, name),
			Name: name,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DeleteTranscript removes a snapshot. Names that are not plain file names
// are treated as missing.
func (s *FileStore) DeleteTranscript(_ context.Context, name string) (bool, error) {
	if !isPlainName(name) {
		return false, nil
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to delete transcript %s", name)
	}

	if id, ok := sessionIDFromName(name); ok {
		s.mu.Lock()
		e := s.sessions[id]
		delete(s.sessions, id)
		s.mu.Unlock()

		if e != nil {
			e.mu.Lock()
			e.deleted = true
			e.mu.Unlock()
		}
	}

	slog.Info("transcript deleted", "name", name)
	return true, nil
}

// Recover loads every snapshot on disk into memory so sessions survive a
// restart. Sessions already in memory are left untouched.
func (s *FileStore) Recover(ctx context.Context) (int, error) {
	infos, err := s.ListTranscripts(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, info := range infos {
		id, ok := sessionIDFromName(info.Name)
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, info.Name))
		if err != nil {
			slog.Warn("failed to read snapshot", "name", info.Name, "error", err)
			continue
		}

		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			slog.Warn("failed to decode snapshot", "name", info.Name, "error", err)
			continue
		}
		sess.ID = id

		s.mu.Lock()
		if _, exists := s.sessions[id]; !exists {
			s.sessions[id] = &entry{session: &sess}
			recovered++
		}
		s.mu.Unlock()
	}

	return recovered, nil
}

func (s *FileStore) lookup(sessionID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// persist rewrites the whole snapshot through a temp file and rename.
func (s *FileStore) persist(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal transcript")
	}

	tmp, err := os.CreateTemp(s.dir, ".historial_*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create snapshot temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write snapshot")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close snapshot")
	}
	if err := os.Rename(tmpName, s.snapshotPath(sess.ID)); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to replace snapshot")
	}
	return nil
}

func (s *FileStore) snapshotPath(id string) string {
	return filepath.Join(s.dir, SnapshotName(id))
}

// SnapshotName returns the file name used for a session snapshot.
func SnapshotName(sessionID string) string {
	return fmt.Sprintf("%s%s%s", snapshotPrefix, sessionID, snapshotSuffix)
}

func sessionIDFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	return id, id != ""
}

func isPlainName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// Ensure FileStore implements SessionService
var _ SessionService = (*FileStore)(nil)
