package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"quillcast/internal/model"
	"quillcast/internal/util"
)

// CombinedHandle names the blended multi-source profile.
const CombinedHandle = "combined"

// Store persists one style profile JSON document per handle under Dir.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store { return &Store{Dir: dir} }

func (s *Store) path(handle string) string {
	h := util.StripHandle(handle)
	if h == "" {
		h = "default"
	}
	return filepath.Join(s.Dir, h+".json")
}

// Load reads the profile for handle. The error names the path when the
// profile has not been analyzed yet.
func (s *Store) Load(handle string) (model.StyleProfile, error) {
	var p model.StyleProfile
	path := s.path(handle)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, fmt.Errorf("style profile not found at %s: run analyze first", path)
		}
		return p, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("corrupt style profile at %s: %w", path, err)
	}
	return p, nil
}

// Save writes the profile for its handle atomically: the document is written
// to a temp file in the same directory and renamed over any prior profile.
func (s *Store) Save(p model.StyleProfile) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(p.Handle)
	tmp, err := os.CreateTemp(s.Dir, ".profile-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Exists reports whether a profile has been saved for handle.
func (s *Store) Exists(handle string) bool {
	_, err := os.Stat(s.path(handle))
	return err == nil
}

// PostingSource resolves the profile the posting path writes in. When
// blending is on and a combined profile exists it wins for every handle;
// otherwise the handle's own profile loads.
type PostingSource struct {
	store *Store
	blend bool
}

// NewPostingSource wraps store for posting-path lookups. Set blend when
// source handles are configured so posts use the combined voice.
func NewPostingSource(store *Store, blend bool) *PostingSource {
	return &PostingSource{store: store, blend: blend}
}

func (p *PostingSource) Load(handle string) (model.StyleProfile, error) {
	if p.blend && p.store.Exists(CombinedHandle) {
		return p.store.Load(CombinedHandle)
	}
	return p.store.Load(handle)
}
