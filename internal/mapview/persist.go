package mapview

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-map/internal/model"
)

// PersistedState is the slice of Store state that outlives a session.
type PersistedState struct {
	FavoriteIDs []string             `yaml:"favorite_ids"`
	Filters     model.FilterCriteria `yaml:"filters"`
}

// Persister loads and saves PersistedState.
type Persister interface {
	Load() (PersistedState, error)
	Save(PersistedState) error
}

// FilePersister stores PersistedState as YAML at a fixed path.
type FilePersister struct {
	mu   sync.Mutex
	path string
}

// NewFilePersister creates a FilePersister writing to path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load implements Persister. A missing file yields the zero state.
func (p *FilePersister) Load() (PersistedState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var state PersistedState
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state, nil
		}
		return state, eris.Wrap(err, "mapview: read persisted state")
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return PersistedState{}, eris.Wrap(err, "mapview: decode persisted state")
	}
	return state, nil
}

// Save implements Persister. The file is replaced atomically.
func (p *FilePersister) Save(state PersistedState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := yaml.Marshal(state)
	if err != nil {
		return eris.Wrap(err, "mapview: encode persisted state")
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return eris.Wrap(err, "mapview: create state dir")
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return eris.Wrap(err, "mapview: write persisted state")
	}
	return eris.Wrap(os.Rename(tmp, p.path), "mapview: replace persisted state")
}
