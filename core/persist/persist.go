// Package persist reads and writes patch files.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/ftl/mfp/core/proc"
)

// Extension of patch files.
const Extension = ".mfp"

// supported are the format versions this store can read.
var supported = version.MustConstraints(version.NewConstraint(">= 1.0, < 2.0"))

// ErrUnsupportedFormat is returned when a patch file was written in a format version this store cannot read.
var ErrUnsupportedFormat = errors.New("unsupported patch format")

// NewStore returns a store for patch files in the given directory of the given file system.
func NewStore(fs afero.Fs, dir string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, dir: dir}
}

// Store of patch files.
type Store struct {
	fs  afero.Fs
	dir string
}

// Path of the patch file with the given name. Names with the patch file
// extension are taken as file paths.
func (s *Store) Path(name string) string {
	if strings.HasSuffix(name, Extension) {
		return name
	}
	return filepath.Join(s.dir, name+Extension)
}

// Save the given patch record under the given name.
func (s *Store) Save(name string, record proc.PatchRecord) error {
	if record.FormatVersion == "" {
		record.FormatVersion = proc.FormatVersion
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "cannot encode patch %s", name)
	}
	filename := s.Path(name)
	if dir := filepath.Dir(filename); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "cannot create directory %s", dir)
		}
	}
	if err := afero.WriteFile(s.fs, filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "cannot write patch %s", filename)
	}
	return nil
}

// Load the patch record with the given name.
func (s *Store) Load(name string) (proc.PatchRecord, error) {
	filename := s.Path(name)
	data, err := afero.ReadFile(s.fs, filename)
	if err != nil {
		return proc.PatchRecord{}, errors.Wrapf(err, "cannot read patch %s", filename)
	}
	return Decode(data)
}

// Decode a patch record and check its format version. Records without a version are taken as current.
func Decode(data []byte) (proc.PatchRecord, error) {
	var record proc.PatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return proc.PatchRecord{}, errors.Wrap(err, "cannot decode patch")
	}
	if record.FormatVersion == "" {
		record.FormatVersion = proc.FormatVersion
		return record, nil
	}
	v, err := version.NewVersion(record.FormatVersion)
	if err != nil {
		return proc.PatchRecord{}, errors.Wrapf(err, "invalid format version %q", record.FormatVersion)
	}
	if !supported.Check(v) {
		return proc.PatchRecord{}, errors.Wrapf(ErrUnsupportedFormat, "version %s", v)
	}
	return record, nil
}

// List the names of all patch files in the directory of the store.
func (s *Store) List() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list %s", s.dir)
	}
	var result []string
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != Extension {
			continue
		}
		result = append(result, strings.TrimSuffix(info.Name(), Extension))
	}
	sort.Strings(result)
	return result, nil
}

// Delete the patch file with the given name.
func (s *Store) Delete(name string) error {
	filename := s.Path(name)
	if err := s.fs.Remove(filename); err != nil {
		return errors.Wrapf(err, "cannot delete patch %s", filename)
	}
	return nil
}
