package extproc

import (
	"github.com/BurntSushi/toml"

	"github.com/tablegate/tablegate/errors"
)

// Manifest describes an external tool deployment: where its binary comes
// from, how to verify it, and which extra arguments a site always passes.
// Fields set here override the corresponding inline configuration.
type Manifest struct {
	// Name is the tool identifier; also the cached binary's file name
	Name string `toml:"name"`

	// Source is a go-getter URL, optionally with ?checksum=sha256:...
	Source string `toml:"source"`

	// VersionConstraint is a semver range checked against `<tool> --version`
	VersionConstraint string `toml:"version_constraint"`

	// ExtraArgs is a shell-quoted argument string appended to every invocation
	ExtraArgs string `toml:"extra_args"`
}

// LoadManifest reads and validates a TOML tool manifest.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, errors.Wrapf(err, "parse tool manifest %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Newf("tool manifest %s has unknown key %q", path, undecoded[0].String())
	}
	if m.Name == "" {
		return nil, errors.Newf("tool manifest %s is missing 'name'", path)
	}
	return &m, nil
}
