package token

import (
	"github.com/gravitational/trace"
	"github.com/peterbourgon/diskv"
)

// cacheSizeMaxBytes caps diskv's in-memory cache; a credential is a
// single short string.
const cacheSizeMaxBytes = 1024

type mirrorFile struct {
	dv  *diskv.Diskv
	key string
}

var _ Mirror = (*mirrorFile)(nil)

// NewFileMirror returns a Mirror that keeps the credential in a file
// under dir, keyed by key.
func NewFileMirror(dir, key string) Mirror {
	// Simplest transform function: put all the data files into the base dir.
	flatTransform := func(s string) []string { return []string{} }

	return &mirrorFile{
		dv: diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    flatTransform,
			CacheSizeMax: cacheSizeMaxBytes,
		}),
		key: key,
	}
}

func (m *mirrorFile) Load() (Credential, bool, error) {
	if !m.dv.Has(m.key) {
		return "", false, nil
	}
	b, err := m.dv.Read(m.key)
	if err != nil {
		return "", false, trace.Wrap(err)
	}
	if len(b) == 0 {
		return "", false, nil
	}
	return Credential(b), true, nil
}

func (m *mirrorFile) Save(cred Credential) error {
	return trace.Wrap(m.dv.Write(m.key, []byte(cred)))
}

func (m *mirrorFile) Clear() error {
	if !m.dv.Has(m.key) {
		return nil
	}
	return trace.Wrap(m.dv.Erase(m.key))
}
