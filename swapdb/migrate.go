package swapdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrationsPath is the directory of the embedded schema files.
const migrationsPath = "migrations"

// applyMigrations brings the schema of the database up to the latest
// version found in the given file system.
func applyMigrations(fsys fs.FS, driver database.Driver, path,
	dbName string) error {

	src, err := iofs.New(fsys, path)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Infof("Applying migrations from version=%v, dirty=%v", version,
		dirty)

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

// replacerFS is a file system that rewrites the content of the files of its
// parent on the fly.
type replacerFS struct {
	parentFS fs.FS
	replaces map[string]string
}

// A compile-time assertion to make sure replacerFS implements the fs.FS
// interface.
var _ fs.FS = (*replacerFS)(nil)

// newReplacerFS creates a new file system that applies the given string
// replacements to every file read from the parent.
func newReplacerFS(parent fs.FS, replaces map[string]string) *replacerFS {
	return &replacerFS{
		parentFS: parent,
		replaces: replaces,
	}
}

// Open opens the named file, replacing its content.
func (t *replacerFS) Open(name string) (fs.File, error) {
	f, err := t.parentFS.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if stat.IsDir() {
		return f, nil
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	for from, to := range t.replaces {
		content = bytes.ReplaceAll(content, []byte(from), []byte(to))
	}

	return &replacerFile{
		Reader: bytes.NewReader(content),
		info:   stat,
	}, nil
}

// ReadDir lists the directory of the parent file system.
func (t *replacerFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(t.parentFS, name)
}

type replacerFile struct {
	*bytes.Reader

	info fs.FileInfo
}

func (f *replacerFile) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

func (f *replacerFile) Close() error {
	return nil
}
