package files

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileAPI is the read-only filesystem surface used to inspect the project
// directory and the system hosts file.
type FileAPI interface {
	ReadJSON(file string, dest interface{}) error
	Open(file string) (io.ReadCloser, error)
	Exist(path string) (bool, error)
}

type FileSystem struct {
}

func NewFileSystem() *FileSystem {
	return &FileSystem{}
}

// ReadJSON reads a given file and stores the parsed content into a destination value.
// A successful call returns err == nil, not err == EOF.
func (f *FileSystem) ReadJSON(file string, dest interface{}) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "failed to read data from file")
	}

	err = json.Unmarshal(b, dest)
	if err != nil {
		return errors.Wrapf(err, "failed to decode data into %T", dest)
	}

	return nil
}

func (f *FileSystem) Open(file string) (io.ReadCloser, error) {
	return os.Open(file)
}

// Exist returns a boolean indicating whether a file or directory with a given path exists.
func (f *FileSystem) Exist(path string) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
