package storage

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/diegoavarela/task-list-sub000/pkg/models"
	"github.com/diegoavarela/task-list-sub000/pkg/storage"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk layout of a tasks file.
type fileDocument struct {
	Tasks []models.Task `yaml:"tasks"`
}

// FileStore keeps tasks in memory and rewrites a YAML file on every commit.
type FileStore struct {
	storage.Store
	path    string
	root    storage.Store
	writeMu *sync.Mutex // Shared by the root and its transactions
}

// NewFileStore loads path; a missing file starts an empty store.
func NewFileStore(path string) (*FileStore, error) {
	tasks, err := readTasksFile(path)
	if err != nil {
		return nil, err
	}
	mem := storage.NewMemoryStore(tasks...)
	return &FileStore{Store: mem, path: path, root: mem, writeMu: &sync.Mutex{}}, nil
}

func (s *FileStore) Begin() (storage.Store, error) {
	tx, err := s.Store.Begin()
	if err != nil {
		return nil, err
	}
	return &FileStore{Store: tx, path: s.path, root: s.root, writeMu: s.writeMu}, nil
}

// Commit publishes the transaction and rewrites the file. The file is written
// before the next commit can run, so the last write always holds the newest state.
func (s *FileStore) Commit() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.Store.Commit(); err != nil {
		return err
	}
	all, err := s.root.GetAll()
	if err != nil {
		return err
	}
	return writeTasksFile(s.path, all)
}

func readTasksFile(path string) ([]models.Task, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return doc.Tasks, nil
}

func writeTasksFile(path string, tasks []models.Task) error {
	data, err := yaml.Marshal(fileDocument{Tasks: tasks})
	if err != nil {
		return errors.Wrap(err, "encode tasks")
	}
	// Write next to the target and rename so a crash never leaves half a file
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tasks-*.yaml")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "replace %s", path)
}
