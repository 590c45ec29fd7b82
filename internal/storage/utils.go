package storage

import "github.com/diegoavarela/task-list-sub000/pkg/storage"

func InitStore(dbConnStr string) (*PostgresStore, error) {
	store, err := NewPostgresStore(dbConnStr)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// OpenStore uses Postgres when a connection string is given and the YAML file otherwise.
func OpenStore(dbConnStr, tasksFile string) (storage.Store, error) {
	if dbConnStr != "" {
		store, err := InitStore(dbConnStr)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return NewFileStore(tasksFile)
}
