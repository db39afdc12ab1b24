package service

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"testops/internal/config"
	"testops/internal/logging"
	"testops/internal/repository"

	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.Open(config.DatabaseConfig{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "test.db"),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewStore(db)
}

func newCaseService(t *testing.T, store *repository.Store) TestCaseService {
	t.Helper()
	return NewTestCaseService(store, nil, config.Default().Listing, logging.Discard(), nil)
}

func decodePayload(t *testing.T, body string) *TestCasePayload {
	t.Helper()
	var p TestCasePayload
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return &p
}

type recordedEvent struct {
	topic, msgType string
	payload        interface{}
}

type fakeNotifier struct {
	events []recordedEvent
}

func (f *fakeNotifier) Broadcast(topic, msgType string, payload interface{}) {
	f.events = append(f.events, recordedEvent{topic: topic, msgType: msgType, payload: payload})
}
