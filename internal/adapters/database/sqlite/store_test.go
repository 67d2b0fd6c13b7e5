package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/SscSPs/money_sync_app/internal/adapters/database/sqlite"
	"github.com/SscSPs/money_sync_app/internal/adapters/database/storetest"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) portsrepo.LedgerStore {
		s, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
