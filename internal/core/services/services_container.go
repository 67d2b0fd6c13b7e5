package services

import (
	"fmt"

	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/platform/config"
	"github.com/SscSPs/money_sync_app/internal/utils"
)

// ContainerOption is a functional option for wiring the service container.
type ContainerOption func(*containerDeps)

type containerDeps struct {
	remote      portsrepo.RemoteBlobStore
	statusQueue portssvc.StatusJobQueue
	googleDrive portssvc.GoogleDriveConnectorSvc
}

// WithRemoteStore enables the sync engine against remote.
func WithRemoteStore(remote portsrepo.RemoteBlobStore) ContainerOption {
	return func(d *containerDeps) {
		d.remote = remote
	}
}

// WithContainerStatusQueue hands pending transactions to a background worker.
func WithContainerStatusQueue(queue portssvc.StatusJobQueue) ContainerOption {
	return func(d *containerDeps) {
		d.statusQueue = queue
	}
}

// WithGoogleDrive reuses a connector created before the container, for
// example because the Drive blob store depends on it.
func WithGoogleDrive(connector portssvc.GoogleDriveConnectorSvc) ContainerOption {
	return func(d *containerDeps) {
		d.googleDrive = connector
	}
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, uow portsrepo.UnitOfWork, options ...ContainerOption) (*portssvc.ServiceContainer, error) {
	deps := &containerDeps{}
	for _, option := range options {
		option(deps)
	}

	gate := NewLedgerGate()
	cache, err := NewCategoryCache(cfg.CategoryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create category cache: %w", err)
	}

	container := &portssvc.ServiceContainer{}
	container.Category = NewCategoryService(uow, gate, cache)
	container.Account = NewAccountService(uow, gate)

	txnOptions := []TransactionServiceOption{WithTransactionCategoryCache(cache)}
	if deps.statusQueue != nil {
		txnOptions = append(txnOptions, WithStatusQueue(deps.statusQueue))
	}
	container.Transaction = NewTransactionService(uow, gate, txnOptions...)

	container.Budget = NewBudgetService(uow, gate,
		WithAlertThresholds(cfg.AlertThresholds()),
		WithBudgetCategoryCache(cache),
	)

	container.Auth = NewAuthService(cfg)
	container.GoogleDrive = deps.googleDrive
	if container.GoogleDrive == nil {
		container.GoogleDrive = NewGoogleDriveConnector(cfg)
	}

	secret := cfg.SyncMasterSecret
	if secret == "" && cfg.DeviceKeyPath != "" {
		// Without a passphrase the backup is bound to this device's key file.
		secret, err = utils.LoadOrCreateDeviceKey(cfg.DeviceKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load device key: %w", err)
		}
	}
	if secret != "" {
		container.Encryption, err = NewEncryptionService(secret, cfg.SyncKDFIterations)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryption service: %w", err)
		}
	}

	if deps.remote != nil {
		if container.Encryption == nil {
			return nil, fmt.Errorf("sync provider %q needs SYNC_MASTER_SECRET or DEVICE_KEY_PATH", cfg.SyncProvider)
		}
		container.Sync = NewSyncService(uow, gate, deps.remote, container.Encryption,
			WithSyncObjectName(cfg.SyncObjectName),
			WithRemoteTimeout(cfg.SyncRemoteTimeout),
			WithAutoCompleteMerge(cfg.SyncAutoCompleteMerge),
			WithSyncCategoryCache(cache),
			WithConflictAppliers(container.Transaction, container.Account, container.Category),
		)
	}

	return container, nil
}
