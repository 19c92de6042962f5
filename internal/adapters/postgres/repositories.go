package postgres

import (
	"github.com/vaultline/trustengine/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Devices    ports.DeviceRepository
	Blacklist  ports.BlacklistRepository
	BlockedIPs ports.BlockedIPRepository
	Ledger     ports.LedgerRepository
	Burns      ports.BurnRepository
	Balances   ports.BalanceRepository
	Outbox     ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Devices:    &deviceRepository{db: db},
		Blacklist:  &blacklistRepository{db: db},
		BlockedIPs: &blockedIPRepository{db: db},
		Ledger:     &ledgerRepository{db: db},
		Burns:      &burnRepository{db: db},
		Balances:   &balanceRepository{db: db},
		Outbox:     &outboxRepository{db: db},
	}
}
