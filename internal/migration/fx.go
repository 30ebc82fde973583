package migration

import (
	"github.com/evetools/oretax/internal/config"
	creditdomain "github.com/evetools/oretax/internal/credit/domain"
	invoicedomain "github.com/evetools/oretax/internal/invoice/domain"
	miningdomain "github.com/evetools/oretax/internal/miningledger/domain"
	reconciledomain "github.com/evetools/oretax/internal/reconcile/domain"
	rosterdomain "github.com/evetools/oretax/internal/roster/domain"
	sdedomain "github.com/evetools/oretax/internal/sde/domain"
	"github.com/evetools/oretax/internal/seed"
	taxationdomain "github.com/evetools/oretax/internal/taxation/domain"
	taxratedomain "github.com/evetools/oretax/internal/taxrate/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// the versioned DDL is postgres only; sqlite (dev scratch
		// databases) gets its schema from the models directly
		if cfg.DBType == "sqlite" {
			if err := conn.AutoMigrate(
				&sdedomain.ItemType{},
				&rosterdomain.Character{},
				&taxratedomain.TaxRate{},
				&taxratedomain.Exemption{},
				&miningdomain.MiningActivityRecord{},
				&taxationdomain.TaxCalculation{},
				&invoicedomain.Invoice{},
				&reconciledomain.WalletTransfer{},
				&reconciledomain.PaymentClaim{},
				&creditdomain.CreditBalance{},
			); err != nil {
				return err
			}
			return seed.EnsureCoreItemTypes(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
		return seed.EnsureCoreItemTypes(conn)
	}),
)
