// cmd/seedcatalog/main.go seeds a small demo catalog (price groups, printers,
// items, payment types, discounts) so a fresh install can ring up a bill.
// Safe to run repeatedly: every record is matched by name first.
// Usage: go run ./cmd/seedcatalog
package main

import (
	"context"
	"os"
	"time"

	"billpos/internal/config"
	"billpos/internal/infra"
	"billpos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	err = db.WithContext(context.Background()).Transaction(func(tx *gorm.DB) error {
		return seed(tx, cfg.CashPaymentType)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Msg("demo catalog seeded")
}

func byName[T any](tx *gorm.DB, name string, rec *T) error {
	return tx.Where("name = ?", name).FirstOrCreate(rec).Error
}

// seed writes the demo catalog. cash names the payment type change lines use.
func seed(tx *gorm.DB, cash string) error {
	dineIn := model.PriceGroup{ID: uuid.New(), Name: "Dine In", ShortName: "IN"}
	takeAway := model.PriceGroup{ID: uuid.New(), Name: "Take Away", ShortName: "OUT"}
	for _, pg := range []*model.PriceGroup{&dineIn, &takeAway} {
		if err := byName(tx, pg.Name, pg); err != nil {
			return err
		}
	}

	kitchenPrinter := model.Printer{ID: uuid.New(), Name: "Kitchen", Address: "192.168.1.50", PrintWidth: 42}
	barPrinter := model.Printer{ID: uuid.New(), Name: "Bar", Address: "192.168.1.51", PrintWidth: 32}
	for _, p := range []*model.Printer{&kitchenPrinter, &barPrinter} {
		if err := byName(tx, p.Name, p); err != nil {
			return err
		}
	}

	kitchen := model.PrinterGroup{ID: uuid.New(), Name: "Kitchen"}
	bar := model.PrinterGroup{ID: uuid.New(), Name: "Bar"}
	if err := byName(tx, kitchen.Name, &kitchen); err != nil {
		return err
	}
	if err := byName(tx, bar.Name, &bar); err != nil {
		return err
	}
	if err := tx.Model(&kitchen).Association("Printers").Replace(&kitchenPrinter); err != nil {
		return err
	}
	if err := tx.Model(&bar).Association("Printers").Replace(&barPrinter); err != nil {
		return err
	}

	mains := model.Category{ID: uuid.New(), Name: "Mains", ShortName: "MAIN"}
	drinks := model.Category{ID: uuid.New(), Name: "Drinks", ShortName: "DRK"}
	for _, c := range []*model.Category{&mains, &drinks} {
		if err := byName(tx, c.Name, c); err != nil {
			return err
		}
	}

	toppings := model.Modifier{ID: uuid.New(), Name: "Toppings", MaxItemAmount: 2}
	if err := byName(tx, toppings.Name, &toppings); err != nil {
		return err
	}
	cheese := model.ModifierItem{ID: uuid.New(), ModifierID: toppings.ID, Name: "Cheese", ShortName: "CHS"}
	bacon := model.ModifierItem{ID: uuid.New(), ModifierID: toppings.ID, Name: "Bacon", ShortName: "BCN"}
	for _, mi := range []*model.ModifierItem{&cheese, &bacon} {
		if err := byName(tx, mi.Name, mi); err != nil {
			return err
		}
	}

	burger := model.Item{ID: uuid.New(), Name: "Burger", ShortName: "BURG", CategoryID: mains.ID, PrinterGroupID: &kitchen.ID}
	beer := model.Item{ID: uuid.New(), Name: "Lager Pint", ShortName: "LAGER", CategoryID: drinks.ID, PrinterGroupID: &bar.ID}
	water := model.Item{ID: uuid.New(), Name: "Still Water", ShortName: "WATER", CategoryID: drinks.ID}
	for _, it := range []*model.Item{&burger, &beer, &water} {
		if err := byName(tx, it.Name, it); err != nil {
			return err
		}
	}
	if err := tx.Model(&burger).Association("Modifiers").Replace(&toppings); err != nil {
		return err
	}

	upsert := clause.OnConflict{UpdateAll: true}
	itemPrices := []model.ItemPrice{
		{ItemID: burger.ID, PriceGroupID: dineIn.ID, Price: price("12.50")},
		{ItemID: burger.ID, PriceGroupID: takeAway.ID, Price: price("11.00")},
		{ItemID: beer.ID, PriceGroupID: dineIn.ID, Price: price("5.20")},
		{ItemID: beer.ID, PriceGroupID: takeAway.ID}, // not sold to take away
		{ItemID: water.ID, PriceGroupID: dineIn.ID, Price: price("1.50")},
		{ItemID: water.ID, PriceGroupID: takeAway.ID, Price: price("1.50")},
	}
	if err := tx.Clauses(upsert).Create(&itemPrices).Error; err != nil {
		return err
	}
	modPrices := []model.ModifierItemPrice{
		{ModifierItemID: cheese.ID, PriceGroupID: dineIn.ID, Price: price("1.00")},
		{ModifierItemID: cheese.ID, PriceGroupID: takeAway.ID, Price: price("1.00")},
		{ModifierItemID: bacon.ID, PriceGroupID: dineIn.ID, Price: price("1.50")},
		{ModifierItemID: bacon.ID, PriceGroupID: takeAway.ID, Price: price("1.50")},
	}
	if err := tx.Clauses(upsert).Create(&modPrices).Error; err != nil {
		return err
	}

	for _, name := range []string{cash, "Card"} {
		pt := model.PaymentType{ID: uuid.New(), Name: name}
		if err := byName(tx, name, &pt); err != nil {
			return err
		}
	}

	discounts := []model.Discount{
		{ID: uuid.New(), Name: "Staff 10%", Amount: decimal.NewFromInt(10), IsPercent: true},
		{ID: uuid.New(), Name: "Voucher £5", Amount: decimal.NewFromInt(5)},
	}
	for i := range discounts {
		if err := byName(tx, discounts[i].Name, &discounts[i]); err != nil {
			return err
		}
	}
	return nil
}
