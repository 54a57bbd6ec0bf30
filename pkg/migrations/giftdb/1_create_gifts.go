package giftdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/alged/giftstream/pkg/giftstore"
	mghelper "github.com/alged/giftstream/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating gifts table...")
		if err := mghelper.CreateSchema(ctx, db, &giftstore.GiftDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelUniqueIndexes(ctx, db, &giftstore.GiftDao{}, "external_gift_id"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &giftstore.GiftDao{},
			"from_id", "is_withdrawn", "received_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping gifts table...")
		return mghelper.DropTables(ctx, db, &giftstore.GiftDao{})
	})
}
