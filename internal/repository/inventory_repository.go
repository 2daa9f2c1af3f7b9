package repository

import "context"

type InventoryRepository interface {
	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル・決済失敗）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 在庫0になった商品をOUT_OF_STOCKへ
	MarkOutOfStockIfDepleted(ctx context.Context, productID int64) error

	// 在庫が戻った商品をACTIVEへ
	MarkActiveIfRestocked(ctx context.Context, productID int64) error

	// 在庫戻し台帳に記録。既に戻し済みならfalse。
	CreateRestock(ctx context.Context, orderID int64, reason string) (bool, error)
}
