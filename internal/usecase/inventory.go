package usecase

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 予約する1行分
type ReserveLine struct {
	ProductID int64
	VariantID *int64
	Qty       int64
}

// InventoryReconciler は在庫が変化する唯一の場所。
// 減算は条件付きUPDATE、戻しは台帳で冪等にする。
type InventoryReconciler struct{}

// ReserveAndDecrement は全行の在庫を検証しつつ減算する。
// 1行でも足りなければエラーを返し、囲んでいるトランザクションごと巻き戻す（all-or-nothing）。
func (InventoryReconciler) ReserveAndDecrement(ctx context.Context, r repo.TxRepos, lines []ReserveLine) error {
	for _, line := range lines {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, line.ProductID, line.Qty)
		if err != nil {
			return NewInternalError("db error")
		}
		if !ok {
			return NewConflictError("item no longer available")
		}

		// 在庫0になったらOUT_OF_STOCKへ
		if err := r.Inventory().MarkOutOfStockIfDepleted(ctx, line.ProductID); err != nil {
			return NewInternalError("db error")
		}
	}
	return nil
}

// Restock は注文1件分の在庫を戻す。台帳のuniqueで二重戻しを防ぐ。
// 既に戻し済みならfalseを返して何もしない。
func (InventoryReconciler) Restock(ctx context.Context, r repo.TxRepos, orderID int64, reason string) (bool, error) {
	created, err := r.Inventory().CreateRestock(ctx, orderID, reason)
	if err != nil {
		return false, NewInternalError("db error")
	}
	if !created {
		return false, nil
	}

	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return false, NewInternalError("db error")
	}

	for _, it := range items {
		if it.Status == model.OrderItemStatusCancelled {
			continue
		}
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return false, NewInternalError("db error")
		}
		if err := r.Inventory().MarkActiveIfRestocked(ctx, it.ProductID); err != nil {
			return false, NewInternalError("db error")
		}
	}

	return true, nil
}
