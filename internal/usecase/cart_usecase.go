package usecase

import (
	"context"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// カートサマリのキャッシュ（redis実装はinfra/cache）。
// 失敗はミス扱い。業務処理は止めない。
type CartCache interface {
	GetSummary(ctx context.Context, buyerID int64) (CartSummary, bool)
	SetSummary(ctx context.Context, buyerID int64, s CartSummary)
	Invalidate(ctx context.Context, buyerID int64)
}

type CartSummary struct {
	ItemCount int64 `json:"item_count"`
	Subtotal  int64 `json:"subtotal"`
	Discount  int64 `json:"discount"`
	Total     int64 `json:"total"`
}

// CartUsecase は /cart の業務ロジック。
// 在庫はここでは強チェックしない（確定時に再検証する）。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	couponRepo   repo.CouponRepository
	cache        CartCache
	cartTTL      time.Duration
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	couponRepo repo.CouponRepository,
	cache CartCache,
	cartTTL time.Duration,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		couponRepo:   couponRepo,
		cache:        cache,
		cartTTL:      cartTTL,
	}
}

type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id,omitempty"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	CouponCode string             `json:"coupon_code,omitempty"`
	Summary    CartSummary        `json:"summary"`
}

type AddCartInput struct {
	ProductID int64
	VariantID *int64
	Quantity  int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, buyerID int64) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewUnauthorizedError("unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByBuyerID(ctx, buyerID, u.cartTTL)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}

	return u.buildCartResponse(ctx, cart)
}

// AddToCart はカートに追加（同一商品＋同一バリエーションは数量加算）。
// 在庫不足はここでは弾かない（ソフトチェックのみ、確定時に再検証）。
func (u *CartUsecase) AddToCart(ctx context.Context, buyerID int64, in AddCartInput) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewUnauthorizedError("unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewValidationError("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewValidationError("invalid quantity")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByBuyerID(ctx, buyerID, u.cartTTL)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}

	// 商品チェック（公開中のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewNotFoundError("product not found")
	}
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	if !p.IsPurchasable() {
		return CartResponse{}, NewValidationError("product not available")
	}

	// 追加時点の表示用価格（バリエーションの上書きがあれば優先）
	price := p.Price
	if in.VariantID != nil {
		v, err := u.productRepo.FindVariantByID(ctx, *in.VariantID)
		if err == repo.ErrNotFound {
			return CartResponse{}, NewNotFoundError("variant not found")
		}
		if err != nil {
			return CartResponse{}, NewInternalError("db error")
		}
		if v.ProductID != p.ID {
			return CartResponse{}, NewValidationError("variant does not belong to product")
		}
		if v.Price > 0 {
			price = v.Price
		}
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.VariantID, in.Quantity, price); err != nil {
		return CartResponse{}, NewInternalError("db error")
	}

	u.cache.Invalidate(ctx, buyerID)

	return u.buildCartResponse(ctx, cart)
}

// 数量変更。qty=0 は削除、負数はエラー。
func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, buyerID int64, cartItemID int64, qty int64) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewUnauthorizedError("unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewValidationError("invalid id")
	}
	if qty < 0 {
		return CartResponse{}, NewValidationError("invalid quantity")
	}
	if qty == 0 {
		return u.RemoveItem(ctx, buyerID, cartItemID)
	}

	owned, err := u.cartItemRepo.IsOwnedByBuyer(ctx, cartItemID, buyerID)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	if !owned {
		return CartResponse{}, NewNotFoundError("not found")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, qty); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewNotFoundError("not found")
		}
		return CartResponse{}, NewInternalError("db error")
	}

	u.cache.Invalidate(ctx, buyerID)

	cart, err := u.cartRepo.FindActiveByBuyerID(ctx, buyerID)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	return u.buildCartResponse(ctx, cart)
}

// 明細削除
func (u *CartUsecase) RemoveItem(ctx context.Context, buyerID int64, cartItemID int64) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewUnauthorizedError("unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewValidationError("invalid id")
	}

	owned, err := u.cartItemRepo.IsOwnedByBuyer(ctx, cartItemID, buyerID)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	if !owned {
		return CartResponse{}, NewNotFoundError("not found")
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewNotFoundError("not found")
		}
		return CartResponse{}, NewInternalError("db error")
	}

	u.cache.Invalidate(ctx, buyerID)

	cart, err := u.cartRepo.FindActiveByBuyerID(ctx, buyerID)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	return u.buildCartResponse(ctx, cart)
}

// カートを空にする
func (u *CartUsecase) Clear(ctx context.Context, buyerID int64) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewUnauthorizedError("unauthorized")
	}

	cart, err := u.cartRepo.FindActiveByBuyerID(ctx, buyerID)
	if err == repo.ErrNotFound {
		return CartResponse{Items: []CartItemResponse{}}, nil
	}
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}

	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, NewInternalError("db error")
	}

	u.cache.Invalidate(ctx, buyerID)

	return u.buildCartResponse(ctx, cart)
}

// クーポン適用。同じコードの再適用はConflict。
func (u *CartUsecase) ApplyCoupon(ctx context.Context, buyerID int64, code string) (CartResponse, error) {
	if buyerID <= 0 {
		return CartResponse{}, NewUnauthorizedError("unauthorized")
	}
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 50 {
		return CartResponse{}, NewValidationError("invalid code")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByBuyerID(ctx, buyerID, u.cartTTL)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}

	if cart.CouponCode == code {
		return CartResponse{}, NewConflictError("coupon already applied")
	}

	coupon, err := u.couponRepo.FindByCode(ctx, code)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewNotFoundError("coupon not found")
	}
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	if !coupon.IsUsable(time.Now()) {
		return CartResponse{}, NewValidationError("coupon not usable")
	}

	// 最低購入額チェックは現時点のサブトータルで行う
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	var subtotal int64 = 0
	for _, it := range items {
		subtotal += it.UnitPriceSnapshot * it.Quantity
	}
	if subtotal < coupon.MinSubtotal {
		return CartResponse{}, NewValidationError("subtotal below coupon minimum")
	}

	if err := u.cartRepo.SetCouponCode(ctx, cart.ID, code); err != nil {
		return CartResponse{}, NewInternalError("db error")
	}
	cart.CouponCode = code

	u.cache.Invalidate(ctx, buyerID)

	return u.buildCartResponse(ctx, cart)
}

// Summary はキャッシュ優先でサマリを返す。
func (u *CartUsecase) Summary(ctx context.Context, buyerID int64) (CartSummary, error) {
	if buyerID <= 0 {
		return CartSummary{}, NewUnauthorizedError("unauthorized")
	}

	if s, ok := u.cache.GetSummary(ctx, buyerID); ok {
		return s, nil
	}

	cart, err := u.cartRepo.FindActiveByBuyerID(ctx, buyerID)
	if err == repo.ErrNotFound {
		return CartSummary{}, nil
	}
	if err != nil {
		return CartSummary{}, NewInternalError("db error")
	}

	s, err := u.computeSummary(ctx, cart)
	if err != nil {
		return CartSummary{}, err
	}

	u.cache.SetSummary(ctx, buyerID, s)

	return s, nil
}

func (u *CartUsecase) computeSummary(ctx context.Context, cart model.Cart) (CartSummary, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartSummary{}, NewInternalError("db error")
	}

	var s CartSummary
	for _, it := range items {
		s.ItemCount += it.Quantity
		s.Subtotal += it.UnitPriceSnapshot * it.Quantity
	}

	if cart.CouponCode != "" {
		coupon, err := u.couponRepo.FindByCode(ctx, cart.CouponCode)
		if err == nil && coupon.IsUsable(time.Now()) {
			s.Discount = coupon.DiscountFor(s.Subtotal)
		} else if err != nil && err != repo.ErrNotFound {
			return CartSummary{}, NewInternalError("db error")
		}
	}

	s.Total = s.Subtotal - s.Discount
	return s, nil
}

// cartの明細をまとめてCartResponseを作る。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cart model.Cart) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewInternalError("db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		// 消えた商品と非公開商品は表示から外す。それ以外のエラーは返す。
		if err == repo.ErrNotFound {
			continue
		}
		if err != nil {
			return CartResponse{}, NewInternalError("db error")
		}
		if p.Status == model.ProductStatusDraft || p.Status == model.ProductStatusArchived {
			continue
		}

		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      p.Name,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}

	summary, err := u.computeSummary(ctx, cart)
	if err != nil {
		return CartResponse{}, err
	}

	return CartResponse{
		Items:      respItems,
		CouponCode: cart.CouponCode,
		Summary:    summary,
	}, nil
}
