package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	"marketplace/internal/events"
	"marketplace/internal/gateway"
	"marketplace/internal/handler"
	"marketplace/internal/infra/cache"
	"marketplace/internal/infra/db"
	infraRepo "marketplace/internal/infra/repository"
	"marketplace/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func main() {
	// .envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&model.Product{},
		&model.ProductVariant{},
		&model.Cart{},
		&model.CartItem{},
		&model.Coupon{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.StockRestock{},
		&model.CheckoutAttempt{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	//Repository（GORM実装）生成
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	couponRepo := infraRepo.NewCouponGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	attemptRepo := infraRepo.NewCheckoutAttemptGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//カートサマリキャッシュ（redis）
	rdb := cache.New(cfg.RedisAddr)
	cartCache := cache.NewCartSummaryCache(rdb)

	//注文イベント（kafka、fire-and-forget）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 256)
	publisher.Start(ctx)

	//決済ゲートウェイ
	gw, err := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecret, 10*time.Second)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	//Usecase生成
	inv := usecase.InventoryReconciler{}
	cartUC := usecase.NewCartUsecase(cartRepo, cartItemRepo, productRepo, couponRepo, cartCache, cfg.CartTTL)
	paymentUC := usecase.NewPaymentUsecase(txManager, orderRepo, paymentRepo, attemptRepo, inv, gw, publisher, cfg.Currency)
	checkoutUC := usecase.NewCheckoutUsecase(txManager, inv, paymentUC, attemptRepo, publisher, cartCache, cfg.TaxRateBP, cfg.ShippingFee)
	orderUC := usecase.NewOrderUsecase(txManager, orderRepo, orderItemRepo, inv, publisher)

	//Handler生成とルート登録
	e := echo.New()
	e.HideBanner = true

	handler.NewCartHandler(cartUC).RegisterRoutes(e, cfg)
	handler.NewCheckoutHandler(checkoutUC).RegisterRoutes(e, cfg)
	handler.NewOrderHandler(orderUC, paymentUC).RegisterRoutes(e, cfg)
	handler.NewPaymentHandler(paymentUC).RegisterRoutes(e, cfg)

	//Server起動
	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}

	// 残りのイベントを吐き切ってから終了
	publisher.WaitClosed()
}
