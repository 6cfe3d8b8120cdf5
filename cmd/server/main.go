package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/handlers/payement"
	"storefront_back_end/internal/routes"
	"storefront_back_end/internal/services"
)

func main() {
	config.Load()

	catalogFlag := &cli.StringFlag{
		Name:  "catalog",
		Usage: "Fichier JSON de produits pour le catalogue mémoire (sans ScyllaDB)",
	}

	app := &cli.App{
		Name:  "storefront",
		Usage: "Checkout Stripe et réconciliation des commandes",
		Flags: []cli.Flag{catalogFlag},
		Action: func(c *cli.Context) error {
			return serve(c.Context, c.String("catalog"))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Lance le serveur HTTP",
				Flags: []cli.Flag{catalogFlag},
				Action: func(c *cli.Context) error {
					return serve(c.Context, c.String("catalog"))
				},
			},
			{
				Name:   "migrate",
				Usage:  "Crée les tables ScyllaDB des commandes et du catalogue",
				Action: func(c *cli.Context) error { return migrate(c.Context) },
			},
			{
				Name:  "flagged",
				Usage: "Liste les commandes à vérifier (needs_review, erreurs de stock ou de métadonnées)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Sortie JSON"},
				},
				Action: func(c *cli.Context) error { return listFlagged(c.Context, c.Bool("json")) },
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal("❌ ", err)
	}
}

func serve(parent context.Context, catalogFile string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	a, err := bootstrap(ctx, cfg, catalogFile)
	if err != nil {
		return err
	}
	defer a.Close()

	validator, err := services.NewCheckoutValidator(a.catalog, cfg.BaseURL)
	if err != nil {
		return err
	}
	provider := services.NewStripeProvider(cfg.StripeSecretKey)
	log.Println("✅ Stripe initialisé")

	checkout := services.NewCheckoutService(a.idem, validator, provider, cfg.Currency)
	limiter := services.NewRateLimiter(a.counters, services.RateLimitConfig{
		Window:     cfg.RateLimitWindow,
		MaxPerIP:   cfg.MaxPerIP,
		MaxPerUser: cfg.MaxPerUser,
	})

	processor := services.NewWebhookProcessor(a.orders, a.catalog, services.NewInventoryLedger(a.catalog))
	if a.notifier != nil {
		processor.WithNotifier(a.notifier)
	}
	if a.reviews != nil {
		processor.WithReviewSink(a.reviews)
	}

	r := gin.Default()
	routes.RegisterRoutes(r, routes.Deps{
		Checkout:    payement.NewCheckoutHandler(checkout),
		Webhook:     payement.NewWebhookHandler(processor, a.archive, cfg.StripeWebhookSecret),
		Limiter:     limiter,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("🚀 Serveur lancé sur le port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Println("🛑 Arrêt du serveur...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println("⚠️ Arrêt forcé:", err)
		}
	}

	processor.Wait()
	return nil
}

func migrate(ctx context.Context) error {
	cfg := config.FromEnv()
	if len(cfg.ScyllaHosts) == 0 {
		return errors.New("SCYLLA_HOSTS non configuré")
	}

	manager := database.NewScyllaManager(
		database.NewKeyspaceConfig(cfg.ScyllaHosts, cfg.ScyllaOrdersKeyspace, cfg.ScyllaOrdersRole, cfg.ScyllaOrdersPassword),
		database.NewKeyspaceConfig(cfg.ScyllaHosts, cfg.ScyllaProductsKeyspace, cfg.ScyllaProductsRole, cfg.ScyllaProductsPassword),
	)
	defer manager.Close()

	ordersSession, err := manager.GetSession(cfg.ScyllaOrdersKeyspace)
	if err != nil {
		return err
	}
	if err := database.NewScyllaOrderRepository(ordersSession).EnsureSchema(ctx); err != nil {
		return err
	}
	log.Println("✅ Tables des commandes prêtes")

	productsSession, err := manager.GetSession(cfg.ScyllaProductsKeyspace)
	if err != nil {
		return err
	}
	if err := database.NewScyllaCatalog(productsSession).EnsureSchema(ctx); err != nil {
		return err
	}
	log.Println("✅ Tables du catalogue prêtes")
	return nil
}

func listFlagged(ctx context.Context, asJSON bool) error {
	cfg := config.FromEnv()
	a, err := bootstrap(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer a.Close()

	orders, err := a.orders.ListNeedingAttention(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(orders)
	}

	if len(orders) == 0 {
		fmt.Println("Aucune commande à vérifier")
		return nil
	}
	for _, o := range orders {
		fmt.Printf("%s\t%s\t%s\t%.2f\t%v\n", o.ID, o.Status, o.CreatedAt.Format(time.RFC3339), o.Total, services.ReviewReasons(o))
	}
	return nil
}
