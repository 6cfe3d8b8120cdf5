package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/services"
)

// app regroupe les composants câblés selon la configuration
type app struct {
	cfg       config.Settings
	idem      cache.IdempotencyStore
	counters  cache.CounterStore
	orders    database.OrderRepository
	catalog   database.Catalog
	notifier  services.Notifier
	reviews   services.ReviewSink
	archive   services.EventArchive
	closeFunc []func()
}

func (a *app) Close() {
	for i := len(a.closeFunc) - 1; i >= 0; i-- {
		a.closeFunc[i]()
	}
}

// bootstrap ouvre les connexions ; en mode mémoire rien n'est partagé entre instances
func bootstrap(ctx context.Context, cfg config.Settings, catalogFile string) (*app, error) {
	a := &app{cfg: cfg}

	if err := a.connectStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectDocuments(ctx, catalogFile); err != nil {
		a.Close()
		return nil, err
	}
	a.connectSideChannels(ctx)
	return a, nil
}

func (a *app) connectStores(ctx context.Context) error {
	switch a.cfg.StoreBackend {
	case "redis":
		client, err := cache.NewRedisClient(ctx, a.cfg.RedisHost, a.cfg.RedisPassword)
		if err != nil {
			return err
		}
		a.closeFunc = append(a.closeFunc, func() { client.Close() })
		a.idem = cache.NewRedisIdempotencyStore(client, config.IdempotencyTTL)
		a.counters = cache.NewRedisCounterStore(client)
	case "memory":
		log.Println("⚠️ Stores idempotence et rate limit en mémoire : une seule instance supportée")
		a.idem = cache.NewMemoryIdempotencyStore(config.IdempotencyTTL)
		a.counters = cache.NewMemoryCounterStore()
	default:
		return fmt.Errorf("STORE_BACKEND inconnu: %q", a.cfg.StoreBackend)
	}
	return nil
}

func (a *app) connectDocuments(ctx context.Context, catalogFile string) error {
	if len(a.cfg.ScyllaHosts) == 0 {
		log.Println("⚠️ SCYLLA_HOSTS absent, commandes et catalogue en mémoire")
		catalog := database.NewMemoryCatalog()
		if catalogFile != "" {
			products, err := loadCatalogFile(catalogFile)
			if err != nil {
				return err
			}
			for _, p := range products {
				catalog.Put(p)
			}
			log.Printf("📦 %d produits chargés depuis %s", len(products), catalogFile)
		}
		a.catalog = catalog
		a.orders = database.NewMemoryOrderRepository()
		return nil
	}

	manager := database.NewScyllaManager(
		database.NewKeyspaceConfig(a.cfg.ScyllaHosts, a.cfg.ScyllaOrdersKeyspace, a.cfg.ScyllaOrdersRole, a.cfg.ScyllaOrdersPassword),
		database.NewKeyspaceConfig(a.cfg.ScyllaHosts, a.cfg.ScyllaProductsKeyspace, a.cfg.ScyllaProductsRole, a.cfg.ScyllaProductsPassword),
	)
	a.closeFunc = append(a.closeFunc, manager.Close)

	ordersSession, err := manager.GetSession(a.cfg.ScyllaOrdersKeyspace)
	if err != nil {
		return err
	}
	productsSession, err := manager.GetSession(a.cfg.ScyllaProductsKeyspace)
	if err != nil {
		return err
	}
	a.orders = database.NewScyllaOrderRepository(ordersSession)
	a.catalog = database.NewScyllaCatalog(productsSession)
	return nil
}

// connectSideChannels branche e-mail, index de revue et archive ; chacun est optionnel
func (a *app) connectSideChannels(ctx context.Context) {
	if a.cfg.SMTPHost != "" {
		a.notifier = services.NewMailNotifier(a.cfg)
		log.Println("✅ Notifications e-mail activées via", a.cfg.SMTPHost)
	} else {
		log.Println("⚠️ SMTP_HOST absent, aucune notification e-mail")
	}

	if a.cfg.ElasticURL != "" {
		client, err := services.NewElasticClient(a.cfg.ElasticURL, a.cfg.ElasticUser, a.cfg.ElasticPassword)
		if err != nil {
			log.Println("⚠️ Elasticsearch indisponible, index de revue désactivé:", err)
		} else {
			a.reviews = services.NewElasticReviewSink(client, a.cfg.ReviewIndex)
			log.Println("✅ Connecté à Elasticsearch")
		}
	}

	if a.cfg.MinioEndpoint != "" {
		client, err := services.NewMinioClient(a.cfg.MinioEndpoint, a.cfg.MinioAccessKey, a.cfg.MinioSecretKey, a.cfg.MinioUseSSL)
		if err == nil {
			var archive *services.MinioEventArchive
			archive, err = services.NewMinioEventArchive(ctx, client, a.cfg.MinioBucket)
			if err == nil {
				a.archive = archive
				log.Println("✅ Connecté à MinIO :", a.cfg.MinioEndpoint)
			}
		}
		if err != nil {
			log.Println("⚠️ MinIO non configuré, archive des webhooks désactivée:", err)
		}
	}
}

func loadCatalogFile(path string) ([]models.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lecture catalogue: %w", err)
	}
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalogue JSON invalide: %w", err)
	}
	return products, nil
}
