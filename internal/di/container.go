package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/furever-shop/api/internal/handlers"
	"github.com/furever-shop/api/internal/mailer"
	"github.com/furever-shop/api/internal/platform/auth"
	"github.com/furever-shop/api/internal/platform/config"
	pfirestore "github.com/furever-shop/api/internal/platform/firestore"
	"github.com/furever-shop/api/internal/platform/jobs"
	"github.com/furever-shop/api/internal/platform/observability"
	"github.com/furever-shop/api/internal/repositories"
	firestoreRepo "github.com/furever-shop/api/internal/repositories/firestore"
	"github.com/furever-shop/api/internal/services"
)

// Repositories bundles the storage contracts the services depend on.
type Repositories struct {
	Orders        repositories.OrderRepository
	Notifications repositories.NotificationRepository
	Inventory     repositories.InventoryRepository
	Users         repositories.UserRepository
	Counters      repositories.CounterRepository
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders        services.OrderService
	Notifications services.NotificationService
	Inventory     services.InventoryService
	Dispatcher    services.SideEffectDispatcher
}

// Container wires repositories, services, outbound integrations, and the HTTP
// router for runtime use.
type Container struct {
	Config       config.Config
	Repositories Repositories
	Services     Services
	Router       chi.Router

	provider     *pfirestore.Provider
	pubsubClient *pubsub.Client
}

// Options carries the ambient pieces the container does not build itself.
type Options struct {
	Logger *zap.Logger
	Build  handlers.BuildInfo
}

// NewContainer constructs the full runtime dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, opts Options) (*Container, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := pfirestore.NewProvider(cfg.Firestore)

	c := &Container{
		Config:   cfg,
		provider: provider,
	}

	repos, err := buildRepositories(cfg, provider)
	if err != nil {
		c.closeQuietly(ctx, logger)
		return nil, err
	}
	c.Repositories = repos

	orderEmail, err := buildMailer(cfg, logger)
	if err != nil {
		c.closeQuietly(ctx, logger)
		return nil, err
	}

	publisher, topic, pubsubClient, err := buildEventPublisher(ctx, cfg)
	if err != nil {
		c.closeQuietly(ctx, logger)
		return nil, err
	}
	c.pubsubClient = pubsubClient

	svc, err := buildServices(cfg, repos, orderEmail, publisher)
	if err != nil {
		c.closeQuietly(ctx, logger)
		return nil, err
	}
	c.Services = svc

	healthRepo, err := buildHealthRepository(provider, topic)
	if err != nil {
		c.closeQuietly(ctx, logger)
		return nil, err
	}

	c.Router = buildRouter(cfg, logger, svc, healthRepo, opts.Build)
	return c, nil
}

// Close releases the Firestore and Pub/Sub clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
		c.pubsubClient = nil
	}
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
		c.provider = nil
	}
	return errors.Join(errs...)
}

func (c *Container) closeQuietly(ctx context.Context, logger *zap.Logger) {
	if err := c.Close(ctx); err != nil {
		logger.Warn("container cleanup error", zap.Error(err))
	}
}

func buildRepositories(cfg config.Config, provider *pfirestore.Provider) (Repositories, error) {
	orders, err := firestoreRepo.NewOrderRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build order repository: %w", err)
	}
	notifications, err := firestoreRepo.NewNotificationRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build notification repository: %w", err)
	}
	inventory, err := firestoreRepo.NewInventoryRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build inventory repository: %w", err)
	}
	inventory = inventory.WithDefaultLowStockThreshold(cfg.Inventory.LowStockThreshold)
	users, err := firestoreRepo.NewUserRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build user repository: %w", err)
	}
	counters, err := firestoreRepo.NewCounterRepository(provider)
	if err != nil {
		return Repositories{}, fmt.Errorf("build counter repository: %w", err)
	}
	return Repositories{
		Orders:        orders,
		Notifications: notifications,
		Inventory:     inventory,
		Users:         users,
		Counters:      counters,
	}, nil
}

func buildMailer(cfg config.Config, logger *zap.Logger) (services.Mailer, error) {
	if !cfg.SMTP.Enabled() {
		logger.Info("smtp not configured; order emails disabled")
		return nil, nil
	}
	m, err := mailer.New(cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("build mailer: %w", err)
	}
	return m, nil
}

func buildEventPublisher(ctx context.Context, cfg config.Config) (services.OrderEventPublisher, *pubsub.Topic, *pubsub.Client, error) {
	topicID := strings.TrimSpace(cfg.PubSub.OrderEventsTopic)
	if topicID == "" {
		return nil, nil, nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build pubsub client: %w", err)
	}
	topic := client.Topic(topicID)

	publisher, err := jobs.NewPubSubOrderEventPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("build order event publisher: %w", err)
	}
	return publisher, topic, client, nil
}

func buildServices(cfg config.Config, repos Repositories, orderEmail services.Mailer, publisher services.OrderEventPublisher) (Services, error) {
	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   repos.Orders,
		Counters: repos.Counters,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Notifications: repos.Notifications,
		Users:         repos.Users,
		DedupWindow:   cfg.Inventory.AlertDedupWindow,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: repos.Inventory,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}

	dispatcher, err := services.NewSideEffectDispatcher(services.SideEffectDispatcherDeps{
		Notifications: notificationSvc,
		Inventory:     inventorySvc,
		Users:         repos.Users,
		Mailer:        orderEmail,
		Events:        publisher,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build side effect dispatcher: %w", err)
	}

	return Services{
		Orders:        orderSvc,
		Notifications: notificationSvc,
		Inventory:     inventorySvc,
		Dispatcher:    dispatcher,
	}, nil
}

func buildHealthRepository(provider *pfirestore.Provider, topic *pubsub.Topic) (repositories.HealthRepository, error) {
	checks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				client, err := provider.Client(ctx)
				if err != nil {
					return err
				}
				iter := client.Collections(ctx)
				if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
					return err
				}
				return nil
			},
		},
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				exists, err := t.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}
	return repo, nil
}

func buildRouter(cfg config.Config, logger *zap.Logger, svc Services, healthRepo repositories.HealthRepository, build handlers.BuildInfo) chi.Router {
	projectID := strings.TrimSpace(cfg.Project.ID)
	if projectID == "" {
		projectID = strings.TrimSpace(cfg.Firestore.ProjectID)
	}

	httpLogger := logger.Named("http")
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(projectID),
		auth.Middleware(),
	}

	orderHandlers := handlers.NewOrderHandlers(svc.Orders, svc.Dispatcher)
	notificationHandlers := handlers.NewNotificationHandlers(svc.Notifications)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthRepository(healthRepo),
		handlers.WithHealthBuildInfo(build),
	)

	return handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithNotificationRoutes(notificationHandlers.Routes),
	)
}
