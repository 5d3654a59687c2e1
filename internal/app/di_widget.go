package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KB1RD/matrix-widget-api/internal/database"
	"github.com/KB1RD/matrix-widget-api/internal/metrics"
	"github.com/KB1RD/matrix-widget-api/internal/widget/domain"
	widgetHTTP "github.com/KB1RD/matrix-widget-api/internal/widget/http"
	widgetRepository "github.com/KB1RD/matrix-widget-api/internal/widget/repository"
	widgetService "github.com/KB1RD/matrix-widget-api/internal/widget/service"
	widgetUseCase "github.com/KB1RD/matrix-widget-api/internal/widget/usecase"
)

// openIDStreamGrace is added to the prompt timeout so the coordinator's own
// synthetic block reaches the client before the stream is cut.
const openIDStreamGrace = 10 * time.Second

// Policies returns the parsed WIDGET_POLICIES.
func (c *Container) Policies() (domain.PolicySet, error) {
	var err error
	c.policiesInit.Do(func() {
		c.policies, err = c.config.Policies()
		if err != nil {
			c.setInitError("policies", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("policies"); storedErr != nil {
		return nil, storedErr
	}
	return c.policies, nil
}

// PromptQueue returns the queue the host UI answers prompts through.
func (c *Container) PromptQueue() *widgetUseCase.PromptQueue {
	c.promptQueueInit.Do(func() {
		c.promptQueue = widgetUseCase.NewPromptQueue()
		c.registerPromptGauge(c.promptQueue)
	})
	return c.promptQueue
}

// registerPromptGauge exports the queue depth when metrics are enabled.
func (c *Container) registerPromptGauge(queue *widgetUseCase.PromptQueue) {
	provider, err := c.MetricsProvider()
	if err != nil || provider == nil {
		return
	}
	err = metrics.RegisterPendingPromptsGauge(
		provider.MeterProvider(),
		c.config.MetricsNamespace,
		func(ctx context.Context) int { return len(queue.List(ctx)) },
	)
	if err != nil {
		c.Logger().Warn("pending prompts gauge disabled", slog.Any("error", err))
	}
}

// ApprovalCache returns the cache of remembered identity decisions.
func (c *Container) ApprovalCache() widgetUseCase.ApprovalCache {
	c.approvalCacheInit.Do(func() {
		c.approvalCache = widgetUseCase.NewMemoryApprovalCache(c.config.OpenIDDecisionTTL)
	})
	return c.approvalCache
}

// IdentityAuthority returns the authority that issues OpenID credentials.
func (c *Container) IdentityAuthority() widgetService.IdentityAuthority {
	c.identityAuthorityInit.Do(func() {
		c.identityAuthority = widgetService.NewLocalIdentityAuthority(
			c.config.OpenIDServerName,
			c.config.OpenIDTokenExpiration,
		)
	})
	return c.identityAuthority
}

// EventIDGenerator returns the room event ID generator.
func (c *Container) EventIDGenerator() widgetService.EventIDGenerator {
	c.eventIDGeneratorInit.Do(func() {
		c.eventIDGenerator = widgetService.NewEventIDGenerator(c.config.OpenIDServerName)
	})
	return c.eventIDGenerator
}

// SessionTokenService returns the generator for widget session tokens.
func (c *Container) SessionTokenService() widgetService.SessionTokenService {
	c.sessionTokensInit.Do(func() {
		c.sessionTokens = widgetService.NewSessionTokenService()
	})
	return c.sessionTokens
}

// EventRepository returns the room event repository based on database driver.
func (c *Container) EventRepository() (widgetUseCase.EventRepository, error) {
	var err error
	c.eventRepositoryInit.Do(func() {
		c.eventRepository, err = c.initEventRepository()
		if err != nil {
			c.setInitError("eventRepository", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("eventRepository"); storedErr != nil {
		return nil, storedErr
	}
	return c.eventRepository, nil
}

// AuditLogRepository returns the audit log repository based on database driver.
func (c *Container) AuditLogRepository() (widgetUseCase.AuditLogRepository, error) {
	var err error
	c.auditLogRepositoryInit.Do(func() {
		c.auditLogRepository, err = c.initAuditLogRepository()
		if err != nil {
			c.setInitError("auditLogRepository", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("auditLogRepository"); storedErr != nil {
		return nil, storedErr
	}
	return c.auditLogRepository, nil
}

// AuditLogUseCase returns the audit log use case.
func (c *Container) AuditLogUseCase() (widgetUseCase.AuditLogUseCase, error) {
	var err error
	c.auditLogUseCaseInit.Do(func() {
		c.auditLogUseCase, err = c.initAuditLogUseCase()
		if err != nil {
			c.setInitError("auditLogUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("auditLogUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.auditLogUseCase, nil
}

// CapabilityUseCase returns the capability negotiation use case.
func (c *Container) CapabilityUseCase() (widgetUseCase.CapabilityUseCase, error) {
	var err error
	c.capabilityUseCaseInit.Do(func() {
		c.capabilityUseCase, err = c.initCapabilityUseCase()
		if err != nil {
			c.setInitError("capabilityUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("capabilityUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.capabilityUseCase, nil
}

// EventUseCase returns the event sending use case.
func (c *Container) EventUseCase() (widgetUseCase.EventUseCase, error) {
	var err error
	c.eventUseCaseInit.Do(func() {
		c.eventUseCase, err = c.initEventUseCase()
		if err != nil {
			c.setInitError("eventUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("eventUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.eventUseCase, nil
}

// OpenIDUseCase returns the identity-assertion coordinator.
func (c *Container) OpenIDUseCase() (widgetUseCase.OpenIDUseCase, error) {
	var err error
	c.openIDUseCaseInit.Do(func() {
		c.openIDUseCase, err = c.initOpenIDUseCase()
		if err != nil {
			c.setInitError("openIDUseCase", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("openIDUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.openIDUseCase, nil
}

// DriverFactory returns the factory binding host drivers to widget sessions.
func (c *Container) DriverFactory() (*widgetUseCase.DriverFactory, error) {
	var err error
	c.driverFactoryInit.Do(func() {
		c.driverFactory, err = c.initDriverFactory()
		if err != nil {
			c.setInitError("driverFactory", err)
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("driverFactory"); storedErr != nil {
		return nil, storedErr
	}
	return c.driverFactory, nil
}

// SessionUseCase returns the store of widget sessions opened by the host UI.
func (c *Container) SessionUseCase() (widgetUseCase.SessionUseCase, error) {
	var err error
	c.sessionUseCaseInit.Do(func() {
		var auditLogUseCase widgetUseCase.AuditLogUseCase
		auditLogUseCase, err = c.AuditLogUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get audit log use case for session use case: %w", err)
			c.setInitError("sessionUseCase", err)
			return
		}
		c.sessionUseCase = widgetUseCase.NewSessionUseCase(
			c.SessionTokenService(),
			auditLogUseCase,
			c.config.WidgetSessionTTL,
		)
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("sessionUseCase"); storedErr != nil {
		return nil, storedErr
	}
	return c.sessionUseCase, nil
}

// SessionHandler returns the HTTP handler the host UI opens widget sessions through.
func (c *Container) SessionHandler() (*widgetHTTP.SessionHandler, error) {
	var err error
	c.sessionHandlerInit.Do(func() {
		var useCase widgetUseCase.SessionUseCase
		useCase, err = c.SessionUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get session use case for session handler: %w", err)
			c.setInitError("sessionHandler", err)
			return
		}
		c.sessionHandler = widgetHTTP.NewSessionHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("sessionHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.sessionHandler, nil
}

// WidgetHandler returns the HTTP handler for widget requests.
func (c *Container) WidgetHandler() (*widgetHTTP.WidgetHandler, error) {
	var err error
	c.widgetHandlerInit.Do(func() {
		var factory *widgetUseCase.DriverFactory
		factory, err = c.DriverFactory()
		if err != nil {
			err = fmt.Errorf("failed to get driver factory for widget handler: %w", err)
			c.setInitError("widgetHandler", err)
			return
		}
		c.widgetHandler = widgetHTTP.NewWidgetHandler(
			factory,
			c.config.OpenIDPromptTimeout+openIDStreamGrace,
			c.Logger(),
		)
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("widgetHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.widgetHandler, nil
}

// PromptHandler returns the HTTP handler the host UI uses to answer prompts.
func (c *Container) PromptHandler() *widgetHTTP.PromptHandler {
	c.promptHandlerInit.Do(func() {
		c.promptHandler = widgetHTTP.NewPromptHandler(c.PromptQueue(), c.Logger())
	})
	return c.promptHandler
}

// AuditLogHandler returns the HTTP handler for audit log queries.
func (c *Container) AuditLogHandler() (*widgetHTTP.AuditLogHandler, error) {
	var err error
	c.auditLogHandlerInit.Do(func() {
		var useCase widgetUseCase.AuditLogUseCase
		useCase, err = c.AuditLogUseCase()
		if err != nil {
			err = fmt.Errorf("failed to get audit log use case for audit log handler: %w", err)
			c.setInitError("auditLogHandler", err)
			return
		}
		c.auditLogHandler = widgetHTTP.NewAuditLogHandler(useCase, c.Logger())
	})
	if err != nil {
		return nil, err
	}
	if storedErr := c.initError("auditLogHandler"); storedErr != nil {
		return nil, storedErr
	}
	return c.auditLogHandler, nil
}

// initEventRepository selects the event repository for the configured driver.
func (c *Container) initEventRepository() (widgetUseCase.EventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for event repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.MySQLDriver:
		return widgetRepository.NewMySQLEventRepository(db), nil
	case database.PostgresDriver:
		return widgetRepository.NewPostgreSQLEventRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditLogRepository selects the audit log repository for the configured driver.
func (c *Container) initAuditLogRepository() (widgetUseCase.AuditLogRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for audit log repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.MySQLDriver:
		return widgetRepository.NewMySQLAuditLogRepository(db), nil
	case database.PostgresDriver:
		return widgetRepository.NewPostgreSQLAuditLogRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAuditLogUseCase creates the audit log use case.
func (c *Container) initAuditLogUseCase() (widgetUseCase.AuditLogUseCase, error) {
	auditLogRepository, err := c.AuditLogRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log repository for audit log use case: %w", err)
	}
	return widgetUseCase.NewAuditLogUseCase(auditLogRepository), nil
}

// initCapabilityUseCase creates the capability use case, wrapped with metrics if enabled.
func (c *Container) initCapabilityUseCase() (widgetUseCase.CapabilityUseCase, error) {
	policies, err := c.Policies()
	if err != nil {
		return nil, fmt.Errorf("failed to get policies for capability use case: %w", err)
	}

	auditLogUseCase, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for capability use case: %w", err)
	}

	baseUseCase := widgetUseCase.NewCapabilityUseCase(
		policies,
		c.PromptQueue(),
		c.config.CapabilityPromptTimeout,
		auditLogUseCase,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for capability use case: %w", err)
		}
		return widgetUseCase.NewCapabilityUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initEventUseCase creates the event use case, wrapped with metrics if enabled.
func (c *Container) initEventUseCase() (widgetUseCase.EventUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for event use case: %w", err)
	}

	eventRepository, err := c.EventRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get event repository for event use case: %w", err)
	}

	auditLogUseCase, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for event use case: %w", err)
	}

	baseUseCase := widgetUseCase.NewEventUseCase(txManager, eventRepository, auditLogUseCase, c.EventIDGenerator())

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for event use case: %w", err)
		}
		return widgetUseCase.NewEventUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initOpenIDUseCase creates the identity-assertion coordinator, wrapped with metrics if enabled.
func (c *Container) initOpenIDUseCase() (widgetUseCase.OpenIDUseCase, error) {
	policies, err := c.Policies()
	if err != nil {
		return nil, fmt.Errorf("failed to get policies for openid use case: %w", err)
	}

	auditLogUseCase, err := c.AuditLogUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log use case for openid use case: %w", err)
	}

	baseUseCase := widgetUseCase.NewOpenIDUseCase(
		policies,
		c.PromptQueue(),
		c.config.OpenIDPromptTimeout,
		c.ApprovalCache(),
		c.IdentityAuthority(),
		auditLogUseCase,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for openid use case: %w", err)
		}
		return widgetUseCase.NewOpenIDUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initDriverFactory binds the three use cases into host drivers.
func (c *Container) initDriverFactory() (*widgetUseCase.DriverFactory, error) {
	capabilityUseCase, err := c.CapabilityUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get capability use case for driver factory: %w", err)
	}

	eventUseCase, err := c.EventUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get event use case for driver factory: %w", err)
	}

	openIDUseCase, err := c.OpenIDUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get openid use case for driver factory: %w", err)
	}

	return &widgetUseCase.DriverFactory{
		Capabilities: capabilityUseCase,
		Events:       eventUseCase,
		OpenID:       openIDUseCase,
	}, nil
}
