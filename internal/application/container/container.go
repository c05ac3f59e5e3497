package container

import (
	"profitsniffer/internal/application/port"
	"profitsniffer/internal/application/service"
)

// Container lazily builds the application services over one store.
type Container struct {
	store      port.Store
	defaultURL string

	reconciler        *service.Reconciler
	subscriberService *service.SubscriberService
}

func New(store port.Store, defaultURL string) *Container {
	return &Container{
		store:      store,
		defaultURL: defaultURL,
	}
}

func (c *Container) Store() port.Store {
	return c.store
}

func (c *Container) Reconciler() *service.Reconciler {
	if c.reconciler == nil {
		c.reconciler = service.NewReconciler(c.store)
	}
	return c.reconciler
}

func (c *Container) SubscriberService() *service.SubscriberService {
	if c.subscriberService == nil {
		c.subscriberService = service.NewSubscriberService(c.store, c.defaultURL)
	}
	return c.subscriberService
}

func (c *Container) Close() error {
	return c.store.Close()
}
