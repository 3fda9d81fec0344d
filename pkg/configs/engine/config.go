package engine

import (
	"net/url"
	"time"
)

// EngineConfig is the sealed, immutable configuration of the engine.
//
// To get an EngineConfig instance, use LoadEngineConfig or
// EngineConfigMarshall.TrySeal().
type EngineConfig struct {
	port     int32
	database string

	scheduler     *SchedulerConfig
	storage       *StorageConfig
	notifications *NotificationsConfig
	models        *ModelsConfig
	admin         *AdminConfig
	ackWebhooks   []*url.URL
}

func (c *EngineConfig) Port() int32 {
	return c.port
}

// Connection string for database.
func (c *EngineConfig) Database() string {
	return c.database
}

func (c *EngineConfig) Scheduler() *SchedulerConfig {
	return c.scheduler
}

func (c *EngineConfig) Storage() *StorageConfig {
	return c.storage
}

func (c *EngineConfig) Notifications() *NotificationsConfig {
	return c.notifications
}

func (c *EngineConfig) Models() *ModelsConfig {
	return c.models
}

func (c *EngineConfig) Admin() *AdminConfig {
	return c.admin
}

// AckWebhooks are the subscriber endpoints acknowledgements are
// posted to. Empty means acks go to the log only.
func (c *EngineConfig) AckWebhooks() []*url.URL {
	return c.ackWebhooks
}

// Batching and pacing of the scheduler passes.
type SchedulerConfig struct {
	maxBulkSize           int
	delayBeforeProcessing time.Duration
	staleAfter            time.Duration
	interval              time.Duration
}

// How many requests one pass may own. default = 2000
func (c *SchedulerConfig) MaxBulkSize() int {
	return c.maxBulkSize
}

// How long a request settles after registration before it is
// schedulable. default = 5s
func (c *SchedulerConfig) DelayBeforeProcessing() time.Duration {
	return c.delayBeforeProcessing
}

// How long a scheduled request may sit untouched before the sweeper
// requeues it. default = 1h
func (c *SchedulerConfig) StaleAfter() time.Duration {
	return c.staleAfter
}

// How long a pass sleeps when there was nothing to do. default = 1s
func (c *SchedulerConfig) Interval() time.Duration {
	return c.interval
}

type StorageConfig struct {
	endpoint *url.URL
}

// Base URL of the storage service REST API.
func (c *StorageConfig) Endpoint() *url.URL {
	return c.endpoint
}

type NotificationsConfig struct {
	active   bool
	endpoint *url.URL
}

// Whether messages are actually sent to the notifier.
func (c *NotificationsConfig) Active() bool {
	return c.active
}

// Base URL of the notifier REST API. Required only when active.
func (c *NotificationsConfig) Endpoint() *url.URL {
	return c.endpoint
}

type ModelsConfig struct {
	dir string
}

// Directory holding attribute model definitions, one yaml per model.
func (c *ModelsConfig) Dir() string {
	return c.dir
}

type AdminConfig struct {
	jwtKey []byte
}

// Key verifying the JWTs of operator endpoints.
func (c *AdminConfig) JwtKey() []byte {
	return c.jwtKey
}
