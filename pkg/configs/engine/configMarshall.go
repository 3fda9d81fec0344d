package engine

import (
	"fmt"
	"net/url"
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

type EngineConfigMarshall struct {
	Port     int32  `yaml:"port"`
	Database string `yaml:"database"`

	Scheduler     *SchedulerConfigMarshall     `yaml:"scheduler,omitempty"`
	Storage       *StorageConfigMarshall       `yaml:"storage"`
	Notifications *NotificationsConfigMarshall `yaml:"notifications,omitempty"`
	Models        *ModelsConfigMarshall        `yaml:"models"`
	Admin         *AdminConfigMarshall         `yaml:"admin"`
	AckWebhooks   []string                     `yaml:"ackWebhooks,omitempty"`
}

var _ Marshalled[*EngineConfig] = &EngineConfigMarshall{}

func (m *EngineConfigMarshall) trySeal(path string) *EngineConfig {
	scheduler := m.Scheduler
	if scheduler == nil {
		scheduler = &SchedulerConfigMarshall{}
	}
	notifications := m.Notifications
	if notifications == nil {
		notifications = &NotificationsConfigMarshall{}
	}

	webhooks := make([]*url.URL, 0, len(m.AckWebhooks))
	for nth, raw := range m.AckWebhooks {
		webhooks = append(webhooks, parseUrl(raw, fmt.Sprintf("%s.ackWebhooks[%d]", path, nth)))
	}

	return &EngineConfig{
		port:          required(m.Port, path+".port"),
		database:      required(m.Database, path+".database"),
		scheduler:     scheduler.trySeal(path + ".scheduler"),
		storage:       nonnil(m.Storage, path+".storage").trySeal(path + ".storage"),
		notifications: notifications.trySeal(path + ".notifications"),
		models:        nonnil(m.Models, path+".models").trySeal(path + ".models"),
		admin:         nonnil(m.Admin, path+".admin").trySeal(path + ".admin"),
		ackWebhooks:   webhooks,
	}
}

type SchedulerConfigMarshall struct {
	MaxBulkSize           int    `yaml:"maxBulkSize,omitempty"`
	DelayBeforeProcessing string `yaml:"delayBeforeProcessing,omitempty"`
	StaleAfter            string `yaml:"staleAfter,omitempty"`
	Interval              string `yaml:"interval,omitempty"`
}

func (m *SchedulerConfigMarshall) trySeal(path string) *SchedulerConfig {
	maxBulkSize := m.MaxBulkSize
	if maxBulkSize == 0 {
		maxBulkSize = 2000
	}
	if maxBulkSize < 0 {
		panic(path + ".maxBulkSize should be positive")
	}

	return &SchedulerConfig{
		maxBulkSize:           maxBulkSize,
		delayBeforeProcessing: parseDuration(m.DelayBeforeProcessing, 5*time.Second, path+".delayBeforeProcessing"),
		staleAfter:            parseDuration(m.StaleAfter, time.Hour, path+".staleAfter"),
		interval:              parseDuration(m.Interval, time.Second, path+".interval"),
	}
}

type StorageConfigMarshall struct {
	Endpoint string `yaml:"endpoint"`
}

func (m *StorageConfigMarshall) trySeal(path string) *StorageConfig {
	return &StorageConfig{
		endpoint: parseUrl(required(m.Endpoint, path+".endpoint"), path+".endpoint"),
	}
}

type NotificationsConfigMarshall struct {
	Active   bool   `yaml:"active"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

func (m *NotificationsConfigMarshall) trySeal(path string) *NotificationsConfig {
	c := &NotificationsConfig{active: m.Active}
	if m.Active {
		c.endpoint = parseUrl(required(m.Endpoint, path+".endpoint"), path+".endpoint")
	}
	return c
}

type ModelsConfigMarshall struct {
	Dir string `yaml:"dir"`
}

func (m *ModelsConfigMarshall) trySeal(path string) *ModelsConfig {
	return &ModelsConfig{dir: required(m.Dir, path+".dir")}
}

type AdminConfigMarshall struct {
	JwtKey string `yaml:"jwtKey"`
}

func (m *AdminConfigMarshall) trySeal(path string) *AdminConfig {
	return &AdminConfig{jwtKey: []byte(required(m.JwtKey, path+".jwtKey"))}
}

func parseUrl(raw string, path string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if u.Scheme == "" || u.Host == "" {
		panic(path + " should be an absolute url")
	}
	return u
}

func parseDuration(raw string, fallback time.Duration, path string) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		panic(fmt.Errorf("%s can not be parsed: %w", path, err))
	}
	if d < 0 {
		panic(path + " should not be negative")
	}
	return d
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
