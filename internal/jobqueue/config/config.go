package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	redisClient "github.com/trigg3rX/triggerx-jobqueue/pkg/client/redis"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/env"
)

type Config struct {
	devMode bool

	// HTTP API
	apiHost string
	apiPort string

	// Metrics
	metricsUpdateInterval time.Duration

	// Worker-only process
	workerName   string
	workerQueues []string

	// Notifications
	telegramBotToken string
	telegramChatID   int64
	emailHost        string
	emailPort        int
	emailUser        string
	emailPassword    string
	emailFrom        string
	alertEmailTo     []string
	alertWebhookURL  string
	alertMinLevel    string
	alertRatePerMin  int

	queue QueueConfig
}

var cfg Config

// Init loads .env (optional), environment variables and the optional
// QUEUE_CONFIG_FILE overlay, then validates the result.
func Init() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	loaded, err := load()
	if err != nil {
		return err
	}
	if err := validateConfig(loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	if !cfg.devMode {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

func load() (Config, error) {
	d := DefaultQueueConfig()

	q := QueueConfig{
		Redis: redisClient.RedisConfig{
			URL:      env.GetEnvString("REDIS_URL", d.Redis.URL),
			Password: os.Getenv("REDIS_PASSWORD"),
			ConnectionSettings: redisClient.ConnectionSettings{
				PoolSize:      env.GetEnvInt("REDIS_POOL_SIZE", 20),
				MinIdleConns:  env.GetEnvInt("REDIS_MIN_IDLE_CONNS", 2),
				MaxRetries:    env.GetEnvInt("REDIS_MAX_RETRIES", 3),
				DialTimeout:   env.GetEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
				ReadTimeout:   env.GetEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
				WriteTimeout:  env.GetEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
				PoolTimeout:   env.GetEnvDuration("REDIS_POOL_TIMEOUT", 4*time.Second),
				PingTimeout:   2 * time.Second,
				HealthTimeout: 5 * time.Second,
			},
		},
		KeyPrefix: env.GetEnvString("QUEUE_KEY_PREFIX", d.KeyPrefix),
		Priorities: map[types.Priority]PriorityConfig{
			types.PriorityHigh: {
				Timeout:           env.GetEnvDuration("QUEUE_HIGH_TIMEOUT", d.Priorities[types.PriorityHigh].Timeout),
				MaxConcurrentJobs: env.GetEnvInt("QUEUE_HIGH_MAX_CONCURRENT", d.Priorities[types.PriorityHigh].MaxConcurrentJobs),
			},
			types.PriorityDefault: {
				Timeout:           env.GetEnvDuration("QUEUE_DEFAULT_TIMEOUT", d.Priorities[types.PriorityDefault].Timeout),
				MaxConcurrentJobs: env.GetEnvInt("QUEUE_DEFAULT_MAX_CONCURRENT", d.Priorities[types.PriorityDefault].MaxConcurrentJobs),
			},
			types.PriorityLow: {
				Timeout:           env.GetEnvDuration("QUEUE_LOW_TIMEOUT", d.Priorities[types.PriorityLow].Timeout),
				MaxConcurrentJobs: env.GetEnvInt("QUEUE_LOW_MAX_CONCURRENT", d.Priorities[types.PriorityLow].MaxConcurrentJobs),
			},
		},
		MaxRetries:              env.GetEnvInt("QUEUE_MAX_RETRIES", d.MaxRetries),
		RetryDelays:             env.GetEnvDurationList("QUEUE_RETRY_DELAYS", d.RetryDelays),
		ResultTTL:               env.GetEnvDuration("QUEUE_RESULT_TTL", d.ResultTTL),
		FailureTTL:              env.GetEnvDuration("QUEUE_FAILURE_TTL", d.FailureTTL),
		WorkerTTL:               env.GetEnvDuration("QUEUE_WORKER_TTL", d.WorkerTTL),
		MonitoringInterval:      env.GetEnvDuration("QUEUE_MONITORING_INTERVAL", d.MonitoringInterval),
		BurstTimeout:            env.GetEnvDuration("QUEUE_BURST_TIMEOUT", d.BurstTimeout),
		MaintenanceInterval:     env.GetEnvDuration("QUEUE_MAINTENANCE_INTERVAL", d.MaintenanceInterval),
		FailureRateThreshold:    env.GetEnvFloat("MONITOR_FAILURE_RATE_THRESHOLD", d.FailureRateThreshold),
		QueueBackupThreshold:    int64(env.GetEnvInt("MONITOR_QUEUE_BACKUP_THRESHOLD", int(d.QueueBackupThreshold))),
		SlowProcessingThreshold: env.GetEnvDuration("MONITOR_SLOW_PROCESSING_THRESHOLD", d.SlowProcessingThreshold),
		StaleJobWindow:          env.GetEnvDuration("MONITOR_STALE_JOB_WINDOW", d.StaleJobWindow),
		ProcessingSampleSize:    env.GetEnvInt("MONITOR_PROCESSING_SAMPLE_SIZE", d.ProcessingSampleSize),
		HistoryRetention:        env.GetEnvDuration("MONITOR_HISTORY_RETENTION", d.HistoryRetention),
		AlertRetention:          env.GetEnvDuration("MONITOR_ALERT_RETENTION", d.AlertRetention),
		AlertExpiry:             env.GetEnvDuration("MONITOR_ALERT_EXPIRY", d.AlertExpiry),
		WorkersHigh:             env.GetEnvInt("WORKERS_HIGH", d.WorkersHigh),
		WorkersDefault:          env.GetEnvInt("WORKERS_DEFAULT", d.WorkersDefault),
		WorkersLow:              env.GetEnvInt("WORKERS_LOW", d.WorkersLow),
		WorkersAll:              env.GetEnvInt("WORKERS_ALL", d.WorkersAll),
	}

	if path := os.Getenv("QUEUE_CONFIG_FILE"); path != "" {
		if err := applyFile(&q, path); err != nil {
			return Config{}, err
		}
	}

	return Config{
		devMode:               env.GetEnvBool("DEV_MODE", false),
		apiHost:               env.GetEnvString("JOBQUEUE_API_HOST", "0.0.0.0"),
		apiPort:               env.GetEnvString("JOBQUEUE_API_PORT", "9010"),
		metricsUpdateInterval: env.GetEnvDuration("METRICS_UPDATE_INTERVAL", 15*time.Second),
		workerName:            os.Getenv("WORKER_NAME"),
		workerQueues:          env.GetEnvStringList("WORKER_QUEUES", []string{"high", "default", "low"}),
		telegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		telegramChatID:        int64(env.GetEnvInt("TELEGRAM_CHAT_ID", 0)),
		emailHost:             os.Getenv("EMAIL_HOST"),
		emailPort:             env.GetEnvInt("EMAIL_PORT", 587),
		emailUser:             os.Getenv("EMAIL_USER"),
		emailPassword:         os.Getenv("EMAIL_PASSWORD"),
		emailFrom:             os.Getenv("EMAIL_FROM"),
		alertEmailTo:          env.GetEnvStringList("ALERT_EMAIL_TO", nil),
		alertWebhookURL:       os.Getenv("ALERT_WEBHOOK_URL"),
		alertMinLevel:         env.GetEnvString("ALERT_MIN_LEVEL", string(types.AlertWarning)),
		alertRatePerMin:       env.GetEnvInt("ALERT_RATE_PER_MINUTE", 20),
		queue:                 q,
	}, nil
}

func validateConfig(c Config) error {
	if !env.IsValidRedisURL(c.queue.Redis.URL) {
		return fmt.Errorf("invalid REDIS_URL: %s", c.queue.Redis.URL)
	}
	if !env.IsValidPort(c.apiPort) {
		return fmt.Errorf("invalid JOBQUEUE_API_PORT: %s", c.apiPort)
	}
	if c.apiHost != "0.0.0.0" && !env.IsValidIPAddress(c.apiHost) {
		return fmt.Errorf("invalid JOBQUEUE_API_HOST: %s", c.apiHost)
	}
	if bad := invalidQueueNames(c.workerQueues); len(bad) > 0 {
		return fmt.Errorf("invalid WORKER_QUEUES entries: %v", bad)
	}
	if c.emailFrom != "" && !env.IsValidEmail(c.emailFrom) {
		return fmt.Errorf("invalid EMAIL_FROM: %s", c.emailFrom)
	}
	for _, to := range c.alertEmailTo {
		if !env.IsValidEmail(to) {
			return fmt.Errorf("invalid ALERT_EMAIL_TO entry: %s", to)
		}
	}
	if c.alertWebhookURL != "" && !env.IsValidURL(c.alertWebhookURL) {
		return fmt.Errorf("invalid ALERT_WEBHOOK_URL: %s", c.alertWebhookURL)
	}
	if _, ok := types.ParseAlertLevel(c.alertMinLevel); !ok {
		return fmt.Errorf("invalid ALERT_MIN_LEVEL: %s", c.alertMinLevel)
	}
	if c.alertRatePerMin < 1 {
		return fmt.Errorf("ALERT_RATE_PER_MINUTE must be >= 1")
	}
	if c.metricsUpdateInterval <= 0 {
		return fmt.Errorf("METRICS_UPDATE_INTERVAL must be positive")
	}
	return c.queue.Validate()
}

// invalidQueueNames returns the entries that are not queue names.
func invalidQueueNames(names []string) []string {
	var bad []string
	for _, n := range names {
		if _, err := types.ParsePriority(n); err != nil || n == "" {
			bad = append(bad, n)
		}
	}
	return bad
}

func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func IsDevMode() bool {
	return cfg.devMode
}

func GetAPIHost() string {
	return cfg.apiHost
}

func GetAPIPort() string {
	return cfg.apiPort
}

func GetMetricsUpdateInterval() time.Duration {
	return cfg.metricsUpdateInterval
}

func GetWorkerName() string {
	return cfg.workerName
}

// GetWorkerQueues returns the queues of the worker-only process in claim order.
func GetWorkerQueues() []types.Priority {
	ps := make([]types.Priority, 0, len(cfg.workerQueues))
	for _, n := range cfg.workerQueues {
		if p, err := types.ParsePriority(n); err == nil {
			ps = append(ps, p)
		}
	}
	return types.SortByRank(ps)
}

func GetTelegramBotToken() string {
	return cfg.telegramBotToken
}

func GetTelegramChatID() int64 {
	return cfg.telegramChatID
}

func GetEmailHost() string {
	return cfg.emailHost
}

func GetEmailPort() int {
	return cfg.emailPort
}

func GetEmailUser() string {
	return cfg.emailUser
}

func GetEmailPassword() string {
	return cfg.emailPassword
}

func GetEmailFrom() string {
	return cfg.emailFrom
}

func GetAlertEmailTo() []string {
	return cfg.alertEmailTo
}

func GetAlertWebhookURL() string {
	return cfg.alertWebhookURL
}

func GetAlertMinLevel() types.AlertLevel {
	return types.AlertLevel(cfg.alertMinLevel)
}

func GetAlertRatePerMinute() int {
	return cfg.alertRatePerMin
}

// GetQueueConfig returns a copy of the loaded queue configuration.
func GetQueueConfig() QueueConfig {
	q := cfg.queue
	q.Priorities = make(map[types.Priority]PriorityConfig, len(cfg.queue.Priorities))
	for k, v := range cfg.queue.Priorities {
		q.Priorities[k] = v
	}
	q.RetryDelays = append([]time.Duration(nil), cfg.queue.RetryDelays...)
	return q
}

func GetRedisClientConfig() redisClient.RedisConfig {
	return cfg.queue.Redis
}
