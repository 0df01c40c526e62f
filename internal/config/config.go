// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Источник часового пояса для проверки отчетов.
const (
	ReportTimezoneEvaluator = "evaluator"
	ReportTimezoneUser      = "user"
)

// Способ доставки писем из вебхука.
const (
	EmailDeliveryDirect = "direct"
	EmailDeliveryQueue  = "queue"
)

// ErrMissingCredentials возвращается, когда не заданы ключи внешнего провайдера.
var ErrMissingCredentials = errors.New("missing provider credentials")

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	AppURL                  string `yaml:"app_url" env:"APP_URL" env-default:"https://menoease.netlify.app"`
	EmailDelivery           string `yaml:"email_delivery" env:"EMAIL_DELIVERY" env-default:"direct"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	Stripe                  `yaml:"stripe"`
	EmailJS                 `yaml:"emailjs"`
	Twilio                  `yaml:"twilio"`
	Scheduler               `yaml:"scheduler"`
	Jobs                    `yaml:"jobs"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ структура для подключения к брокеру
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Stripe ключи платежного провайдера
type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

// EmailJS настройки отправки писем и идентификаторы шаблонов
type EmailJS struct {
	ServiceID          string `yaml:"service_id" env:"EMAILJS_SERVICE_ID"`
	PublicKey          string `yaml:"public_key" env:"EMAILJS_PUBLIC_KEY"`
	PrivateKey         string `yaml:"private_key" env:"EMAILJS_PRIVATE_KEY"`
	BaseURL            string `yaml:"base_url" env-default:"https://api.emailjs.com"`
	TemplateWelcome    string `yaml:"template_welcome" env:"EMAILJS_TEMPLATE_WELCOME" env-default:"Meno_Welcome"`
	TemplateUpgrade    string `yaml:"template_upgrade" env:"EMAILJS_TEMPLATE_UPGRADE" env-default:"Meno_Upgrade"`
	TemplateDowngrade  string `yaml:"template_downgrade" env:"EMAILJS_TEMPLATE_DOWNGRADE" env-default:"Meno_Downgrade"`
	TemplateCancelled  string `yaml:"template_cancelled" env:"EMAILJS_TEMPLATE_CANCELLED" env-default:"Meno_Cancelled"`
	TemplateReminder   string `yaml:"template_reminder" env-default:"Meno_Reminder"`
	TemplateReportDay  string `yaml:"template_report_daily" env-default:"Meno_ReportDaily"`
	TemplateReportWeek string `yaml:"template_report_weekly" env-default:"Meno_ReportWeekly"`
	TemplateReportMon  string `yaml:"template_report_monthly" env-default:"Meno_ReportMonthly"`
}

// Twilio ключи SMS провайдера
type Twilio struct {
	AccountSID  string  `yaml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken   string  `yaml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	PhoneNumber string  `yaml:"phone_number" env:"TWILIO_PHONE_NUMBER"`
	RatePerSec  float64 `yaml:"rate_per_sec" env-default:"1"`
}

// Scheduler настройки периодического вычисления напоминаний и отчетов
type Scheduler struct {
	ReminderInterval  time.Duration `yaml:"reminder_interval" env-default:"5m"`
	ReportInterval    time.Duration `yaml:"report_interval" env-default:"5m"`
	ReportTimezone    string        `yaml:"report_timezone" env:"REPORT_TIMEZONE" env-default:"evaluator"`
	EvaluatorTimezone string        `yaml:"evaluator_timezone" env-default:"UTC"`
	ClaimTTL          time.Duration `yaml:"claim_ttl" env-default:"26h"`
}

// Jobs настройки доступа к ручкам запуска задач
type Jobs struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JOBS_JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// MustLoad функция для загрузки конфига, путь берется из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла и переменных окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.ReportTimezone != ReportTimezoneEvaluator && cfg.ReportTimezone != ReportTimezoneUser {
		return nil, fmt.Errorf("%s: unknown report_timezone %q", op, cfg.ReportTimezone)
	}
	if cfg.EmailDelivery != EmailDeliveryDirect && cfg.EmailDelivery != EmailDeliveryQueue {
		return nil, fmt.Errorf("%s: unknown email_delivery %q", op, cfg.EmailDelivery)
	}
	if cfg.ReminderInterval <= 0 {
		return nil, fmt.Errorf("%s: reminder_interval must be positive, got %s", op, cfg.ReminderInterval)
	}
	if cfg.ReportInterval <= 0 {
		return nil, fmt.Errorf("%s: report_interval must be positive, got %s", op, cfg.ReportInterval)
	}
	return &cfg, nil
}

// ValidateStripe проверяет, что заданы ключи Stripe.
func (c *Config) ValidateStripe() error {
	if c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe: %w", ErrMissingCredentials)
	}
	return nil
}

// ValidateEmailJS проверяет, что заданы ключи EmailJS.
func (c *Config) ValidateEmailJS() error {
	if c.EmailJS.ServiceID == "" || c.EmailJS.PublicKey == "" {
		return fmt.Errorf("emailjs: %w", ErrMissingCredentials)
	}
	return nil
}

// ValidateTwilio проверяет, что заданы ключи Twilio.
func (c *Config) ValidateTwilio() error {
	if c.AccountSID == "" || c.AuthToken == "" || c.PhoneNumber == "" {
		return fmt.Errorf("twilio: %w", ErrMissingCredentials)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Scheduler:\n"+
			"  ReminderInterval: %s\n"+
			"  ReportInterval: %s\n"+
			"  ReportTimezone: %s\n"+
			"EmailDelivery: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.ReminderInterval,
		c.ReportInterval,
		c.ReportTimezone,
		c.EmailDelivery,
	)
}
