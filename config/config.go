package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"resolve-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"resolve"`
	DatabaseSSLMode             string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`

	// Kafka Consumer (source-connector intake)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaIntakeTopic     string   `env:"KAFKA_INTAKE_TOPIC" env-default:"raw-records"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"resolve-intake"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (lifecycle events)
	KafkaEventsTopic  string `env:"KAFKA_EVENTS_TOPIC" env-default:"resolution-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Job queue
	JobWorkerCount        int           `env:"JOB_WORKER_COUNT" env-default:"4"`
	JobBatchSize          int           `env:"JOB_BATCH_SIZE" env-default:"100"`
	JobLeaseTimeout       time.Duration `env:"JOB_LEASE_TIMEOUT" env-default:"5m"`
	JobHeartbeatInterval  time.Duration `env:"JOB_HEARTBEAT_INTERVAL" env-default:"30s"`
	JobSweepInterval      time.Duration `env:"JOB_SWEEP_INTERVAL" env-default:"1m"`
	JobClaimPollInterval  time.Duration `env:"JOB_CLAIM_POLL_INTERVAL" env-default:"2s"`
	JobMaxAttempts        int           `env:"JOB_MAX_ATTEMPTS" env-default:"3"`
	WorkersEnabled        bool          `env:"WORKERS_ENABLED" env-default:"true"`
	ResolveRecordTimeout  time.Duration `env:"RESOLVE_RECORD_TIMEOUT" env-default:"30s"`

	// Matching
	MaxCandidatesPerRecord int  `env:"MAX_CANDIDATES_PER_RECORD" env-default:"5"`
	MaxMergeChainDepth     int  `env:"MAX_MERGE_CHAIN_DEPTH" env-default:"10"`
	AutoMatchEnabled       bool `env:"AUTO_MATCH_ENABLED" env-default:"true"`

	// Race guard. The advisory-lock variant coordinates across replicas that
	// share a database; the default keyed mutex is per-process.
	UseAdvisoryLocks bool `env:"USE_ADVISORY_LOCKS" env-default:"false"`
}
