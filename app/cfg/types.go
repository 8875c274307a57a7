package cfg

import "time"

type Role string

const (
	RoleAll    Role = "all"
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
)

type StoreKind string

const (
	StoreRedis  StoreKind = "redis"
	StoreSQLite StoreKind = "sqlite"
)

type Cfg struct {
	// Deployment
	Role  Role
	Store StoreKind

	// Storage and broker
	RedisURL    string
	RedisPrefix string
	DBPath      string

	// Worker pool
	WorkerCount       int
	MaxJobsPerWorker  int
	SoftTimeLimit     time.Duration
	HardTimeLimit     time.Duration
	VisibilityTimeout time.Duration
	MaxDeliveries     int64
	ResultTTL         time.Duration
	PendingTTL        time.Duration

	// WordPress upstream
	FetchTimeout time.Duration
	PerPage      int
	UserAgent    string
	SitesDir     string

	// HTTP gateway
	Port             string
	BaseUrl          string
	APIAccessKey     string
	HTTPWriteTimeout time.Duration

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// ServesHTTP reports whether the process runs the gateway.
func (c *Cfg) ServesHTTP() bool {
	return c.Role == RoleAll || c.Role == RoleAPI
}

// RunsWorkers reports whether the process runs the worker pool.
func (c *Cfg) RunsWorkers() bool {
	return c.Role == RoleAll || c.Role == RoleWorker
}
