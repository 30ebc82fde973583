package batch

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evetools/oretax/internal/clock"
	"github.com/evetools/oretax/internal/config"
	creditservice "github.com/evetools/oretax/internal/credit/service"
	invoiceservice "github.com/evetools/oretax/internal/invoice/service"
	miningservice "github.com/evetools/oretax/internal/miningledger/service"
	reconcileservice "github.com/evetools/oretax/internal/reconcile/service"
	taxservice "github.com/evetools/oretax/internal/taxation/service"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("batch",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLocker),
	fx.Provide(New),
)

// ProvideConfig reads pipeline tuning from the environment, falling back
// to defaults suited for a single hourly instance.
func ProvideConfig() Config {
	cfg := Config{
		RunInterval:   envDuration("BATCH_RUN_INTERVAL", 0),
		ImportTimeout: envDuration("BATCH_IMPORT_TIMEOUT", 0),
		JobTimeout:    envDuration("BATCH_JOB_TIMEOUT", 0),
		LockTTL:       envDuration("BATCH_LOCK_TTL", 0),
	}
	if jobs := strings.TrimSpace(os.Getenv("BATCH_ENABLED_JOBS")); jobs != "" {
		for _, job := range strings.Split(jobs, ",") {
			if job = strings.TrimSpace(job); job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	return cfg
}

// ProvideLocker wires the distributed run lock when redis is configured.
// Without redis the runner operates in single-instance mode.
func ProvideLocker(cfg config.Config) *Locker {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}
	return NewLocker(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	}))
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    Config
	AppConfig config.Config
	Clock     clock.Clock
	Locker    *Locker `optional:"true"`
	Importer  *miningservice.Importer
	Engine    *taxservice.Engine
	Generator *invoiceservice.Generator
	Matcher   *reconcileservice.Matcher
	Credit    *creditservice.Ledger
}

func New(p Params) (*Runner, error) {
	return NewRunner(RunnerDeps{
		Log:       p.Log,
		Config:    p.Config,
		AppConfig: p.AppConfig,
		Clock:     p.Clock,
		Locker:    p.Locker,
		Importer:  p.Importer,
		Engine:    p.Engine,
		Generator: p.Generator,
		Matcher:   p.Matcher,
		Credit:    p.Credit,
	})
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
