package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const maxVestingCap = 2 * 365 * 24 * time.Hour

var reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)

type Config struct {
	AppPort  string
	LogLevel string

	DBDriver   string
	SQLitePath string
	MySQLHost  string
	MySQLPort  string
	MySQLDB    string
	MySQLUser  string
	MySQLPass  string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int
	LockTTLSecs  int

	EventStream       string
	EventStreamMaxLen int64
	RelayIntervalMS   int

	JWTSecret         string
	AdminAccounts     []string
	IssuerAccounts    []string
	SettlementAccount string

	// engine parameters
	BaseRateBP          uint32
	RiskPremiumBP       [3]uint32
	MinVestingSecs      int64
	MaxVestingSecs      int64
	LockPeriodSecs      int64
	GracePeriodSecs     int64
	ListingDurationSecs int64
	CollateralRateBP    uint32
	ProtocolFeeBP       uint32
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return d
}

func getbp(k string, d uint32) uint32 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return d
}

// getlist splits a comma separated variable, dropping blanks.
func getlist(k string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(k), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

const day = 24 * 60 * 60

func Load() *Config {
	c := &Config{
		AppPort:  getenv("APP_PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DBDriver:   getenv("DB_DRIVER", "mysql"),
		SQLitePath: getenv("SQLITE_PATH", "receivables.db"),
		MySQLHost:  getenv("MYSQL_HOST", "mysql"),
		MySQLPort:  getenv("MYSQL_PORT", "3306"),
		MySQLDB:    getenv("MYSQL_DB", "receivables"),
		MySQLUser:  getenv("MYSQL_USER", "receivables"),
		MySQLPass:  getenv("MYSQL_PASS", "receivables"),

		RedisAddr: getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:   int(getint("REDIS_DB", 0)),

		IdempTTLSecs: int(getint("IDEMPOTENCY_TTL_SECONDS", 300)),
		LockTTLSecs:  int(getint("LOCK_TTL_SECONDS", 30)),

		EventStream:       getenv("EVENT_STREAM", "receivables:events"),
		EventStreamMaxLen: getint("EVENT_STREAM_MAXLEN", 100_000),
		RelayIntervalMS:   int(getint("RELAY_INTERVAL_MS", 2000)),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminAccounts:     getlist("ADMIN_ACCOUNTS"),
		IssuerAccounts:    getlist("ISSUER_ACCOUNTS"),
		SettlementAccount: getenv("SETTLEMENT_ACCOUNT", strings.Repeat("5", 32)),

		BaseRateBP: getbp("BASE_RATE_BP", 500),
		RiskPremiumBP: [3]uint32{
			getbp("RISK_PREMIUM_LOW_BP", 100),
			getbp("RISK_PREMIUM_MEDIUM_BP", 200),
			getbp("RISK_PREMIUM_HIGH_BP", 500),
		},
		MinVestingSecs:      getint("MIN_VESTING_SECONDS", day),
		MaxVestingSecs:      getint("MAX_VESTING_SECONDS", 730*day),
		LockPeriodSecs:      getint("LOCK_PERIOD_SECONDS", 7*day),
		GracePeriodSecs:     getint("GRACE_PERIOD_SECONDS", 30*day),
		ListingDurationSecs: getint("LISTING_DURATION_SECONDS", 7*day),
		CollateralRateBP:    getbp("COLLATERAL_RATE_BP", 1000),
		ProtocolFeeBP:       getbp("PROTOCOL_FEE_BP", 250),
	}
	return c
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.JWTSecret == "" {
		return errors.New("missing JWT_SECRET")
	}
	if !reHex32.MatchString(c.SettlementAccount) {
		return fmt.Errorf("SETTLEMENT_ACCOUNT %q must be 32-char lowercase hex", c.SettlementAccount)
	}
	for _, a := range append(append([]string{}, c.AdminAccounts...), c.IssuerAccounts...) {
		if !reHex32.MatchString(a) {
			return fmt.Errorf("account %q must be 32-char lowercase hex", a)
		}
	}

	for tier, p := range c.RiskPremiumBP {
		if p > 2000 {
			return fmt.Errorf("risk premium for tier %d is %d bp, max 2000", tier, p)
		}
		if tier > 0 && p < c.RiskPremiumBP[tier-1] {
			return fmt.Errorf("risk premiums must not decrease with tier (%d < %d)", p, c.RiskPremiumBP[tier-1])
		}
	}
	switch {
	case c.MinVestingSecs <= 0:
		return errors.New("MIN_VESTING_SECONDS must be positive")
	case c.MaxVestingSecs < c.MinVestingSecs:
		return errors.New("MAX_VESTING_SECONDS must not be below MIN_VESTING_SECONDS")
	case c.MaxVesting() > maxVestingCap:
		return errors.New("MAX_VESTING_SECONDS must not exceed two years")
	case c.LockPeriodSecs < 0, c.GracePeriodSecs < 0:
		return errors.New("periods must not be negative")
	case c.ListingDurationSecs <= 0:
		return errors.New("LISTING_DURATION_SECONDS must be positive")
	case c.CollateralRateBP > 10_000:
		return fmt.Errorf("COLLATERAL_RATE_BP %d exceeds 10000", c.CollateralRateBP)
	case c.ProtocolFeeBP > 10_000:
		return fmt.Errorf("PROTOCOL_FEE_BP %d exceeds 10000", c.ProtocolFeeBP)
	case c.LockTTLSecs <= 0:
		return errors.New("LOCK_TTL_SECONDS must be positive")
	}
	return nil
}

func secs(n int64) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) MinVesting() time.Duration      { return secs(c.MinVestingSecs) }
func (c *Config) MaxVesting() time.Duration      { return secs(c.MaxVestingSecs) }
func (c *Config) LockPeriod() time.Duration      { return secs(c.LockPeriodSecs) }
func (c *Config) GracePeriod() time.Duration     { return secs(c.GracePeriodSecs) }
func (c *Config) ListingDuration() time.Duration { return secs(c.ListingDurationSecs) }
func (c *Config) LockTTL() time.Duration         { return secs(int64(c.LockTTLSecs)) }
func (c *Config) IdempTTL() time.Duration        { return secs(int64(c.IdempTTLSecs)) }
func (c *Config) RelayInterval() time.Duration {
	return time.Duration(c.RelayIntervalMS) * time.Millisecond
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN is the data source for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.MySQLDSN()
}
