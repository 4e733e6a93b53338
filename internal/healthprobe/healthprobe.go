// Package healthprobe classifies PostgreSQL candidates as primary,
// replica, or unhealthy using pgx, the way check_postgres_primary does with
// libpq in the original C source.
package healthprobe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mesudip/pg-gateway/internal/gateway"
)

// Prober implements gateway.Prober against real PostgreSQL candidates.
type Prober struct {
	Database       string
	User           string
	Password       string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// NewProber builds a Prober from the resolved configuration.
func NewProber(database, user, password string, connectTimeout, queryTimeout time.Duration) *Prober {
	return &Prober{
		Database:       database,
		User:           user,
		Password:       password,
		ConnectTimeout: connectTimeout,
		QueryTimeout:   queryTimeout,
	}
}

// Probe connects, sets the statement timeout, and checks
// transaction_read_only, classifying the candidate per §4.5. Every call
// opens and closes its own connection -- the check runs once every
// CHECK_EVERY seconds, so a persistent pooled connection buys nothing and
// would only complicate failure classification (a half-dead pooled
// connection masking a real primary change).
func (p *Prober) Probe(ctx context.Context, candidate gateway.Candidate) gateway.ProbeResult {
	connCtx, cancel := context.WithTimeout(ctx, p.ConnectTimeout)
	defer cancel()

	connString := fmt.Sprintf("host=%s port=%s dbname=%s connect_timeout=%d",
		candidate.Host, candidate.Port, p.Database, int(p.ConnectTimeout.Seconds()))
	if p.User != "" {
		connString += " user=" + p.User
	}
	if p.Password != "" {
		connString += " password=" + p.Password
	}

	conn, err := pgx.Connect(connCtx, connString)
	if err != nil {
		return gateway.ProbeResult{State: gateway.HealthUnhealthy, Reason: "connect failed: " + err.Error()}
	}
	defer conn.Close(context.Background())

	queryCtx, cancel2 := context.WithTimeout(ctx, p.QueryTimeout)
	defer cancel2()

	stmtTimeout := fmt.Sprintf("SET statement_timeout=%d;", p.QueryTimeout.Milliseconds())
	if _, err := conn.Exec(queryCtx, stmtTimeout); err != nil {
		return gateway.ProbeResult{State: gateway.HealthUnhealthy, Reason: "set statement_timeout failed: " + err.Error()}
	}

	var readOnly string
	if err := conn.QueryRow(queryCtx, "SHOW transaction_read_only;").Scan(&readOnly); err != nil {
		return gateway.ProbeResult{State: gateway.HealthUnhealthy, Reason: "read-only check failed: " + err.Error()}
	}

	if strings.EqualFold(readOnly, "off") {
		return gateway.ProbeResult{State: gateway.HealthPrimary}
	}
	return gateway.ProbeResult{State: gateway.HealthReplica, Reason: "server reported read-only (standby)"}
}
