package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres holds the server-reported fields of a failed statement.
type Postgres struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump is the log-only view of an error chain. It never reaches a response body.
type ErrorDump struct {
	Message   string    `json:"message"`
	Code      Code      `json:"code,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
	Chain     []string  `json:"chain,omitempty"`
	Postgres  *Postgres `json:"postgres,omitempty"`
	SQLite    string    `json:"sqlite,omitempty"`
}

// sqlite drivers only report text; these fragments mark a store-level failure.
var sqliteMarkers = []string{"constraint failed", "SQL logic error", "database is locked", "no such table"}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error(), Postgres: postgresFields(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
		d.Retryable = MetadataFor(d.Code).Retryable
	}
	for link := err; link != nil; link = errors.Unwrap(link) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", link, link))
	}
	if d.Postgres == nil {
		d.SQLite = sqliteText(err)
	}
	return d
}

func postgresFields(err error) *Postgres {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return &Postgres{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &Postgres{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// sqliteText returns the innermost matching message, free of wrapping prefixes.
func sqliteText(err error) string {
	found := ""
	for link := err; link != nil; link = errors.Unwrap(link) {
		msg := link.Error()
		for _, marker := range sqliteMarkers {
			if strings.Contains(msg, marker) {
				found = msg
				break
			}
		}
	}
	return found
}

// Fields flattens the dump for structured log entries.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error_chain": d.Chain}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
		fields["retryable"] = d.Retryable
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_constraint"] = pg.Constraint
		fields["pg_table"] = pg.Table
	}
	if d.SQLite != "" {
		fields["sqlite_message"] = d.SQLite
	}
	return fields
}
