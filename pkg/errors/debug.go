package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log-side view of an error: the full cause chain plus any
// driver fields. It never reaches the client.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	DB *DBErrorFields `json:"db,omitempty"`
}

// DBErrorFields are the driver-reported details of a failed statement.
type DBErrorFields struct {
	Driver     string `json:"driver"`
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.DB = dbFields(err)
	return d
}

// LogFields flattens the dump into logger fields.
func (d ErrorDump) LogFields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.DB != nil {
		fields["db_driver"] = d.DB.Driver
		fields["db_code"] = d.DB.Code
		fields["db_message"] = d.DB.Message
		if d.DB.Constraint != "" {
			fields["db_constraint"] = d.DB.Constraint
		}
		if d.DB.Table != "" {
			fields["db_table"] = d.DB.Table
		}
		if d.DB.Detail != "" {
			fields["db_detail"] = d.DB.Detail
		}
	}
	return fields
}

func dbFields(err error) *DBErrorFields {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBErrorFields{
			Driver:     "postgres",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBErrorFields{
			Driver:     "postgres",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &DBErrorFields{
			Driver:  "mysql",
			Code:    strconv.Itoa(int(myErr.Number)),
			Message: myErr.Message,
		}
	}
	return nil
}
