package database

import (
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"

	"github.com/semmidev/dbstash/internal/domain"
)

// MySQL takes a go-sql-driver DSN (user:pass@tcp(host:port)/db) because
// mysqldump has no connection URL flag.
type MySQL struct{}

func (MySQL) Type() string { return "mysql" }

func (MySQL) DefaultCommand() string {
	return "mysqldump --single-transaction --quick --routines --triggers --events"
}

func (MySQL) Extension() string { return ".sql" }

// Connect keeps the password out of the argument list; mysqldump reads it
// from MYSQL_PWD.
func (MySQL) Connect(conn string) (Invocation, error) {
	dsn, err := mysql.ParseDSN(conn)
	if err != nil {
		return Invocation{}, &domain.ConfigError{Field: "database.url", Reason: fmt.Sprintf("invalid mysql dsn: %v", err)}
	}
	if dsn.DBName == "" {
		return Invocation{}, &domain.ConfigError{Field: "database.url", Reason: "mysql dsn has no database name"}
	}

	var inv Invocation
	switch dsn.Net {
	case "unix":
		inv.Args = append(inv.Args, "--socket="+dsn.Addr)
	default:
		host, port, err := net.SplitHostPort(dsn.Addr)
		if err != nil {
			host, port = dsn.Addr, ""
		}
		inv.Args = append(inv.Args, "--host="+host)
		if port != "" {
			inv.Args = append(inv.Args, "--port="+port)
		}
	}
	if dsn.User != "" {
		inv.Args = append(inv.Args, "--user="+dsn.User)
	}
	if dsn.Passwd != "" {
		inv.Env = append(inv.Env, "MYSQL_PWD="+dsn.Passwd)
	}
	inv.Args = append(inv.Args, dsn.DBName)

	return inv, nil
}
