package database

// PostgreSQL dumps with pg_dump, passing the connection URL through --dbname.
type PostgreSQL struct{}

func (PostgreSQL) Type() string { return "postgresql" }

func (PostgreSQL) DefaultCommand() string {
	return "pg_dump --format=plain --clean --exclude-table=clicks"
}

func (PostgreSQL) Extension() string { return ".sql" }

func (PostgreSQL) Connect(conn string) (Invocation, error) {
	return Invocation{Args: []string{"--dbname=" + conn}}, nil
}
