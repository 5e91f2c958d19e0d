package database

type MongoDB struct{}

func (MongoDB) Type() string { return "mongodb" }

// DefaultCommand writes a single archive to stdout.
func (MongoDB) DefaultCommand() string {
	return "mongodump --archive"
}

func (MongoDB) Extension() string { return ".archive" }

func (MongoDB) Connect(conn string) (Invocation, error) {
	return Invocation{Args: []string{"--uri=" + conn}}, nil
}
