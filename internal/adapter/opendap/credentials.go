package opendap

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// CredentialProvider supplies Earthdata basic-auth credentials.
type CredentialProvider interface {
	Credentials(ctx context.Context) (username, password string, err error)
}

// Credentials is a fixed username/password pair.
type Credentials struct {
	Username string
	Password string
}

// Credentials implements CredentialProvider.
func (c Credentials) Credentials(_ context.Context) (string, string, error) {
	return c.Username, c.Password, nil
}

// LoadCredentials reads a two-line file: username, then password.
// Surrounding whitespace is trimmed; nothing else is checked.
func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("open credentials: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	if len(lines) < 2 {
		return Credentials{}, fmt.Errorf("credentials file %s: want 2 lines, have %d", path, len(lines))
	}
	return Credentials{Username: lines[0], Password: lines[1]}, nil
}
