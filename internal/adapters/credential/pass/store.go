package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports"
)

const DefaultKey = "buswork/session"

var ErrUnavailable = errors.New("pass command unavailable")

type runFunc func(ctx context.Context, input string, args ...string) (stdout string, stderr string, err error)

// Store keeps the credential as a pass entry: the token on the first line,
// then "username:" and "issued_at:" fields.
type Store struct {
	key string
	run runFunc
}

var _ ports.CredentialStore = (*Store)(nil)

func NewStore(key string) *Store {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &Store{key: key, run: runPassCommand}
}

func (s *Store) Key() string {
	return s.key
}

// EntryPath is the encrypted file pass keeps for the entry.
func (s *Store) EntryPath() (string, error) {
	root := os.Getenv("PASSWORD_STORE_DIR")
	if root == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		root = filepath.Join(homeDir, ".password-store")
	}

	return filepath.Join(root, filepath.FromSlash(s.key)+".gpg"), nil
}

func (s *Store) Save(ctx context.Context, credential domain.Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if credential.Empty() {
		return errors.New("refusing to store an empty credential")
	}

	_, stderr, err := s.run(ctx, encode(credential), "insert", "-m", "-f", s.key)
	if err != nil {
		return formatError("insert", s.key, err, stderr)
	}

	return nil
}

func (s *Store) Load(ctx context.Context) (domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return domain.Credential{}, err
	}

	stdout, stderr, err := s.run(ctx, "", "show", s.key)
	if err != nil {
		if strings.Contains(stderr, "is not in the password store") {
			return domain.Credential{}, domain.ErrCredentialNotFound
		}
		return domain.Credential{}, formatError("show", s.key, err, stderr)
	}

	credential := decode(stdout)
	if credential.Empty() {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}

	return credential, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, stderr, err := s.run(ctx, "", "rm", "-f", s.key)
	if err != nil {
		if strings.Contains(stderr, "is not in the password store") {
			return nil
		}
		return formatError("rm", s.key, err, stderr)
	}

	return nil
}

func encode(credential domain.Credential) string {
	var b strings.Builder
	b.WriteString(credential.Token)
	b.WriteString("\n")
	if credential.Username != "" {
		fmt.Fprintf(&b, "username: %s\n", credential.Username)
	}
	if !credential.IssuedAt.IsZero() {
		fmt.Fprintf(&b, "issued_at: %s\n", credential.IssuedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

func decode(raw string) domain.Credential {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")

	credential := domain.Credential{Token: strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "username":
			credential.Username = value
		case "issued_at":
			if parsed, err := time.Parse(time.RFC3339, value); err == nil {
				credential.IssuedAt = parsed
			}
		}
	}

	return credential
}

func runPassCommand(ctx context.Context, input string, args ...string) (string, string, error) {
	path, err := exec.LookPath("pass")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate pass command: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func formatError(op string, key string, err error, stderr string) error {
	if stderr == "" {
		return fmt.Errorf("pass %s %q: %w", op, key, err)
	}

	return fmt.Errorf("pass %s %q: %w: %s", op, key, err, stderr)
}
