package health

import (
	"context"
	"time"

	"github.com/dbforge/dbforge/internal/platform/ssh"
	"github.com/dbforge/dbforge/internal/util/keygen"
)

// Runner executes a command on one cluster host over one access path.
// Implementations must honor the context deadline.
type Runner interface {
	Run(ctx context.Context, addr string, port int, user, command string) (string, error)
}

// defaultProbeTimeout bounds a single remote command during checks.
const defaultProbeTimeout = 15 * time.Second

// SSHRunner is the production Runner, using the deployment's generated
// keypair.
type SSHRunner struct {
	key     []byte
	timeout time.Duration
}

// NewSSHRunner loads the deployment keypair from dir.
func NewSSHRunner(dir string) (*SSHRunner, error) {
	key, err := keygen.LoadPrivateKey(dir)
	if err != nil {
		return nil, err
	}
	return &SSHRunner{key: key, timeout: defaultProbeTimeout}, nil
}

func (s *SSHRunner) Run(ctx context.Context, addr string, port int, user, command string) (string, error) {
	client, err := ssh.NewClient(&ssh.Config{
		Host:       addr,
		Port:       port,
		User:       user,
		PrivateKey: s.key,
		MaxRetries: 1,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return client.Execute(ctx, command)
}
