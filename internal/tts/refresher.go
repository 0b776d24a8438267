package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Refresher obtains a fresh bearer token
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to Refresher
type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) { return f(ctx) }

// CommandRefresher runs an external command, such as
// `gcloud auth print-access-token`, and reads the token from stdout
type CommandRefresher struct {
	Name string
	Args []string
}

// NewCommandRefresher builds a refresher from argv
func NewCommandRefresher(argv []string) *CommandRefresher {
	if len(argv) == 0 {
		return &CommandRefresher{}
	}
	return &CommandRefresher{Name: argv[0], Args: argv[1:]}
}

func (r *CommandRefresher) Refresh(ctx context.Context) (string, error) {
	if r.Name == "" {
		return "", &CredentialError{Err: errors.New("no token command configured")}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Name, r.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return "", &CredentialError{Err: err}
	}

	token := strings.TrimSpace(stdout.String())
	if token == "" {
		return "", &CredentialError{Err: errors.New("token command printed nothing")}
	}
	return token, nil
}
