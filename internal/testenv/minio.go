//go:build e2e

package testenv

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
)

// MinIOImage pins the server version used for S3Store integration tests, so
// a test run doesn't silently pick up a breaking MinIO release.
const MinIOImage = "minio/minio:RELEASE.2024-01-16T16-07-38Z"

const (
	minioAccessKey = "bffminiotest"
	minioSecretKey = "bffminiotestsecret"
)

// MinIO wraps a running MinIO container with the endpoint and static
// credentials internal/objstore.S3Options needs to talk to it.
type MinIO struct {
	container *Container
	Endpoint  string
	AccessKey string
	SecretKey string
}

// StartMinIO brings up a single-node MinIO server bound to an ephemeral host
// port and waits until its health endpoint answers.
func StartMinIO(ctx context.Context) (*MinIO, error) {
	const containerPort = "9000/tcp"

	cfg := &container.Config{
		Image: MinIOImage,
		Cmd:   []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=" + minioAccessKey,
			"MINIO_ROOT_PASSWORD=" + minioSecretKey,
		},
		ExposedPorts: nat.PortSet{nat.Port(containerPort): struct{}{}},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(containerPort): []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "0"}},
		},
		AutoRemove: true,
	}

	c, err := NewContainer(ctx, cfg, hostCfg)
	if err != nil {
		return nil, fmt.Errorf("start minio: %w", err)
	}

	port, err := c.HostPort(ctx, containerPort)
	if err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("resolve minio port: %w", err)
	}

	m := &MinIO{
		container: c,
		Endpoint:  "http://127.0.0.1:" + port,
		AccessKey: minioAccessKey,
		SecretKey: minioSecretKey,
	}
	if err := m.waitReady(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return m, nil
}

// Close stops and removes the underlying container.
func (m *MinIO) Close(ctx context.Context) error {
	return m.container.Close(ctx)
}

func (m *MinIO) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.Endpoint+"/minio/health/live", nil)
		if err == nil {
			resp, err := http.DefaultClient.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("minio did not become ready within 30s")
		}
		time.Sleep(500 * time.Millisecond)
	}
}
