package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/container"
	dockerclient "github.com/docker/docker/client"
)

const (
	labelManagedBy = "himawari.managed-by"
	labelRequestID = "himawari.request-id"
	managedByValue = "himawari"
)

// DockerDispatcher runs the provisioning pipeline locally: each dispatch
// launches a one-shot job container with the request bundle in its
// environment. It backs development and on-prem installs where there is
// no central pipeline to post to.
type DockerDispatcher struct {
	client *dockerclient.Client
	image  string
}

// NewDocker builds a dispatcher running jobs from the given image. The
// Docker endpoint comes from DOCKER_HOST or the default socket.
func NewDocker(image string) (*DockerDispatcher, error) {
	if image == "" {
		return nil, fmt.Errorf("deploy: job image is required")
	}
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.FromEnv,
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("deploy: docker client: %w", err)
	}
	return &DockerDispatcher{client: cli, image: image}, nil
}

// Dispatch creates and starts the job container. The container id is the
// pipeline reference.
func (d *DockerDispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	bundle, err := json.Marshal(req)
	if err != nil {
		return "", &Error{RequestID: req.RequestID, Err: fmt.Errorf("marshal request: %w", err)}
	}

	containerCfg := &container.Config{
		Image: d.image,
		Env: []string{
			"PROVISION_REQUEST=" + string(bundle),
			"PROVISION_REQUEST_ID=" + req.RequestID,
		},
		Labels: map[string]string{
			labelManagedBy: managedByValue,
			labelRequestID: req.RequestID,
		},
	}
	hostCfg := &container.HostConfig{
		// Jobs run once; failed jobs stay around for inspection.
		RestartPolicy: container.RestartPolicy{Name: "no"},
	}

	name := "himawari-job-" + sanitizeName(req.RequestID)
	resp, err := d.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", &Error{RequestID: req.RequestID, Err: fmt.Errorf("create job container: %w", err)}
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Best-effort cleanup
		_ = d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", &Error{RequestID: req.RequestID, Err: fmt.Errorf("start job container: %w", err)}
	}

	return resp.ID, nil
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, s)
}
