package docker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/juju/collections/set"

	"nodectl/internal/config"
	"nodectl/pkg/logging"
)

// runner executes one external command in dir (empty = inherit) and
// returns its stdout. It exists so tests can intercept every call.
type runner func(ctx context.Context, dir, name string, args ...string) (string, error)

// Client drives the container runtime through its CLI. It satisfies
// Runtime. All state lives in the runtime itself; the client is safe
// for concurrent use.
type Client struct {
	settings config.DockerSettings
	run      runner
}

// NewClient returns a CLI-backed runtime client.
func NewClient(settings config.DockerSettings) *Client {
	if settings.Binary == "" {
		settings.Binary = "docker"
	}
	if settings.Compose == "" {
		settings.Compose = "compose"
	}
	c := &Client{settings: settings}
	c.run = c.execRun
	return c
}

func (c *Client) execRun(ctx context.Context, dir, name string, args ...string) (string, error) {
	logging.Debug("Docker", "Running %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%s %s: %w: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (c *Client) docker(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, "", c.settings.Binary, args...)
}

// compose runs a compose verb against the instance directory with the
// given fragment list. Fragments are passed explicitly rather than via
// COMPOSE_FILE so the call is independent of the process environment.
func (c *Client) compose(ctx context.Context, dir string, fragments []string, verb ...string) error {
	args := []string{c.settings.Compose}
	for _, f := range fragments {
		args = append(args, "-f", f)
	}
	args = append(args, verb...)
	_, err := c.run(ctx, dir, c.settings.Binary, args...)
	return err
}

func (c *Client) ComposeUp(ctx context.Context, dir string, fragments []string) error {
	return c.compose(ctx, dir, fragments, "up", "-d")
}

func (c *Client) ComposeStop(ctx context.Context, dir string, fragments []string) error {
	return c.compose(ctx, dir, fragments, "stop")
}

func (c *Client) ComposeDown(ctx context.Context, dir string, fragments []string, removeVolumes bool) error {
	verb := []string{"down", "--remove-orphans"}
	if removeVolumes {
		verb = append(verb, "-v")
	}
	return c.compose(ctx, dir, fragments, verb...)
}

func (c *Client) ComposePull(ctx context.Context, dir string, fragments []string) error {
	return c.compose(ctx, dir, fragments, "pull")
}

func (c *Client) ComposeRestart(ctx context.Context, dir string, fragments []string, services ...string) error {
	return c.compose(ctx, dir, fragments, append([]string{"restart"}, services...)...)
}

func (c *Client) ListContainers(ctx context.Context, namePrefix string) ([]Container, error) {
	out, err := c.docker(ctx, "ps", "-a", "--format", "{{.ID}}\t{{.Names}}\t{{.State}}\t{{.Status}}")
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}
	return parseContainerList(out, namePrefix), nil
}

func parseContainerList(out, namePrefix string) []Container {
	var containers []Container
	for _, line := range splitLines(out) {
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) < 3 {
			continue
		}
		ctr := Container{ID: parts[0], Name: parts[1], State: parts[2]}
		if len(parts) == 4 {
			ctr.Status = parts[3]
		}
		if namePrefix == "" || strings.HasPrefix(ctr.Name, namePrefix) {
			containers = append(containers, ctr)
		}
	}
	return containers
}

func (c *Client) ListVolumes(ctx context.Context, namePrefix string) ([]string, error) {
	out, err := c.docker(ctx, "volume", "ls", "--format", "{{.Name}}")
	if err != nil {
		return nil, fmt.Errorf("listing volumes: %w", err)
	}
	var volumes []string
	for _, name := range splitLines(out) {
		if namePrefix == "" || strings.HasPrefix(name, namePrefix) {
			volumes = append(volumes, name)
		}
	}
	return volumes, nil
}

func (c *Client) ListNetworks(ctx context.Context) ([]string, error) {
	out, err := c.docker(ctx, "network", "ls", "--format", "{{.Name}}")
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	return splitLines(out), nil
}

func (c *Client) NetworkExists(ctx context.Context, name string) (bool, error) {
	networks, err := c.ListNetworks(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range networks {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) NetworkContainers(ctx context.Context, name string) ([]string, error) {
	out, err := c.docker(ctx, "network", "inspect", name,
		"--format", `{{range .Containers}}{{.Name}}{{"\n"}}{{end}}`)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("inspecting network %s: %w", name, err)
	}
	return splitLines(out), nil
}

func (c *Client) ContainerPortTokens(ctx context.Context) ([]string, error) {
	out, err := c.docker(ctx, "ps", "-aq")
	if err != nil {
		return nil, fmt.Errorf("listing container ids: %w", err)
	}
	ids := splitLines(out)
	if len(ids) == 0 {
		return nil, nil
	}

	// HostConfig.PortBindings covers stopped containers too, which a ps
	// ports column would not.
	args := append([]string{"inspect", "--format",
		`{{range .HostConfig.PortBindings}}{{range .}}{{.HostPort}}{{"\n"}}{{end}}{{end}}`}, ids...)
	out, err = c.docker(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("inspecting port bindings: %w", err)
	}
	return splitLines(out), nil
}

// ListeningPorts shells out to ss; the allocator treats failures here as
// a degraded-but-usable snapshot, its bind probe still catches live
// listeners.
func (c *Client) ListeningPorts(ctx context.Context) ([]int, error) {
	out, err := c.run(ctx, "", "ss", "-ltnH")
	if err != nil {
		return nil, fmt.Errorf("listing host sockets: %w", err)
	}
	return parseListeningPorts(out), nil
}

func parseListeningPorts(out string) []int {
	ports := set.NewInts()
	for _, line := range splitLines(out) {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		// Local address is the 4th column, e.g. "0.0.0.0:8545" or
		// "[::]:9000".
		addr := fields[3]
		idx := strings.LastIndex(addr, ":")
		if idx < 0 {
			continue
		}
		if p, err := strconv.Atoi(addr[idx+1:]); err == nil {
			ports.Add(p)
		}
	}
	return ports.SortedValues()
}

func (c *Client) CreateNetwork(ctx context.Context, name string) error {
	exists, err := c.NetworkExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		logging.Debug("Docker", "Network %s already exists", name)
		return nil
	}
	if _, err := c.docker(ctx, "network", "create", name); err != nil {
		return fmt.Errorf("creating network %s: %w", name, err)
	}
	return nil
}

func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	if _, err := c.docker(ctx, "network", "rm", name); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing network %s: %w", name, err)
	}
	return nil
}

func (c *Client) ConnectNetwork(ctx context.Context, network, container string) error {
	if _, err := c.docker(ctx, "network", "connect", network, container); err != nil {
		if strings.Contains(err.Error(), "already exists in network") {
			return nil
		}
		return fmt.Errorf("connecting %s to %s: %w", container, network, err)
	}
	return nil
}

func (c *Client) DisconnectNetwork(ctx context.Context, network, container string) error {
	if _, err := c.docker(ctx, "network", "disconnect", network, container); err != nil {
		if isNotFound(err) || strings.Contains(err.Error(), "is not connected") {
			return nil
		}
		return fmt.Errorf("disconnecting %s from %s: %w", container, network, err)
	}
	return nil
}

func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	if _, err := c.docker(ctx, "rm", "-f", name); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing container %s: %w", name, err)
	}
	return nil
}

func (c *Client) RemoveVolume(ctx context.Context, name string) error {
	if _, err := c.docker(ctx, "volume", "rm", name); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing volume %s: %w", name, err)
	}
	return nil
}

// isNotFound classifies CLI errors for resources that are already gone.
// The CLI has no structured errors, so this matches the message forms
// the docker and podman CLIs emit.
func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such") || strings.Contains(msg, "not found")
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
