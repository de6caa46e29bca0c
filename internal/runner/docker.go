package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"

	"github.com/agentlab/gauntlet/internal/artifact"
	"github.com/agentlab/gauntlet/internal/matrix"
)

// containerOutputDir is where the runner image expects to write result
// artifacts; the host output directory is bind-mounted there.
const containerOutputDir = "/benchmark_results"

// DockerExecutor runs the benchmark runner inside a container. Used when
// the runner needs an environment (simulator, ROS stack) that is not
// installed on the host.
type DockerExecutor struct {
	Opts    *Opts
	Image   string
	Command []string
	WorkDir string
}

func (d *DockerExecutor) Execute(ctx context.Context, req matrix.RunRequest) (*RunOutcome, error) {
	logPath := artifact.LogPath(d.Opts.RunRoot, req)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("creating run log: %w", err)
	}
	defer logFile.Close()

	outputAbs, err := filepath.Abs(d.Opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(outputAbs, 0o755); err != nil {
		return nil, fmt.Errorf("creating runner output dir: %w", err)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	// The artifact must land in the mounted directory, so the in-container
	// output dir overrides whatever the shared Opts carry.
	containerOpts := *d.Opts
	containerOpts.OutputDir = containerOutputDir
	cmd := append(append([]string{}, d.Command...), BuildArgs(&containerOpts, req)...)

	envSlice := make([]string, 0, len(d.Opts.Env))
	for k, v := range d.Opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: outputAbs, Target: containerOutputDir},
		},
		Init:       &initTrue,
		ExtraHosts: []string{"host.docker.internal:host-gateway"},
	}
	containerCfg := &container.Config{
		Image:  d.Image,
		Cmd:    cmd,
		Env:    envSlice,
		Labels: map[string]string{"gauntlet": "true"},
	}
	if d.WorkDir != "" {
		containerCfg.WorkingDir = d.WorkDir
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	fmt.Fprintf(logFile, "=== %s | image %s cmd %v\n", req.ID(), d.Image, cmd)

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	tctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(tctx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				d.drainLogs(cli, containerID, logFile)
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return &RunOutcome{
					Status:   StatusTimeout,
					ExitCode: 124,
					LogPath:  logPath,
					Duration: time.Since(start),
				}, nil
			}
			// nil means nothing on this channel yet; keep waiting
		case status := <-waitResult.Result:
			d.drainLogs(cli, containerID, logFile)
			outcome := &RunOutcome{
				ExitCode: int(status.StatusCode),
				LogPath:  logPath,
				Duration: time.Since(start),
			}
			if outcome.ExitCode == 0 {
				outcome.Status = StatusOK
			} else {
				outcome.Status = StatusProcessError
			}
			return outcome, nil
		}
	}
}

func (d *DockerExecutor) drainLogs(cli *client.Client, containerID string, w io.Writer) {
	logReader, err := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{
		ShowStdout: true, ShowStderr: true,
	})
	if err != nil || logReader == nil {
		return
	}
	defer logReader.Close()
	io.Copy(w, logReader)
}
