package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gapcheck/internal/config"
)

const (
	pidFile    = "gapcheckd.pid"
	logFile    = "gapcheckd.log"
	daemonName = "gapcheckd"
	logTail    = 4096
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gapcheck daemon in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return startDaemon(cmd.OutOrStdout(), daemonAddr(cfg))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the gapcheck daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := configDir(cmd)
		if err != nil {
			return err
		}
		return stopDaemon(cmd.OutOrStdout(), dir, daemonAddr(cfg))
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return printStatus(cmd.OutOrStdout(), daemonAddr(cfg))
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := configDir(cmd)
		if err != nil {
			return err
		}
		return tailLogs(cmd.OutOrStdout(), filepath.Join(dir, "logs", logFile), logTail)
	},
}

// daemonAddr is the base URL the CLI uses to reach the daemon
func daemonAddr(cfg *config.LocalConfig) string {
	host := cfg.Daemon.Bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Daemon.Port))
}

func startDaemon(out io.Writer, addr string) error {
	if isRunning(addr) {
		fmt.Fprintln(out, "✓ Daemon is already running")
		return nil
	}

	dir, err := config.EnsureDir()
	if err != nil {
		return fmt.Errorf("setup config directory: %w", err)
	}

	path, err := findDaemonBinary()
	if err != nil {
		return fmt.Errorf("find daemon binary: %w", err)
	}

	proc := exec.Command(path)
	proc.Dir = dir
	configureDaemonProcess(proc)

	if err := proc.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	fmt.Fprint(out, "Starting daemon...")
	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			fmt.Fprintf(out, "Daemon running at %s\n", addr)
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon failed to start (check logs with 'gapcheck logs')")
}

func stopDaemon(out io.Writer, dir, addr string) error {
	if !isRunning(addr) {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	pid, err := readPID(filepath.Join(dir, pidFile))
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process: %w", err)
	}

	fmt.Fprint(out, "Stopping daemon...")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("send signal: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isRunning(addr) {
			fmt.Fprintln(out, " ✓")
			return nil
		}
		fmt.Fprint(out, ".")
	}

	fmt.Fprintln(out, " ✗")
	return fmt.Errorf("daemon did not stop gracefully")
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

func printStatus(out io.Writer, addr string) error {
	if !isRunning(addr) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	resp, err := http.Get(addr + "/v1/status")
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		Status    string `json:"status"`
		Version   string `json:"version"`
		Catalog   string `json:"catalog"`
		Sections  int    `json:"sections"`
		Questions int    `json:"questions"`
		Storage   string `json:"storage"`
		Events    bool   `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("parse status: %w", err)
	}

	fmt.Fprintf(out, "Status:    %s\n", status.Status)
	fmt.Fprintf(out, "Version:   %s\n", status.Version)
	fmt.Fprintf(out, "Catalog:   %s (%d sections, %d questions)\n", status.Catalog, status.Sections, status.Questions)
	fmt.Fprintf(out, "Storage:   %s\n", status.Storage)
	fmt.Fprintf(out, "Events:    %t\n", status.Events)
	fmt.Fprintf(out, "Address:   %s\n", addr)
	return nil
}

// tailLogs prints roughly the last window bytes of the log at path,
// starting on a line boundary
func tailLogs(out io.Writer, path string, window int64) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "No log file found. Start the daemon first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	offset := max(info.Size()-window, 0)
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	if offset > 0 {
		// partial first line
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(out, scanner.Text())
	}
	return scanner.Err()
}

// isRunning checks if the daemon answers its health endpoint
func isRunning(addr string) bool {
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(addr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the gapcheckd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath(daemonName); err == nil {
		return path, nil
	}

	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), daemonName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{
		"/usr/local/bin/gapcheckd",
		"./gapcheckd",
		"./cmd/gapcheckd/gapcheckd",
	} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("gapcheckd binary not found (build with 'go build ./cmd/gapcheckd')")
}
