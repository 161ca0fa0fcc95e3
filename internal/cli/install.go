package cli

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/taskbridge/internal/paths"
)

const (
	daemonLabel = "com.mesh-intelligence.taskbridge"
	plistName   = daemonLabel + ".plist"
)

// plistTemplate is the launchd agent definition. KeepAlive restarts the
// watcher if it dies; ThrottleInterval stops a crash loop from spinning.
var plistTemplate = template.Must(template.New("plist").Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>{{.Label}}</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.Executable}}</string>
		<string>watch</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>ThrottleInterval</key>
	<integer>30</integer>
	<key>StandardOutPath</key>
	<string>{{.LogPath}}</string>
	<key>StandardErrorPath</key>
	<string>{{.ErrPath}}</string>
</dict>
</plist>
`))

type plistData struct {
	Label      string
	Executable string
	LogPath    string
	ErrPath    string
}

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the launchd agent that runs watch mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runtime.GOOS != "darwin" {
				return fmt.Errorf("install is only supported on macOS")
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate executable: %w", err)
			}
			dataDir, err := paths.ResolveDataDir(flags.dataDir, "")
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			var buf bytes.Buffer
			err = plistTemplate.Execute(&buf, plistData{
				Label:      daemonLabel,
				Executable: exe,
				LogPath:    filepath.Join(dataDir, "watcher.log"),
				ErrPath:    filepath.Join(dataDir, "watcher.err.log"),
			})
			if err != nil {
				return fmt.Errorf("render plist: %w", err)
			}

			plistPath, err := agentPlistPath()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(plistPath), 0o755); err != nil {
				return fmt.Errorf("create LaunchAgents dir: %w", err)
			}

			// Unload a previous install first so load picks up the new file.
			_ = exec.CommandContext(cmd.Context(), "launchctl", "unload", plistPath).Run()

			if err := os.WriteFile(plistPath, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write plist: %w", err)
			}
			out, err := exec.CommandContext(cmd.Context(),
				"launchctl", "load", "-w", plistPath).CombinedOutput()
			if err != nil {
				return fmt.Errorf("launchctl load: %s: %w", bytes.TrimSpace(out), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\nAgent %s is running.\n", plistPath, daemonLabel)
			return nil
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the launchd agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runtime.GOOS != "darwin" {
				return fmt.Errorf("uninstall is only supported on macOS")
			}

			plistPath, err := agentPlistPath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(plistPath); os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "Agent is not installed.")
				return nil
			}

			out, err := exec.CommandContext(cmd.Context(),
				"launchctl", "unload", plistPath).CombinedOutput()
			if err != nil {
				// Not loaded is fine; anything else is reported but the
				// plist is still removed.
				fmt.Fprintf(cmd.ErrOrStderr(), "launchctl unload: %s\n", bytes.TrimSpace(out))
			}
			if err := os.Remove(plistPath); err != nil {
				return fmt.Errorf("remove plist: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Agent uninstalled.")
			return nil
		},
	}
}

func agentPlistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, "Library", "LaunchAgents", plistName), nil
}
