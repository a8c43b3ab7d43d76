package daemon

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
)

// writePIDFile writes pid to a fresh PID file and returns its path.
func writePIDFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paira.pid")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	return path
}

// livePID starts a process that outlives the test body.
func livePID(t *testing.T) int {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires sleep")
	}
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd.Process.Pid
}

// deadPID returns the pid of a process that has already been reaped.
func deadPID(t *testing.T) int {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires true")
	}
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	return cmd.Process.Pid
}

func TestDefaultPIDPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAIRA_PID_PATH", "")
	t.Setenv("PAIRA_DIR", dir)

	if got, want := DefaultPIDPath(), filepath.Join(dir, "paira.pid"); got != want {
		t.Errorf("DefaultPIDPath() = %s, want %s", got, want)
	}

	t.Setenv("PAIRA_PID_PATH", filepath.Join(dir, "custom.pid"))
	if got, want := DefaultPIDPath(), filepath.Join(dir, "custom.pid"); got != want {
		t.Errorf("DefaultPIDPath() = %s, want %s", got, want)
	}
}

func TestAcquirePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "paira.pid")

	if err := AcquirePID(path); err != nil {
		t.Fatalf("AcquirePID: %v", err)
	}

	pid, err := ReadPID(path)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("ReadPID() = %d, want %d", pid, os.Getpid())
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("pid file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestAcquirePID_OwnFile(t *testing.T) {
	path := writePIDFile(t, strconv.Itoa(os.Getpid())+"\n")

	if err := AcquirePID(path); err != nil {
		t.Fatalf("AcquirePID over own pid: %v", err)
	}
}

func TestAcquirePID_LiveOwner(t *testing.T) {
	owner := livePID(t)
	path := writePIDFile(t, strconv.Itoa(owner))

	err := AcquirePID(path)
	var running *RunningError
	if !errors.As(err, &running) {
		t.Fatalf("expected *RunningError, got %v", err)
	}
	if running.PID != owner {
		t.Errorf("RunningError.PID = %d, want %d", running.PID, owner)
	}

	// The live owner's file is left alone
	if pid, _ := ReadPID(path); pid != owner {
		t.Errorf("pid file now holds %d, want %d", pid, owner)
	}
}

func TestAcquirePID_Stale(t *testing.T) {
	tests := []struct {
		name    string
		content func(t *testing.T) string
	}{
		{"dead process", func(t *testing.T) string { return strconv.Itoa(deadPID(t)) }},
		{"garbage", func(*testing.T) string { return "not-a-pid" }},
		{"empty", func(*testing.T) string { return "" }},
		{"negative", func(*testing.T) string { return "-5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePIDFile(t, tt.content(t))

			if err := AcquirePID(path); err != nil {
				t.Fatalf("AcquirePID over stale file: %v", err)
			}
			if pid, err := ReadPID(path); err != nil || pid != os.Getpid() {
				t.Errorf("ReadPID() = %d, %v; want %d", pid, err, os.Getpid())
			}
		})
	}
}

func TestReadPID(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain", "1234", 1234, false},
		{"trailing newline", "1234\n", 1234, false},
		{"whitespace", "  42 \n", 42, false},
		{"garbage", "abc", 0, true},
		{"zero", "0", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPID(writePIDFile(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadPID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ReadPID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReadPID_NotExists(t *testing.T) {
	_, err := ReadPID(filepath.Join(t.TempDir(), "missing.pid"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestRemovePID(t *testing.T) {
	path := writePIDFile(t, "1234")

	if err := RemovePID(path); err != nil {
		t.Fatalf("RemovePID: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pid file still exists")
	}

	// Missing file is not an error
	if err := RemovePID(path); err != nil {
		t.Errorf("RemovePID on missing file: %v", err)
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("current process should be running")
	}
	for _, pid := range []int{0, -1} {
		if IsProcessRunning(pid) {
			t.Errorf("IsProcessRunning(%d) = true", pid)
		}
	}
	if IsProcessRunning(deadPID(t)) {
		t.Error("reaped process should not be running")
	}
}

func TestIsDaemonRunning(t *testing.T) {
	owner := livePID(t)

	running, pid := IsDaemonRunning(writePIDFile(t, strconv.Itoa(owner)))
	if !running || pid != owner {
		t.Errorf("IsDaemonRunning() = %v, %d; want true, %d", running, pid, owner)
	}

	running, pid = IsDaemonRunning(writePIDFile(t, strconv.Itoa(deadPID(t))))
	if running || pid != 0 {
		t.Errorf("IsDaemonRunning() on dead pid = %v, %d", running, pid)
	}

	running, _ = IsDaemonRunning(filepath.Join(t.TempDir(), "missing.pid"))
	if running {
		t.Error("missing pid file should not report running")
	}
}
