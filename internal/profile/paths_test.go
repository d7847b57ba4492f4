package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	got := Dir("main")
	want := filepath.Join(home, "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv(EnvHome, "")
	home, _ := os.UserHomeDir()
	if got, want := BaseDir(), filepath.Join(home, ".inboxsync"); got != want {
		t.Errorf("BaseDir() = %q, want %q", got, want)
	}
}

func TestPathSuffixes(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"socket", SocketPath("test"), filepath.Join("profiles", "test", "inboxd.sock")},
		{"lock", LockPath("test"), filepath.Join("profiles", "test", "LOCK")},
		{"journal", JournalPath("test"), filepath.Join("profiles", "test", "journal.db")},
		{"settings", SettingsPath("test"), filepath.Join("profiles", "test", "profile.toml")},
		{"log", LogPath("test"), filepath.Join("profiles", "test", "logs", "inboxd.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasSuffix(tt.got, tt.want) {
				t.Errorf("got %q, want suffix %q", tt.got, tt.want)
			}
		})
	}
}

func TestEnsureDirAndList(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())

	if err := EnsureDir("work"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(LogDir("work"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("log dir is not a directory")
	}

	names, err := List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "work" {
		t.Errorf("List() = %v, want [work]", names)
	}
}

func TestListWithoutBaseDir(t *testing.T) {
	t.Setenv(EnvHome, filepath.Join(t.TempDir(), "missing"))
	names, err := List()
	if err != nil || len(names) != 0 {
		t.Errorf("List() = %v, %v; want empty, nil", names, err)
	}
}
