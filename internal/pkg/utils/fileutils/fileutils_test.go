package fileutils

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// createTempDirWithFiles creates a temporary directory with specified files and contents
func createTempDirWithFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := os.MkdirTemp(t.TempDir(), "test-dir")
	if err != nil {
		t.Fatal(err)
	}

	for path, content := range files {
		filePath := filepath.Join(dir, path)
		dirPath := filepath.Dir(filePath)

		// Create parent directories if needed
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	return dir
}

func TestCompareDirectories(t *testing.T) {
	tests := []struct {
		name   string
		files1 map[string]string
		files2 map[string]string
		want   bool
	}{
		{
			name:   "identical directories",
			files1: map[string]string{"file1.txt": "hello", "subdir/file2.txt": "world"},
			files2: map[string]string{"file1.txt": "hello", "subdir/file2.txt": "world"},
			want:   true,
		},
		{
			name:   "different file content",
			files1: map[string]string{"file1.txt": "hello"},
			files2: map[string]string{"file1.txt": "different content"},
			want:   false,
		},
		{
			name:   "missing file",
			files1: map[string]string{"file1.txt": "hello", "file2.txt": "world"},
			files2: map[string]string{"file1.txt": "hello"},
			want:   false,
		},
		{
			name:   "extra file",
			files1: map[string]string{"file1.txt": "hello"},
			files2: map[string]string{"file1.txt": "hello", "file2.txt": "world"},
			want:   false,
		},
		{
			name:   "same content in a different directory",
			files1: map[string]string{"a/file.txt": "hello"},
			files2: map[string]string{"b/file.txt": "hello"},
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir1 := createTempDirWithFiles(t, tt.files1)
			dir2 := createTempDirWithFiles(t, tt.files2)
			got, err := CompareDirectories(dir1, dir2)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CompareDirectories() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCopyDirectory(t *testing.T) {
	src := createTempDirWithFiles(t, map[string]string{
		"bin/app.exe":      "binary",
		"config/app.ini":   "[main]",
		"Data/tenant.db":   "rows",
		"deep/a/b/c/d.txt": "deep",
	})
	if err := os.MkdirAll(filepath.Join(src, "empty"), 0755); err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(filepath.Join(src, "bin/app.exe"), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink("app.exe", filepath.Join(src, "bin/app")); err != nil {
			t.Fatal(err)
		}
	}
	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyDirectory(src, dst); err != nil {
		t.Fatalf("CopyDirectory() error = %v", err)
	}
	equal, err := CompareDirectories(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !equal {
		t.Error("expected copy to be identical to the source")
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dst, "bin/app.exe"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0755 {
			t.Errorf("expected mode 0755, got %v", info.Mode().Perm())
		}
		link, err := os.Readlink(filepath.Join(dst, "bin/app"))
		if err != nil {
			t.Fatalf("expected symlink to be recreated: %v", err)
		}
		if link != "app.exe" {
			t.Errorf("expected link target app.exe, got %q", link)
		}
	}
	// the copy must be independent of the source
	if err := os.WriteFile(filepath.Join(src, "config/app.ini"), []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "config/app.ini"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[main]" {
		t.Errorf("copy changed together with the source: %q", string(data))
	}
}

func TestCopyDirectoryMissingSource(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyDirectory(filepath.Join(t.TempDir(), "missing"), dst); err == nil {
		t.Fatal("expected an error for a missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("expected destination to not be created, got %v", err)
	}
}

func TestSafeWriteFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "dir", "version.txt")
	for _, content := range []string{"1.0.0", "2.0.0"} {
		if err := SafeWriteFile(target, []byte(content), 0644); err != nil {
			t.Fatalf("SafeWriteFile() error = %v", err)
		}
		data, err := os.ReadFile(target)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != content {
			t.Errorf("expected %q, got %q", content, string(data))
		}
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected temporary files to be gone, found %d entries", len(entries))
	}
}

func TestSafeReadYAML(t *testing.T) {
	type cfg struct {
		Name string `yaml:"name"`
	}
	tests := []struct {
		name          string
		content       string
		wantAvailable bool
		wantErr       bool
		want          string
	}{
		{name: "valid", content: "name: foo\n", wantAvailable: true, want: "foo"},
		{name: "empty", content: "  \n", wantAvailable: false},
		{name: "unknown key", content: "name: foo\nother: bar\n", wantAvailable: true, wantErr: true, want: "foo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(p, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			var c cfg
			available, err := SafeReadYAML(p, &c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafeReadYAML() error = %v, wantErr %v", err, tt.wantErr)
			}
			if available != tt.wantAvailable {
				t.Errorf("SafeReadYAML() available = %v, want %v", available, tt.wantAvailable)
			}
			if !tt.wantErr && c.Name != tt.want {
				t.Errorf("SafeReadYAML() name = %q, want %q", c.Name, tt.want)
			}
		})
	}
	if _, err := SafeReadYAML(filepath.Join(t.TempDir(), "missing.yaml"), &struct{}{}); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestExistsAndIsDirectory(t *testing.T) {
	dir := createTempDirWithFiles(t, map[string]string{"file.txt": "x"})
	tests := []struct {
		name       string
		path       string
		wantExists bool
		wantIsDir  bool
	}{
		{name: "directory", path: dir, wantExists: true, wantIsDir: true},
		{name: "file", path: filepath.Join(dir, "file.txt"), wantExists: true, wantIsDir: false},
		{name: "missing", path: filepath.Join(dir, "missing"), wantExists: false, wantIsDir: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, isDir, err := ExistsAndIsDirectory(tt.path)
			if err != nil {
				t.Fatal(err)
			}
			if exists != tt.wantExists || isDir != tt.wantIsDir {
				t.Errorf("ExistsAndIsDirectory() = (%v, %v), want (%v, %v)", exists, isDir, tt.wantExists, tt.wantIsDir)
			}
		})
	}
}

func TestCopyDirectoryReadOnlyDirectories(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory permissions are not enforced on windows")
	}
	src := createTempDirWithFiles(t, map[string]string{
		"lib/plugins/core.dll": "core",
		"lib/readme.txt":       "docs",
	})
	for _, dir := range []string{"lib/plugins", "lib"} {
		if err := os.Chmod(filepath.Join(src, dir), 0555); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		_ = os.Chmod(filepath.Join(src, "lib"), 0755)
		_ = os.Chmod(filepath.Join(src, "lib/plugins"), 0755)
	})

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyDirectory(src, dst); err != nil {
		t.Fatalf("CopyDirectory() error = %v", err)
	}
	for _, dir := range []string{"lib", "lib/plugins"} {
		info, err := os.Stat(filepath.Join(dst, dir))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0555 {
			t.Errorf("%s: expected mode 0555, got %v", dir, info.Mode().Perm())
		}
	}
	data, err := os.ReadFile(filepath.Join(dst, "lib/plugins/core.dll"))
	if err != nil || string(data) != "core" {
		t.Errorf("core.dll = %q, %v", string(data), err)
	}

	// a second copy replaces the read-only tree
	next := filepath.Join(t.TempDir(), "next")
	if err := CopyDirectory(src, next); err != nil {
		t.Fatal(err)
	}
	if err := ReplaceDirectory(next, dst); err != nil {
		t.Fatalf("ReplaceDirectory() error = %v", err)
	}
	if err := RemoveDirectory(dst); err != nil {
		t.Fatalf("RemoveDirectory() error = %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("expected %q to be removed, got %v", dst, err)
	}
}
