package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestLocalStorage_UploadDownload(t *testing.T) {
	baseDir := t.TempDir()
	store, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "test.txt")
	content := []byte("hello world")
	if err := os.WriteFile(srcPath, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ctx := context.Background()

	objectPath := "raw/sub-1/test.txt"
	if err := store.Upload(ctx, srcPath, objectPath); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	exists, err := store.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	dstPath := filepath.Join(srcDir, "downloaded.txt")
	if err := store.Download(ctx, objectPath, dstPath); err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	downloaded, err := os.ReadFile(dstPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(downloaded) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", downloaded, content)
	}

	if err := store.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = store.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}
}

func TestLocalStorage_DownloadNotFound(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	dstPath := filepath.Join(t.TempDir(), "downloaded.txt")

	err = store.Download(ctx, "nonexistent/object.txt", dstPath)
	if err != ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "test.txt")
	if err := os.WriteFile(srcPath, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ctx := context.Background()

	for _, objectPath := range []string{
		"raw/sub-1/a.json",
		"raw/sub-1/b.json",
		"raw/sub-2/c.csv",
		"other/d.txt",
	} {
		if err := store.Upload(ctx, srcPath, objectPath); err != nil {
			t.Fatalf("Upload %s failed: %v", objectPath, err)
		}
	}

	objects, err := store.ListObjects(ctx, "raw/sub-1/")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	sort.Strings(objects)

	want := []string{"raw/sub-1/a.json", "raw/sub-1/b.json"}
	if len(objects) != len(want) {
		t.Fatalf("expected %d objects, got %d: %v", len(want), len(objects), objects)
	}
	for i, obj := range objects {
		if obj != want[i] {
			t.Errorf("object %d: got %q, want %q", i, obj, want[i])
		}
	}
}

func TestLocalStorage_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	if err := store.Delete(context.Background(), "never/uploaded.txt"); err != nil {
		t.Errorf("Delete of missing object should be a no-op, got %v", err)
	}
}
