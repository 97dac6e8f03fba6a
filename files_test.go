package peermail

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/vaultsandbox/peermail/internal/record"
)

func TestWriteFile_ReadBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	net := newNetwork()
	alice := newTestAgent(t, net, "alice", WithMaxChunkSize(4), WithMaxFileSize(64))

	tests := []struct {
		name       string
		content    []byte
		wantChunks int
	}{
		{"single chunk", []byte("abc"), 1},
		{"exact multiple", []byte("abcdefgh"), 2},
		{"remainder", []byte("hello world!!"), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := alice.WriteFile(ctx, tt.name+".bin", "application/octet-stream", tt.content)
			if err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			m, err := alice.GetManifest(ctx, id)
			if err != nil {
				t.Fatalf("GetManifest() error = %v", err)
			}
			if len(m.Chunks) != tt.wantChunks {
				t.Errorf("chunks = %d, want %d", len(m.Chunks), tt.wantChunks)
			}
			if m.Size != int64(len(tt.content)) {
				t.Errorf("Size = %d, want %d", m.Size, len(tt.content))
			}
			got, err := alice.ReadFile(ctx, id)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if !bytes.Equal(got, tt.content) {
				t.Errorf("ReadFile() = %q, want %q", got, tt.content)
			}
			found, err := alice.FindManifest(ctx, m.DataHash)
			if err != nil {
				t.Fatalf("FindManifest() error = %v", err)
			}
			if found.ID != id {
				t.Errorf("FindManifest() id = %s, want %s", found.ID.Short(), id.Short())
			}
		})
	}

	all, err := alice.AllManifests(ctx)
	if err != nil {
		t.Fatalf("AllManifests() error = %v", err)
	}
	if len(all) != len(tests) {
		t.Errorf("AllManifests() = %d, want %d", len(all), len(tests))
	}
}

func TestWriteFile_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	net := newNetwork()
	alice := newTestAgent(t, net, "alice", WithMaxChunkSize(3))

	first, err := alice.WriteFile(ctx, "a.txt", "text/plain", []byte("same content"))
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	second, err := alice.WriteFile(ctx, "a.txt", "text/plain", []byte("same content"))
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if first != second {
		t.Errorf("ids differ: %s vs %s", first.Short(), second.Short())
	}
	if n := len(count[record.FileChunk](t, alice, record.KindFileChunk)); n != 4 {
		t.Errorf("chunks stored = %d, want 4", n)
	}
}

func TestWriteFile_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	net := newNetwork()
	alice := newTestAgent(t, net, "alice", WithMaxFileSize(8))

	if _, err := alice.WriteFile(ctx, "e", "", nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("WriteFile(empty) error = %v, want ErrEmptyFile", err)
	}
	if _, err := alice.WriteFile(ctx, "big", "", []byte("123456789")); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("WriteFile(big) error = %v, want ErrFileTooLarge", err)
	}
	var verr *ValidationError
	if _, err := alice.WriteFile(ctx, "", "", []byte("x")); !errors.As(err, &verr) {
		t.Errorf("WriteFile(no name) error = %v, want ValidationError", err)
	}
	if _, err := alice.GetManifest(ctx, RecordID{5}); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("GetManifest(unknown) error = %v, want ErrAttachmentNotFound", err)
	}
	if _, err := alice.FindManifest(ctx, "deadbeef"); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("FindManifest(unknown) error = %v, want ErrAttachmentNotFound", err)
	}
}

func TestReadFile_Corrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	net := newNetwork()
	alice := newTestAgent(t, net, "alice")

	chunk, err := alice.log.Append(ctx, record.FileChunk{DataHash: dataHash([]byte("real")), Index: 0, Data: []byte("fake")})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	id, err := alice.log.Append(ctx, FileManifest{
		DataHash: dataHash([]byte("real")),
		Filename: "x",
		Size:     4,
		Chunks:   []RecordID{chunk},
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := alice.ReadFile(ctx, id); !errors.Is(err, ErrFileCorrupt) {
		t.Errorf("ReadFile() error = %v, want ErrFileCorrupt", err)
	}

	missing, err := alice.log.Append(ctx, FileManifest{DataHash: "h", Filename: "y", Size: 1, Chunks: []RecordID{{9}}})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := alice.ReadFile(ctx, missing); !errors.Is(err, ErrFileCorrupt) {
		t.Errorf("ReadFile(missing chunk) error = %v, want ErrFileCorrupt", err)
	}
}
