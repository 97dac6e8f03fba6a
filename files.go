package peermail

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/vaultsandbox/peermail/internal/record"
	"github.com/vaultsandbox/peermail/internal/store"
)

// ManifestItem pairs a stored FileManifest with its id.
type ManifestItem struct {
	ID       RecordID
	Manifest FileManifest
}

// WriteFile stores content as chunks followed by a manifest and returns the
// manifest id, which can be used as a mail attachment. Writing the same
// content twice returns the same id.
func (a *Agent) WriteFile(ctx context.Context, filename, filetype string, content []byte) (RecordID, error) {
	if err := a.checkClosed(); err != nil {
		return RecordID{}, err
	}
	if len(content) == 0 {
		return RecordID{}, ErrEmptyFile
	}
	if int64(len(content)) > a.cfg.maxFileSize {
		return RecordID{}, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(content), a.cfg.maxFileSize)
	}
	if filename == "" {
		return RecordID{}, &ValidationError{Errors: []string{"filename is required"}}
	}

	hash := dataHash(content)
	manifest := FileManifest{
		DataHash: hash,
		Filename: filename,
		Filetype: filetype,
		Size:     int64(len(content)),
	}
	for i, off := 0, 0; off < len(content); i, off = i+1, off+a.cfg.maxChunkSize {
		end := min(off+a.cfg.maxChunkSize, len(content))
		id, err := a.log.Append(ctx, record.FileChunk{
			DataHash: hash,
			Index:    i,
			Data:     content[off:end],
		})
		if err != nil {
			return RecordID{}, storageErr("append file chunk", err)
		}
		manifest.Chunks = append(manifest.Chunks, id)
	}

	id, err := a.log.Append(ctx, manifest)
	if err != nil {
		return RecordID{}, storageErr("append file manifest", err)
	}
	a.logger.Debug().
		Str("manifest", id.Short()).
		Str("filename", filename).
		Int("chunks", len(manifest.Chunks)).
		Msg("file stored")
	return id, nil
}

// GetManifest returns the manifest with the given id.
func (a *Agent) GetManifest(ctx context.Context, id RecordID) (FileManifest, error) {
	m, err := store.GetAs[record.FileManifest](ctx, a.log, id)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrWrongKind) {
		return FileManifest{}, fmt.Errorf("%w: %s", ErrAttachmentNotFound, id.Short())
	}
	if err != nil {
		return FileManifest{}, storageErr("get manifest", err)
	}
	return m, nil
}

// FindManifest returns the first manifest whose content hashes to dataHash.
func (a *Agent) FindManifest(ctx context.Context, dataHash string) (ManifestItem, error) {
	all, err := a.AllManifests(ctx)
	if err != nil {
		return ManifestItem{}, err
	}
	for _, m := range all {
		if m.Manifest.DataHash == dataHash {
			return m, nil
		}
	}
	return ManifestItem{}, fmt.Errorf("%w: data hash %s", ErrAttachmentNotFound, dataHash)
}

// AllManifests returns every stored manifest in write order.
func (a *Agent) AllManifests(ctx context.Context) ([]ManifestItem, error) {
	manifests, err := store.QueryAs[record.FileManifest](ctx, a.log, record.KindFileManifest)
	if err != nil {
		return nil, storageErr("query manifests", err)
	}
	out := make([]ManifestItem, 0, len(manifests))
	for _, m := range manifests {
		out = append(out, ManifestItem{ID: m.ID, Manifest: m.Value})
	}
	return out, nil
}

// ReadFile reassembles the content of a manifest and checks its hash.
func (a *Agent) ReadFile(ctx context.Context, manifestID RecordID) ([]byte, error) {
	m, err := a.GetManifest(ctx, manifestID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(int(m.Size))
	for i, cid := range m.Chunks {
		chunk, err := store.GetAs[record.FileChunk](ctx, a.log, cid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrWrongKind) {
				return nil, fmt.Errorf("%w: chunk %d missing", ErrFileCorrupt, i)
			}
			return nil, storageErr("get file chunk", err)
		}
		if chunk.Index != i || chunk.DataHash != m.DataHash {
			return nil, fmt.Errorf("%w: chunk %d out of place", ErrFileCorrupt, i)
		}
		buf.Write(chunk.Data)
	}

	content := buf.Bytes()
	if int64(len(content)) != m.Size || dataHash(content) != m.DataHash {
		return nil, ErrFileCorrupt
	}
	return content, nil
}

func dataHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
