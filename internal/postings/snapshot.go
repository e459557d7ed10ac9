package postings

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	snapshotMagic   uint32 = 0xA1AC0DE5
	snapshotVersion uint32 = 1
)

// SnapshotHeader describes a persisted posting snapshot.
type SnapshotHeader struct {
	Magic      uint32
	Version    uint32
	EntryCount uint32
	CreatedAt  int64
}

// WriteSnapshot persists a memory index to dir/name atomically: the file is
// written to a temp sibling and renamed into place so readers never observe
// a partial snapshot.
func WriteSnapshot(ctx context.Context, ix *MemoryIndex, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	entries := ix.Snapshot()
	w := bufio.NewWriter(tmp)

	header := SnapshotHeader{
		Magic:      snapshotMagic,
		Version:    snapshotVersion,
		EntryCount: uint32(len(entries)),
		CreatedAt:  time.Now().Unix(),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot header: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			tmp.Close()
			return err
		}
		payload, err := json.Marshal(e)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("encoding posting entry: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(payload))); err != nil {
			tmp.Close()
			return fmt.Errorf("writing entry length: %w", err)
		}
		if _, err := w.Write(payload); err != nil {
			tmp.Close()
			return fmt.Errorf("writing entry payload: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("publishing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot file written by WriteSnapshot into ix.
// Entries are merged, so loading on top of live data is safe.
func ReadSnapshot(ctx context.Context, ix *MemoryIndex, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header SnapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("reading snapshot header: %w", err)
	}
	if header.Magic != snapshotMagic {
		return fmt.Errorf("not a posting snapshot: magic %#x", header.Magic)
	}
	if header.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", header.Version)
	}

	entries := make([]Entry, 0, header.EntryCount)
	for i := uint32(0); i < header.EntryCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return fmt.Errorf("reading entry %d length: %w", i, err)
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("reading entry %d payload: %w", i, err)
		}
		var e Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return fmt.Errorf("decoding entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	ix.Restore(entries)
	return nil
}
