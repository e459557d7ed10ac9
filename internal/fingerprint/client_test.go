package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	apperrors "github.com/alakazam-audio/alakazam/pkg/errors"
	"github.com/alakazam-audio/alakazam/pkg/proto"
	"github.com/alakazam-audio/alakazam/pkg/rpc"
)

// startFingerprinter runs an in-process RPC stub that answers the three
// fingerprinter methods, reporting the given health status.
func startFingerprinter(t *testing.T, status string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	srv := rpc.NewServer()
	srv.Register(methodSongFingerprint, func(_ context.Context, raw json.RawMessage) (any, error) {
		var req proto.SongFingerprintRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		if len(req.Samples) == 0 {
			return nil, fmt.Errorf("no samples provided")
		}
		return &proto.SongFingerprintResponse{
			Hashes:     []int64{101, 202, 303},
			Duration:   float64(len(req.Samples)) / float64(req.SampleRate),
			SampleRate: req.SampleRate,
			HashCount:  3,
		}, nil
	})
	srv.Register(methodQueryFingerprint, func(_ context.Context, raw json.RawMessage) (any, error) {
		var req proto.QueryFingerprintRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, err
		}
		return &proto.QueryFingerprintResponse{
			Hashes:   []int64{7, 7, 9},
			Duration: 2.5,
		}, nil
	})
	srv.Register(methodHealthCheck, func(context.Context, json.RawMessage) (any, error) {
		return &proto.HealthCheckResponse{Status: status}, nil
	})

	go srv.Serve(addr)
	t.Cleanup(srv.Stop)
	return addr
}

// dialStub retries the dial until the stub's listener is up.
func dialStub(t *testing.T, addr string) *Client {
	t.Helper()
	var (
		c   *Client
		err error
	)
	for i := 0; i < 50; i++ {
		c, err = NewClient(addr, time.Second, nil)
		if err == nil {
			t.Cleanup(func() { c.Close() })
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dialing stub fingerprinter: %v", err)
	return nil
}

func TestGenerateSongFingerprint(t *testing.T) {
	addr := startFingerprinter(t, "SERVING")
	c := dialStub(t, addr)

	fp, err := c.GenerateSongFingerprint(context.Background(), make([]float32, 44100), 44100)
	if err != nil {
		t.Fatalf("GenerateSongFingerprint: %v", err)
	}
	if len(fp.Hashes) != 3 || fp.HashCount != 3 {
		t.Errorf("got %d hashes, hashCount %d, want 3/3", len(fp.Hashes), fp.HashCount)
	}
	if fp.SampleRate != 44100 {
		t.Errorf("sampleRate = %d, want 44100", fp.SampleRate)
	}
	if fp.Duration != 1.0 {
		t.Errorf("duration = %v, want 1.0", fp.Duration)
	}
}

func TestGenerateQueryFingerprintKeepsDuplicates(t *testing.T) {
	addr := startFingerprinter(t, "SERVING")
	c := dialStub(t, addr)

	fp, err := c.GenerateQueryFingerprint(context.Background(), make([]float32, 1024), 44100)
	if err != nil {
		t.Fatalf("GenerateQueryFingerprint: %v", err)
	}
	want := []int64{7, 7, 9}
	if len(fp.Hashes) != len(want) {
		t.Fatalf("got %d hashes, want %d", len(fp.Hashes), len(want))
	}
	for i, h := range want {
		if fp.Hashes[i] != h {
			t.Errorf("hashes[%d] = %d, want %d", i, fp.Hashes[i], h)
		}
	}
}

func TestHealthCheckServing(t *testing.T) {
	addr := startFingerprinter(t, "SERVING")
	c := dialStub(t, addr)

	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestHealthCheckNotServing(t *testing.T) {
	addr := startFingerprinter(t, "NOT_SERVING")
	c := dialStub(t, addr)

	err := c.HealthCheck(context.Background())
	if !errors.Is(err, apperrors.ErrFingerprinterUnavailable) {
		t.Errorf("got %v, want ErrFingerprinterUnavailable", err)
	}
}

func TestServerErrorSurfacesUnavailable(t *testing.T) {
	addr := startFingerprinter(t, "SERVING")
	c := dialStub(t, addr)

	_, err := c.GenerateSongFingerprint(context.Background(), nil, 44100)
	if !errors.Is(err, apperrors.ErrFingerprinterUnavailable) {
		t.Errorf("got %v, want ErrFingerprinterUnavailable", err)
	}
}

func TestDialFailure(t *testing.T) {
	_, err := NewClient("127.0.0.1:1", time.Second, nil)
	if !errors.Is(err, apperrors.ErrFingerprinterUnavailable) {
		t.Errorf("got %v, want ErrFingerprinterUnavailable", err)
	}
}
