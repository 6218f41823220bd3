package integration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sir_venger/chunk_lite/internal/app/uploadhttp"
	"github.com/sir_venger/chunk_lite/internal/assembler"
	"github.com/sir_venger/chunk_lite/internal/chunkstore"
	"github.com/sir_venger/chunk_lite/internal/metrics"
	"github.com/sir_venger/chunk_lite/internal/retention"
	"github.com/sir_venger/chunk_lite/internal/usecase/uploadsvc"
	"github.com/sir_venger/chunk_lite/pkg/uploadclient"
)

type env struct {
	root    string
	client  uploadclient.Client
	sweeper *retention.Sweeper
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	root := t.TempDir()

	store, err := chunkstore.New(root, log)
	if err != nil {
		t.Fatal(err)
	}
	asm := assembler.New(store, log)
	m := metrics.New()
	uploads := uploadsvc.New(uploadsvc.Deps{Store: store, Assembler: asm, Logger: log, Metrics: m})
	sweeper := retention.New(store.ChunksDir(), time.Hour, asm, uploads, log, m)

	srv := httptest.NewServer(uploadhttp.New(uploadhttp.Deps{
		Uploads:       uploads,
		Sweeper:       sweeper,
		Metrics:       m,
		Logger:        log,
		DataDir:       root,
		MaxChunkBytes: 1 << 20,
	}))
	t.Cleanup(srv.Close)

	return &env{root: root, client: uploadclient.New(srv.URL), sweeper: sweeper}
}

func sha(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func Test_UploadFile_Integrity(t *testing.T) {
	e := newEnv(t)

	payload := bytes.Repeat([]byte{0xA1, 0xB2, 0xC3, 0xD4, 0xE5}, 200_003) // ~1MB, не кратно размеру части
	res, err := e.client.UploadFile(context.Background(), uploadclient.FileUpload{
		FileName:  "blob.bin",
		Reader:    bytes.NewReader(payload),
		Size:      int64(len(payload)),
		ChunkSize: 64 << 10,
		Parallel:  6,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsComplete {
		t.Fatalf("upload result = %+v, want complete", res)
	}

	got, err := os.ReadFile(filepath.Join(e.root, "blob.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if sha(got) != sha(payload) {
		t.Fatalf("sha mismatch: got %d bytes, want %d", len(got), len(payload))
	}

	st, err := e.client.Status(context.Background(), res.UploadID)
	if err != nil {
		t.Fatal(err)
	}
	if !st.IsComplete || !st.Combined || st.UploadedChunks != res.TotalChunks || len(st.MissingChunks) != 0 {
		t.Fatalf("status = %+v", st)
	}
}

func Test_OutOfOrderChunks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	send := func(idx int, b byte) bool {
		t.Helper()
		res, err := e.client.UploadChunk(ctx, uploadclient.ChunkRequest{
			UploadID: "u1", ChunkIndex: idx, FileName: "a.bin", TotalChunks: 2,
			Data: bytes.NewReader([]byte{b}),
		})
		if err != nil {
			t.Fatal(err)
		}
		return res.IsComplete
	}

	if send(1, 0x02) {
		t.Fatal("complete after first chunk")
	}
	if !send(0, 0x01) {
		t.Fatal("not complete after last chunk")
	}

	got, err := os.ReadFile(filepath.Join(e.root, "a.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Fatalf("a.bin = %v, want [1 2]", got)
	}
}

func Test_ConcurrentUploadsOfDifferentFiles(t *testing.T) {
	e := newEnv(t)

	const files = 4
	payloads := make([][]byte, files)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 100_000+i*777)
	}

	var wg sync.WaitGroup
	errs := make(chan error, files)
	for i := range payloads {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.client.UploadFile(context.Background(), uploadclient.FileUpload{
				FileName:  "f" + string(rune('0'+i)) + ".bin",
				Reader:    bytes.NewReader(payloads[i]),
				Size:      int64(len(payloads[i])),
				ChunkSize: 10_000,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	for i, p := range payloads {
		got, err := os.ReadFile(filepath.Join(e.root, "f"+string(rune('0'+i))+".bin"))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("file %d differs", i)
		}
	}
}

func Test_StatusUnknownUpload(t *testing.T) {
	e := newEnv(t)

	_, err := e.client.Status(context.Background(), "nope")
	if !uploadclient.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, statErr := os.Stat(filepath.Join(e.root, "chunks", "nope")); !os.IsNotExist(statErr) {
		t.Fatal("status query created upload directory")
	}
}

func Test_BadRequestMessage(t *testing.T) {
	e := newEnv(t)

	_, err := e.client.UploadChunk(context.Background(), uploadclient.ChunkRequest{
		UploadID: "u1", ChunkIndex: 3, FileName: "a.bin", TotalChunks: 2,
		Data: strings.NewReader("x"),
	})
	var apiErr *uploadclient.APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Fatalf("err = %v, want 400", err)
	}
}
