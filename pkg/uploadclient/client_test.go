package uploadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sir_venger/chunk_lite/pkg/uploadproto"
)

type receivedChunk struct {
	uploadID string
	total    int
	data     []byte
}

// fakeServer запоминает присланные части и отвечает как сервис загрузок.
type fakeServer struct {
	mu     sync.Mutex
	chunks map[int]receivedChunk
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	idx, _ := strconv.Atoi(r.URL.Query().Get(uploadproto.QueryChunkIndex))
	total, _ := strconv.Atoi(r.FormValue(uploadproto.FormTotalChunks))
	file, _, err := r.FormFile(uploadproto.FormFile)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(uploadproto.ErrorResponse{Message: uploadproto.MsgMissingParams})
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	f.mu.Lock()
	f.chunks[idx] = receivedChunk{uploadID: r.URL.Query().Get(uploadproto.QueryUploadID), total: total, data: data}
	complete := len(f.chunks) == total
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(uploadproto.ChunkResponse{Success: true, ChunkIndex: idx, IsComplete: complete})
}

func (f *fakeServer) chunk(i int) (receivedChunk, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.chunks[i]
	return ch, ok
}

func TestUploadFile_SplitsIntoChunks(t *testing.T) {
	fake := &fakeServer{chunks: map[int]receivedChunk{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	var progress bytes.Buffer
	c := New(srv.URL, WithHTTPClient(srv.Client()), WithProgress(&progress))

	payload := []byte("0123456789abcdefghij-")
	res, err := c.UploadFile(context.Background(), FileUpload{
		UploadID:  "fixed",
		FileName:  "x.txt",
		Reader:    bytes.NewReader(payload),
		Size:      int64(len(payload)),
		ChunkSize: 5,
		Parallel:  2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.UploadID != "fixed" || res.TotalChunks != 5 || !res.IsComplete {
		t.Fatalf("result = %+v", res)
	}

	var joined []byte
	for i := 0; i < 5; i++ {
		ch, ok := fake.chunk(i)
		if !ok {
			t.Fatalf("chunk %d not received", i)
		}
		if ch.uploadID != "fixed" || ch.total != 5 {
			t.Fatalf("chunk %d = %+v", i, ch)
		}
		joined = append(joined, ch.data...)
	}
	if !bytes.Equal(joined, payload) {
		t.Fatalf("joined = %q", joined)
	}

	out := progress.String()
	for _, want := range []string{"x.txt [", "100%", "5/5 chunks", "✓ combined"} {
		if !strings.Contains(out, want) {
			t.Fatalf("progress output %q lacks %q", out, want)
		}
	}
}

func TestUploadFile_GeneratesUploadID(t *testing.T) {
	fake := &fakeServer{chunks: map[int]receivedChunk{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	res, err := New(srv.URL).UploadFile(context.Background(), FileUpload{
		FileName: "x.txt",
		Reader:   strings.NewReader("abc"),
		Size:     3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.UploadID == "" || res.TotalChunks != 1 {
		t.Fatalf("result = %+v", res)
	}
	if ch, _ := fake.chunk(0); ch.uploadID != res.UploadID {
		t.Fatalf("server saw upload id %q, want %q", ch.uploadID, res.UploadID)
	}
}

func TestUploadFile_RejectsEmpty(t *testing.T) {
	_, err := New("http://unused").UploadFile(context.Background(), FileUpload{FileName: "x", Reader: strings.NewReader("")})
	if err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		wantMsg  string
		notFound bool
	}{
		{"json message", http.StatusNotFound, `{"success":false,"message":"Upload not found"}`, "Upload not found", true},
		{"plain text", http.StatusInternalServerError, "boom\n", "boom", false},
		{"bad request", http.StatusBadRequest, `{"success":false,"message":"Missing required parameters"}`, "Missing required parameters", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL).Status(context.Background(), "u1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.code || apiErr.Message != tt.wantMsg {
				t.Fatalf("apiErr = %+v", apiErr)
			}
			if IsNotFound(err) != tt.notFound {
				t.Fatalf("IsNotFound = %t", IsNotFound(err))
			}
		})
	}
}

func TestStatus_EscapesUploadID(t *testing.T) {
	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(uploadproto.StatusResponse{Success: true, UploadID: "a b"})
	}))
	defer srv.Close()

	st, err := New(srv.URL+"/").Status(context.Background(), "a b")
	if err != nil {
		t.Fatal(err)
	}
	if gotPath := <-paths; gotPath != "/api/upload-status/a%20b" || st.UploadID != "a b" {
		t.Fatalf("path = %q, status = %+v", gotPath, st)
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{5 << 20, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.in); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUploadProgress(t *testing.T) {
	var nilProgress *uploadProgress
	nilProgress.Start()
	nilProgress.ChunkDone()
	nilProgress.Finish(true)
	if n, err := nilProgress.Write([]byte("abc")); n != 3 || err != nil {
		t.Fatalf("nil Write() = %d, %v", n, err)
	}
	if newUploadProgress(nil, "a", 1, 1) != nil {
		t.Fatal("progress without output must be nil")
	}

	var buf bytes.Buffer
	p := newUploadProgress(&buf, "a.bin", 10, 2)
	p.Start()
	_, _ = p.Write(make([]byte, 5))
	p.ChunkDone()
	p.Fail(errors.New("chunk 1: boom"))
	p.ChunkDone() // после завершения строка не перерисовывается

	lines := strings.Split(buf.String(), "\r")
	last := strings.TrimRight(lines[len(lines)-1], " \n")
	if last != "a.bin [================                ]  50% 5 B/10 B 1/2 chunks ✗ chunk 1: boom" {
		t.Fatalf("final line = %q", last)
	}
}
