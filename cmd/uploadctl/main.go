package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sir_venger/chunk_lite/pkg/uploadclient"
)

func main() {
	addr := flag.String("addr", "http://localhost:3000", "upload service base URL")
	chunkSize := flag.Int64("chunk-size", uploadclient.DefaultChunkSize, "chunk size in bytes")
	parallel := flag.Int("parallel", uploadclient.DefaultParallel, "chunks in flight")
	uploadID := flag.String("upload-id", "", "upload id (generated when empty)")
	status := flag.String("status", "", "print status of the given upload id and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := uploadclient.New(*addr, uploadclient.WithProgress(os.Stdout))

	if *status != "" {
		st, err := cli.Status(ctx, *status)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %s %d/%d chunks, complete=%t, state=%s\n",
			st.UploadID, st.FileName, st.UploadedChunks, st.TotalChunks, st.IsComplete, st.State)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: uploadctl [flags] <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	path := flag.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Fatal(err)
	}

	res, err := cli.UploadFile(ctx, uploadclient.FileUpload{
		UploadID:  *uploadID,
		FileName:  filepath.Base(path),
		Reader:    f,
		Size:      info.Size(),
		ChunkSize: *chunkSize,
		Parallel:  *parallel,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("upload %s: %d chunks, complete=%t\n", res.UploadID, res.TotalChunks, res.IsComplete)
}
