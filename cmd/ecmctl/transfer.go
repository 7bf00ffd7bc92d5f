package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// mimeFor guesses the content type from the file extension.
func mimeFor(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

type uploadArgs struct {
	documentID  string
	storageType string
	fileName    string
	summary     string
	major       bool
	body        []byte
}

// upload requests a direct upload target, sends the bytes there and confirms
// the new document version.
func upload(ctx context.Context, cc grpc.ClientConnInterface, hc *http.Client, a uploadArgs) (*structpb.Struct, error) {
	mt := mimeFor(a.fileName)
	ticket, err := invoke(ctx, cc, "GenerateUploadURL", &structpb.Struct{Fields: map[string]*structpb.Value{
		"documentId":  structpb.NewStringValue(a.documentID),
		"storageType": structpb.NewStringValue(a.storageType),
		"fileName":    structpb.NewStringValue(a.fileName),
		"mimeType":    structpb.NewStringValue(mt),
		"size":        structpb.NewNumberValue(float64(len(a.body))),
	}})
	if err != nil {
		return nil, fmt.Errorf("upload url: %w", err)
	}
	tf := ticket.GetFields()

	method := tf["method"].GetStringValue()
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, tf["url"].GetStringValue(), bytes.NewReader(a.body))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(a.body))
	for k, v := range tf["headers"].GetStructValue().GetFields() {
		req.Header.Set(k, v.GetStringValue())
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", mt)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("put content: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("put content: %s", resp.Status)
	}

	return invoke(ctx, cc, "ConfirmUpload", &structpb.Struct{Fields: map[string]*structpb.Value{
		"documentId":    structpb.NewStringValue(a.documentID),
		"storageType":   tf["storageType"],
		"path":          tf["path"],
		"fileName":      structpb.NewStringValue(a.fileName),
		"changeSummary": structpb.NewStringValue(a.summary),
		"major":         structpb.NewBoolValue(a.major),
	}})
}

// download fetches the content of a version into w.
func download(ctx context.Context, cc grpc.ClientConnInterface, hc *http.Client, versionID string, w io.Writer) (int64, error) {
	link, err := invoke(ctx, cc, "GenerateDownloadURL", &structpb.Struct{Fields: map[string]*structpb.Value{
		"versionId": structpb.NewStringValue(versionID),
	}})
	if err != nil {
		return 0, fmt.Errorf("download url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.GetFields()["url"].GetStringValue(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get content: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get content: %s", resp.Status)
	}
	return io.Copy(w, resp.Body)
}

func cmdUpload(ctx context.Context, cc grpc.ClientConnInterface, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	doc := fs.String("doc", "", "document id (uuid)")
	file := fs.String("file", "", "file to upload ('-'=stdin)")
	name := fs.String("name", "", "file name (default: base of -file)")
	storage := fs.String("storage", "", "storage type (default: server default)")
	summary := fs.String("summary", "", "change summary")
	major := fs.Bool("major", false, "major version")
	_ = fs.Parse(args)
	if *doc == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "need -doc and -file")
		os.Exit(1)
	}

	body, err := readAll(*file)
	if err != nil {
		fail(err)
	}
	fileName := *name
	if fileName == "" {
		fileName = filepath.Base(*file)
	}
	v, err := upload(ctx, cc, http.DefaultClient, uploadArgs{
		documentID: *doc, storageType: *storage, fileName: fileName,
		summary: *summary, major: *major, body: body,
	})
	if err != nil {
		fail(err)
	}
	printStruct(os.Stdout, v)
}

func cmdDownload(ctx context.Context, cc grpc.ClientConnInterface, args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	ver := fs.String("version", "", "version id (uuid)")
	out := fs.String("out", "", "output file ('-'=stdout)")
	_ = fs.Parse(args)
	if *ver == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "need -version and -out")
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.OpenFile(*out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			fail(err)
		}
		defer f.Close()
		w = f
	}
	n, err := download(ctx, cc, http.DefaultClient, *ver, w)
	if err != nil {
		fail(err)
	}
	if *out != "-" {
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", n, *out)
	}
}
