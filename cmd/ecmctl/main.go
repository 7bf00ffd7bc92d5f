// Command ecmctl is a CLI client for the ECM core service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcinsecure "google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/and161185/ecm-core/internal/server/grpc"
	"github.com/and161185/ecm-core/internal/service"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	Subject     string    `json:"subject"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "ecmctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ecmctl")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok, sub string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, Subject: sub, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run `ecmctl token` first)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, insecure, plaintext bool) (credentials.TransportCredentials, error) {
	if plaintext {
		return grpcinsecure.NewCredentials(), nil
	}
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev flag
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

type dialOpts struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
}

func dial(o dialOpts, bearer string) (*grpc.ClientConn, error) {
	creds, err := loadTLS(o.caPath, o.insecure, o.plaintext)
	if err != nil {
		return nil, err
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !o.plaintext}))
	}
	return grpc.NewClient(o.addr, opts...)
}

// invoke calls a ContentService method with a Struct request.
func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, grpcserver.MethodName(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

// parseRequest reads a JSON object into a Struct; empty input is an empty request.
func parseRequest(raw []byte) (*structpb.Struct, error) {
	in := &structpb.Struct{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return in, nil
	}
	if err := protojson.Unmarshal(raw, in); err != nil {
		return nil, fmt.Errorf("request json: %w", err)
	}
	return in, nil
}

func printStruct(w io.Writer, s *structpb.Struct) {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	if err != nil {
		fmt.Fprintln(w, s.String())
		return
	}
	fmt.Fprintln(w, string(b))
}

func usage() {
	fmt.Fprintf(os.Stderr, `ecmctl CLI
Usage:
  ecmctl -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  token     -key <hs256 key> -sub <user> [-ttl 1h]      (saves token)
  call      <Method> [-data '{json}' | -file <path|->]
  upload    -doc <uuid> -file <path> [-storage TYPE] [-summary text] [-major]
  download  -version <uuid> -out <path>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	var o dialOpts
	flag.StringVar(&o.addr, "addr", "localhost:8443", "server addr")
	flag.StringVar(&o.caPath, "cacert", "", "CA cert (PEM)")
	flag.BoolVar(&o.insecure, "insecure", false, "skip cert verify (dev)")
	flag.BoolVar(&o.plaintext, "plaintext", false, "no TLS (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cmd {
	case "version":
		fmt.Printf("ecmctl %s (%s)\n", version, buildDate)

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		key := fs.String("key", os.Getenv("ECM_JWT_KEY"), "HS256 signing key")
		sub := fs.String("sub", "", "acting user")
		ttl := fs.Duration("ttl", time.Hour, "token lifetime")
		_ = fs.Parse(args)

		tok, exp, err := service.NewTokenService([]byte(*key), *ttl, nil).Issue(*sub)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tok, *sub, exp); err != nil {
			fail(err)
		}
		fmt.Printf("ok, expires %s\n", exp.UTC().Format(time.RFC3339))

	case "call":
		if len(args) < 1 {
			usage()
		}
		fs := flag.NewFlagSet("call", flag.ExitOnError)
		data := fs.String("data", "", "request JSON")
		file := fs.String("file", "", "request JSON file ('-'=stdin)")
		_ = fs.Parse(args[1:])

		raw := []byte(*data)
		if *file != "" {
			b, err := readAll(*file)
			if err != nil {
				fail(err)
			}
			raw = b
		}
		in, err := parseRequest(raw)
		if err != nil {
			fail(err)
		}

		cc := mustDial(o)
		defer cc.Close()
		out, err := invoke(ctx, cc, args[0], in)
		if err != nil {
			fail(err)
		}
		printStruct(os.Stdout, out)

	case "upload":
		cc := mustDial(o)
		defer cc.Close()
		cmdUpload(ctx, cc, args)

	case "download":
		cc := mustDial(o)
		defer cc.Close()
		cmdDownload(ctx, cc, args)

	default:
		usage()
	}
}

func mustDial(o dialOpts) *grpc.ClientConn {
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	cc, err := dial(o, token)
	if err != nil {
		fail(err)
	}
	return cc
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		reason := grpcserver.Reason(err)
		fmt.Fprintf(os.Stderr, "rpc error: code=%s reason=%s msg=%s\n", s.Code(), reason, s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
