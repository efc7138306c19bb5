package grpcclient

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/resilience"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
	pb "github.com/GriffinCanCode/lingualens/platform/pkg/pb"
)

type fakeInference struct {
	mu        sync.Mutex
	failures  int // leading calls that fail with failCode
	failCode  codes.Code
	calls     int
	lastImage []byte
	lastTrace string
}

func (f *fakeInference) fail(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if tc, ok := trace.FromContext(ctx); ok {
		f.lastTrace = tc.TraceID
	}
	if f.calls <= f.failures {
		return status.Error(f.failCode, "provider rejected request")
	}
	return nil
}

func (f *fakeInference) ExtractText(ctx context.Context, req *pb.ExtractTextRequest) (*pb.ExtractTextResponse, error) {
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastImage = req.ImageData
	f.mu.Unlock()
	return &pb.ExtractTextResponse{ExtractedText: "Hello (" + req.Format + ")"}, nil
}

func (f *fakeInference) Translate(ctx context.Context, req *pb.TranslateRequest) (*pb.TranslateResponse, error) {
	if err := f.fail(ctx); err != nil {
		return nil, err
	}
	return &pb.TranslateResponse{TranslatedText: req.TargetLanguage + ":" + req.Text, DetectedSourceLanguage: "en"}, nil
}

func (f *fakeInference) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 1
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 2 * time.Millisecond
	cfg.Breaker.Threshold = 2
	cfg.Breaker.ResetTimeout = time.Hour
	return cfg
}

func newTestClient(t *testing.T, srv *fakeInference, cfg Config) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	pb.RegisterInferenceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := NewWithConfig("passthrough:///bufnet", cfg,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestExtractText(t *testing.T) {
	srv := &fakeInference{}
	c := newTestClient(t, srv, testConfig())

	text, err := c.ExtractText(context.Background(), []byte{0xFF, 0xD8}, "jpeg")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Hello (jpeg)" {
		t.Errorf("text = %q", text)
	}
	if len(srv.lastImage) != 2 || srv.lastImage[0] != 0xFF {
		t.Errorf("server image = %v", srv.lastImage)
	}
}

func TestTranslatePropagatesTrace(t *testing.T) {
	srv := &fakeInference{}
	c := newTestClient(t, srv, testConfig())

	tc := trace.New()
	ctx := trace.WithContext(context.Background(), tc)
	resp, err := c.Translate(ctx, "Hello", "vi")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if resp.TranslatedText != "vi:Hello" || resp.DetectedSourceLanguage != "en" {
		t.Errorf("resp = %+v", resp)
	}
	if srv.lastTrace != tc.TraceID {
		t.Errorf("server trace = %q, want %q", srv.lastTrace, tc.TraceID)
	}
}

func TestTransientFailureRetried(t *testing.T) {
	srv := &fakeInference{failures: 1, failCode: codes.Unavailable}
	c := newTestClient(t, srv, testConfig())

	if _, err := c.Translate(context.Background(), "Hello", "vi"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if srv.Calls() != 2 {
		t.Errorf("calls = %d, want 2", srv.Calls())
	}
}

func TestRejectedRequestNotRetried(t *testing.T) {
	srv := &fakeInference{failures: 5, failCode: codes.InvalidArgument}
	c := newTestClient(t, srv, testConfig())

	_, err := c.Translate(context.Background(), "Hello", "xx")
	if !apperrors.IsCode(err, apperrors.CodeTranslationFailure) {
		t.Fatalf("err = %v, want TranslationFailure", err)
	}
	appErr, _ := apperrors.As(err)
	if appErr.Message != "provider rejected request" || appErr.Metadata["provider"] != TranslateProvider {
		t.Errorf("error = %+v", appErr)
	}
	if srv.Calls() != 1 {
		t.Errorf("calls = %d, want 1", srv.Calls())
	}
}

func TestBreakerOpensOnRepeatedUnavailable(t *testing.T) {
	srv := &fakeInference{failures: 100, failCode: codes.Unavailable}
	c := newTestClient(t, srv, testConfig())
	ctx := context.Background()

	if _, err := c.ExtractText(ctx, []byte{1}, "jpeg"); !apperrors.IsCode(err, apperrors.CodeExtractionFailure) {
		t.Fatalf("err = %v, want ExtractionFailure", err)
	}
	if c.ocr.State() != resilience.Open {
		t.Fatalf("breaker = %v, want Open", c.ocr.State())
	}

	before := srv.Calls()
	_, err := c.ExtractText(ctx, []byte{1}, "jpeg")
	if !apperrors.IsCode(err, apperrors.CodeExtractionFailure) {
		t.Errorf("err = %v, want ExtractionFailure", err)
	}
	if srv.Calls() != before {
		t.Error("open breaker should not reach the server")
	}

	// The translate breaker is independent.
	if c.translate.State() != resilience.Closed {
		t.Errorf("translate breaker = %v, want Closed", c.translate.State())
	}
}

func TestReady(t *testing.T) {
	c := newTestClient(t, &fakeInference{}, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), HealthCheckTimeout)
	defer cancel()
	if err := c.Ready(ctx); err != nil {
		t.Errorf("Ready: %v", err)
	}
}
