// Package grpcclient provides a client for the inference gRPC server
package grpcclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/resilience"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
	pb "github.com/GriffinCanCode/lingualens/platform/pkg/pb"
)

// Config holds client settings.
type Config struct {
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	Retry            resilience.RetryConfig
	Breaker          resilience.Config // Name is set per provider
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		KeepaliveTime:    DefaultKeepaliveTime,
		KeepaliveTimeout: DefaultKeepaliveTimeout,
		Retry:            resilience.ProviderRetryConfig(),
		Breaker:          resilience.ProviderConfig(""),
	}
}

// Client calls the extraction and translation collaborators. Calls carry no
// deadline of their own; the caller's context decides.
type Client struct {
	conn      *grpc.ClientConn
	retry     resilience.RetryConfig
	ocr       *resilience.Breaker
	translate *resilience.Breaker
}

// New creates a client with DefaultConfig. Extra dial options are appended.
func New(addr string, opts ...grpc.DialOption) (*Client, error) {
	return NewWithConfig(addr, DefaultConfig(), opts...)
}

// NewWithConfig creates a client. The connection is established lazily.
func NewWithConfig(addr string, cfg Config, opts ...grpc.DialOption) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, err
	}

	ocrCfg, trCfg := cfg.Breaker, cfg.Breaker
	ocrCfg.Name, trCfg.Name = OCRProvider, TranslateProvider
	return &Client{
		conn:      conn,
		retry:     cfg.Retry,
		ocr:       resilience.New(ocrCfg).WithHook(logTransition(OCRProvider)),
		translate: resilience.New(trCfg).WithHook(logTransition(TranslateProvider)),
	}, nil
}

func logTransition(provider string) func(from, to resilience.State) {
	return func(from, to resilience.State) {
		slog.Warn("provider breaker changed state", "provider", provider, "from", from.String(), "to", to.String())
	}
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ready waits until the connection is ready or ctx is done.
func (c *Client) Ready(ctx context.Context) error {
	c.conn.Connect()
	for {
		s := c.conn.GetState()
		if s == connectivity.Ready {
			return nil
		}
		if !c.conn.WaitForStateChange(ctx, s) {
			return apperrors.Wrap(ctx.Err(), apperrors.CodeUnavailable, "inference server not ready").
				WithMetadata("state", s.String())
		}
	}
}

func (c *Client) call(ctx context.Context, b *resilience.Breaker, method string, req *structpb.Struct) (*structpb.Struct, error) {
	var out *structpb.Struct
	err := resilience.Retry(ctx, c.retry, func() error {
		resp, err := resilience.ExecuteWithResult(b, func() (*structpb.Struct, error) {
			resp := new(structpb.Struct)
			return resp, c.conn.Invoke(ctx, method, req, resp)
		})
		if err == nil {
			out = resp
		}
		return err
	})
	return out, err
}

// ExtractText performs OCR on an encoded image. No text is an empty string.
func (c *Client) ExtractText(ctx context.Context, imageData []byte, format string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "grpc_extract_text")
	defer span.End()
	span.SetAttr("bytes", len(imageData))

	req, err := (&pb.ExtractTextRequest{ImageData: imageData, Format: format}).ToStruct()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeExtractionFailure, "encode request")
	}
	out, err := c.call(ctx, c.ocr, pb.ExtractTextMethod, req)
	if err != nil {
		span.Fail(err)
		return "", providerError(err, c.ocr, apperrors.CodeExtractionFailure)
	}
	return pb.ExtractTextResponseFromStruct(out).ExtractedText, nil
}

// Translate translates text into targetLanguage.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (*pb.TranslateResponse, error) {
	ctx, span := trace.StartSpan(ctx, "grpc_translate")
	defer span.End()
	span.SetAttr("target", targetLanguage)

	req, err := (&pb.TranslateRequest{Text: text, TargetLanguage: targetLanguage}).ToStruct()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTranslationFailure, "encode request")
	}
	out, err := c.call(ctx, c.translate, pb.TranslateMethod, req)
	if err != nil {
		span.Fail(err)
		return nil, providerError(err, c.translate, apperrors.CodeTranslationFailure)
	}
	return pb.TranslateResponseFromStruct(out), nil
}

func providerError(err error, b *resilience.Breaker, code apperrors.Code) *apperrors.AppError {
	msg := apperrors.FromGRPCError(err).Message
	if errors.Is(err, resilience.ErrOpen) {
		msg = b.Name() + " service unavailable, retrying later"
	}
	return apperrors.Wrap(err, code, msg).WithMetadata("provider", b.Name())
}
