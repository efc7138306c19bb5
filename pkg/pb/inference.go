// Package pb defines the wire contract of the inference service.
//
// Messages travel as google.protobuf.Struct so that the Python side can be
// served by any generic gRPC stack. The typed structs here are the Go view of
// those payloads.
package pb

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Service and method names.
const (
	InferenceServiceName = "lingualens.v1.InferenceService"
	ExtractTextMethod    = "/" + InferenceServiceName + "/ExtractText"
	TranslateMethod      = "/" + InferenceServiceName + "/Translate"
)

// ExtractTextRequest carries one encoded frame.
type ExtractTextRequest struct {
	ImageData []byte
	Format    string
}

// ExtractTextResponse carries the recognized text. Empty means no text found.
type ExtractTextResponse struct {
	ExtractedText string
}

// TranslateRequest asks for text to be translated into TargetLanguage.
type TranslateRequest struct {
	Text           string
	TargetLanguage string
}

// TranslateResponse is the translation plus the detected source language, if any.
type TranslateResponse struct {
	TranslatedText         string
	DetectedSourceLanguage string
}

// ToStruct encodes the request. Image bytes are base64 encoded.
func (r *ExtractTextRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"imageData": base64.StdEncoding.EncodeToString(r.ImageData),
		"format":    r.Format,
	})
}

// ExtractTextRequestFromStruct decodes a request payload.
func ExtractTextRequestFromStruct(s *structpb.Struct) (*ExtractTextRequest, error) {
	f := s.GetFields()
	data, err := base64.StdEncoding.DecodeString(f["imageData"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("imageData: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("imageData: empty")
	}
	return &ExtractTextRequest{ImageData: data, Format: f["format"].GetStringValue()}, nil
}

func (r *ExtractTextResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"extractedText": r.ExtractedText})
}

func ExtractTextResponseFromStruct(s *structpb.Struct) *ExtractTextResponse {
	return &ExtractTextResponse{ExtractedText: s.GetFields()["extractedText"].GetStringValue()}
}

func (r *TranslateRequest) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"text":           r.Text,
		"targetLanguage": r.TargetLanguage,
	})
}

func TranslateRequestFromStruct(s *structpb.Struct) (*TranslateRequest, error) {
	f := s.GetFields()
	req := &TranslateRequest{
		Text:           f["text"].GetStringValue(),
		TargetLanguage: f["targetLanguage"].GetStringValue(),
	}
	if req.TargetLanguage == "" {
		return nil, fmt.Errorf("targetLanguage: empty")
	}
	return req, nil
}

func (r *TranslateResponse) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"translatedText":         r.TranslatedText,
		"detectedSourceLanguage": r.DetectedSourceLanguage,
	})
}

func TranslateResponseFromStruct(s *structpb.Struct) *TranslateResponse {
	f := s.GetFields()
	return &TranslateResponse{
		TranslatedText:         f["translatedText"].GetStringValue(),
		DetectedSourceLanguage: f["detectedSourceLanguage"].GetStringValue(),
	}
}

// InferenceServer is implemented by inference backends.
type InferenceServer interface {
	ExtractText(context.Context, *ExtractTextRequest) (*ExtractTextResponse, error)
	Translate(context.Context, *TranslateRequest) (*TranslateResponse, error)
}

// RegisterInferenceServer registers srv on s.
func RegisterInferenceServer(s grpc.ServiceRegistrar, srv InferenceServer) {
	s.RegisterService(&InferenceServiceDesc, srv)
}

// InferenceServiceDesc is the grpc.ServiceDesc for InferenceService.
var InferenceServiceDesc = grpc.ServiceDesc{
	ServiceName: InferenceServiceName,
	HandlerType: (*InferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ExtractText", Handler: extractTextHandler},
		{MethodName: "Translate", Handler: translateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lingualens/v1/inference.proto",
}

func extractTextHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		r, err := ExtractTextRequestFromStruct(req.(*structpb.Struct))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		resp, err := srv.(InferenceServer).ExtractText(ctx, r)
		if err != nil {
			return nil, err
		}
		return resp.ToStruct()
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: ExtractTextMethod}, call)
}

func translateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		r, err := TranslateRequestFromStruct(req.(*structpb.Struct))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		resp, err := srv.(InferenceServer).Translate(ctx, r)
		if err != nil {
			return nil, err
		}
		return resp.ToStruct()
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: TranslateMethod}, call)
}
