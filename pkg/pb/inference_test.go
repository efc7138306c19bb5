package pb

import (
	"bytes"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestExtractTextRequest(t *testing.T) {
	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0} // JPEG magic bytes
	s, err := (&ExtractTextRequest{ImageData: imageData, Format: "jpeg"}).ToStruct()
	if err != nil {
		t.Fatalf("ToStruct error: %v", err)
	}

	req, err := ExtractTextRequestFromStruct(s)
	if err != nil {
		t.Fatalf("FromStruct error: %v", err)
	}
	if !bytes.Equal(req.ImageData, imageData) {
		t.Errorf("ImageData = %v, want %v", req.ImageData, imageData)
	}
	if req.Format != "jpeg" {
		t.Errorf("Format = %q, want %q", req.Format, "jpeg")
	}
}

func TestExtractTextRequestRejectsEmptyImage(t *testing.T) {
	s, _ := structpb.NewStruct(map[string]any{"format": "jpeg"})
	if _, err := ExtractTextRequestFromStruct(s); err == nil {
		t.Error("expected error for missing image data")
	}
}

func TestTranslateRequestRequiresLanguage(t *testing.T) {
	s, _ := (&TranslateRequest{Text: "Hello"}).ToStruct()
	if _, err := TranslateRequestFromStruct(s); err == nil {
		t.Error("expected error for missing target language")
	}
}

func TestTranslateResponseOptionalLanguage(t *testing.T) {
	s, _ := structpb.NewStruct(map[string]any{"translatedText": "Xin chào"})
	resp := TranslateResponseFromStruct(s)
	if resp.TranslatedText != "Xin chào" {
		t.Errorf("TranslatedText = %q, want %q", resp.TranslatedText, "Xin chào")
	}
	if resp.DetectedSourceLanguage != "" {
		t.Errorf("DetectedSourceLanguage = %q, want empty", resp.DetectedSourceLanguage)
	}
}

func TestMethodNames(t *testing.T) {
	if ExtractTextMethod != "/lingualens.v1.InferenceService/ExtractText" {
		t.Errorf("ExtractTextMethod = %q", ExtractTextMethod)
	}
	if TranslateMethod != "/lingualens.v1.InferenceService/Translate" {
		t.Errorf("TranslateMethod = %q", TranslateMethod)
	}
}
