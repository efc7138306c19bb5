package history

import (
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore(30, 10)
	s.Add(Entry{SourceText: "Hello", TranslatedText: "Xin chào", TargetLanguage: "vi", Sequence: 1})

	entries := s.Recent(0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].SourceText != "Hello" || entries[0].TranslatedText != "Xin chào" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}

	e := <-s.Events()
	if e.Kind != KindTranslation || e.Entry.Sequence != 1 {
		t.Errorf("event = %+v", e)
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5, 10)
	for i := 0; i < 10; i++ {
		s.Add(Entry{Sequence: int64(i)})
	}

	entries := s.Recent(0)
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	if entries[0].Sequence != 5 || entries[4].Sequence != 9 {
		t.Errorf("kept %d..%d, want 5..9", entries[0].Sequence, entries[4].Sequence)
	}
	if got := s.Recent(2); len(got) != 2 || got[1].Sequence != 9 {
		t.Errorf("Recent(2) = %+v", got)
	}
}

func TestNotify(t *testing.T) {
	s := NewStore(30, 10)
	s.Notify(apperrors.CodeTranslationFailure, "translation failed")

	notices := s.Notices()
	if len(notices) != 1 || notices[0].Code != "TRANSLATION_FAILURE" {
		t.Fatalf("notices = %+v", notices)
	}
	select {
	case e := <-s.Events():
		if e.Kind != KindNotice || e.Notice.Message != "translation failed" {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestNoticesBounded(t *testing.T) {
	s := NewStore(30, 100)
	for i := 0; i < MaxNotices+5; i++ {
		s.Notify(apperrors.CodeExtractionFailure, "x")
	}
	if len(s.Notices()) != MaxNotices {
		t.Errorf("notices = %d, want %d", len(s.Notices()), MaxNotices)
	}
}

func TestEmitNonBlocking(t *testing.T) {
	s := NewStore(30, 1)
	s.StateChanged("capturing")

	done := make(chan struct{})
	go func() {
		s.StateChanged("idle")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Emit blocked when channel was full")
	}
}
